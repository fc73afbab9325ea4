// Package generator provides ContentGenerator implementations: a
// deterministic template generator suitable for tests and offline
// operation, plus shared prompt building for the model-backed generators
// in the subpackages.
package generator

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/hupe1980/socialmesh/core"
)

// DefaultSystemPrompt frames the model-backed generators. Deployments
// replace it with their agent's persona.
const DefaultSystemPrompt = `You are the voice of an autonomous artist agent with a genuine care for its community.

WRITING RULES:
- Be warm, substantive and concise.
- Use at most one hashtag and at most one emoji per message.
- Never give financial, legal or medical advice.
- End replies with appreciation or a genuine question, not a call to action.`

// BuildPrompt renders the user prompt for a candidate action from the
// event context the pipeline assembled.
func BuildPrompt(actionType core.ActionType, context map[string]any) string {
	var b strings.Builder

	switch actionType {
	case core.ActionReply:
		b.WriteString("Write a reply to a fan's public message.\n")
	case core.ActionDM:
		b.WriteString("Write a direct message response.\n")
	case core.ActionPost:
		b.WriteString("Write a standalone post for your followers.\n")
	default:
		b.WriteString(fmt.Sprintf("Write content for a %s action.\n", string(actionType)))
	}

	if msg, ok := context["their_message"].(string); ok && msg != "" {
		b.WriteString("Their message: " + msg + "\n")
	}
	if name, ok := context["user_name"].(string); ok && name != "" {
		b.WriteString("They go by: " + name + "\n")
	}
	if intent, ok := context["detected_intent"].(string); ok && intent != "" {
		b.WriteString("Detected intent: " + intent + "\n")
	}
	if topic, ok := context["trending_topic"].(string); ok && topic != "" {
		b.WriteString("Trending topic to build on: " + topic + "\n")
	}
	if platform, ok := context["platform"].(string); ok && platform != "" {
		b.WriteString("Platform: " + platform + "\n")
	}

	return b.String()
}

// DefaultTemplates back the template generator per action type. The
// {name} placeholder is filled from the event context when present.
var DefaultTemplates = map[core.ActionType][]string{
	core.ActionReply: {
		"Thank you for the love {name}, messages like this keep the music alive",
		"Grateful you shared this {name}, the community grows with every word",
		"This made my day {name}, thank you for walking the journey with us",
	},
	core.ActionDM: {
		"Thank you for reaching out {name}, I read every message and this one landed",
		"Appreciate you writing in {name}, let us keep building together",
	},
	core.ActionPost: {
		"New week, same mission: add value in everything we create together",
		"Every track starts with a question worth asking. What are you creating today?",
		"Gratitude to everyone sharing the journey, the best work is still ahead",
	},
}

// TemplateOptions configures a Template generator.
type TemplateOptions struct {
	Templates map[core.ActionType][]string
}

// Template is a deterministic ContentGenerator: the same action type and
// context always produce the same draft, which keeps gate decisions
// reproducible in tests.
type Template struct {
	templates map[core.ActionType][]string
}

// NewTemplate creates a template generator with optional overrides.
func NewTemplate(optFns ...func(o *TemplateOptions)) *Template {
	opts := TemplateOptions{Templates: DefaultTemplates}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Template{templates: opts.Templates}
}

// Generate implements core.ContentGenerator.
func (t *Template) Generate(_ context.Context, actionType core.ActionType, evCtx map[string]any) (string, error) {
	candidates := t.templates[actionType]
	if len(candidates) == 0 {
		return "", fmt.Errorf("no templates for action type %q", string(actionType))
	}

	// Stable template choice keyed on who and what triggered the action.
	h := fnv.New32a()
	if userID, ok := evCtx["user_id"].(string); ok {
		h.Write([]byte(userID))
	}
	if msg, ok := evCtx["their_message"].(string); ok {
		h.Write([]byte(msg))
	}
	content := candidates[int(h.Sum32())%len(candidates)]

	name := ""
	if n, ok := evCtx["user_name"].(string); ok {
		name = n
	}
	if name != "" {
		content = strings.ReplaceAll(content, "{name}", name)
	} else {
		content = strings.ReplaceAll(content, " {name}", "")
	}
	return content, nil
}
