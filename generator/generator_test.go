package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/socialmesh/core"
)

func TestTemplateGenerateDeterministic(t *testing.T) {
	g := NewTemplate()
	evCtx := map[string]any{
		"user_id":       "u1",
		"user_name":     "superfan",
		"their_message": "your music got me through a tough week",
	}

	first, err := g.Generate(context.Background(), core.ActionReply, evCtx)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), core.ActionReply, evCtx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "superfan")
	assert.NotContains(t, first, "{name}")
}

func TestTemplateGenerateWithoutName(t *testing.T) {
	g := NewTemplate()

	content, err := g.Generate(context.Background(), core.ActionReply, map[string]any{
		"their_message": "great set last night",
	})
	require.NoError(t, err)
	assert.NotContains(t, content, "{name}")
	assert.NotContains(t, content, "  ", "placeholder removal must not leave double spaces")
}

func TestTemplateGenerateUnknownActionType(t *testing.T) {
	g := NewTemplate()

	_, err := g.Generate(context.Background(), core.ActionLike, map[string]any{})
	assert.Error(t, err)
}

func TestTemplateOverrides(t *testing.T) {
	g := NewTemplate(func(o *TemplateOptions) {
		o.Templates = map[core.ActionType][]string{
			core.ActionPost: {"only this one"},
		}
	})

	content, err := g.Generate(context.Background(), core.ActionPost, nil)
	require.NoError(t, err)
	assert.Equal(t, "only this one", content)
}

func TestBuildPromptIncludesContext(t *testing.T) {
	prompt := BuildPrompt(core.ActionReply, map[string]any{
		"their_message":   "when is the next show?",
		"user_name":       "roadtripper",
		"detected_intent": "question",
		"platform":        "x",
	})

	assert.True(t, strings.HasPrefix(prompt, "Write a reply"))
	assert.Contains(t, prompt, "when is the next show?")
	assert.Contains(t, prompt, "roadtripper")
	assert.Contains(t, prompt, "question")
	assert.Contains(t, prompt, "Platform: x")
}
