package score

import (
	"strings"

	"github.com/hupe1980/socialmesh/core"
)

// Heuristics holds the tunable inputs of the pillar scoring functions.
// The defaults reflect a conversational social-posting agent; none of the
// keyword lists are normative.
type Heuristics struct {
	// EngagementKeywords signal positive engagement intent in content.
	EngagementKeywords []string
	// PersonalityMarkers signal the agent's own voice in content.
	PersonalityMarkers []string
	// SpamIndicators penalize promotional or manipulative phrasing.
	SpamIndicators []string
	// InappropriateKeywords hard-penalize unacceptable content.
	InappropriateKeywords []string
	// MinContentLength and MaxContentLength bound the well-crafted range.
	MinContentLength int
	MaxContentLength int
	// TrustedFollowerCount is the follower count above which an actor is
	// treated as likely genuine.
	TrustedFollowerCount int
}

// DefaultHeuristics returns the baseline heuristic configuration.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		EngagementKeywords:    []string{"love", "amazing", "thank", "appreciate", "welcome", "vibe", "music"},
		PersonalityMarkers:    []string{"vibes", "fam", "music", "love", "blessed"},
		SpamIndicators:        []string{"buy now", "click here", "free", "dm me for"},
		InappropriateKeywords: []string{"hate", "spam", "scam", "fake", "nsfw"},
		MinContentLength:      20,
		MaxContentLength:      280,
		TrustedFollowerCount:  100,
	}
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func containsAny(content string, needles []string) bool {
	lower := strings.ToLower(content)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func ctxString(context map[string]any, key string) string {
	if v, ok := context[key].(string); ok {
		return v
	}
	return ""
}

func ctxInt(context map[string]any, key string) int {
	switch v := context[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func ctxFloat(context map[string]any, key string) float64 {
	switch v := context[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func ctxBool(context map[string]any, key string) bool {
	v, ok := context[key].(bool)
	return ok && v
}

// scoreAwareness: do we understand the situation clearly? Rewards known
// actor identity, available conversation history and timing context.
func (h Heuristics) scoreAwareness(content string, context map[string]any) float64 {
	score := 50.0

	if ctxString(context, "user_id") != "" || ctxString(context, "user_name") != "" {
		score += 10
		if ctxInt(context, "follower_count") > 0 {
			score += 5
		}
		if ctxString(context, "relationship_tier") != "" {
			score += 5
		}
	}

	theirMessage := ctxString(context, "their_message")
	if theirMessage == "" {
		theirMessage = ctxString(context, "original_content")
	}
	if theirMessage != "" {
		score += 10
		if len(theirMessage) > 20 {
			score += 5
		}
	}

	if ctxString(context, "event_time") != "" || ctxString(context, "created_at") != "" {
		score += 15
	}

	return clamp(score)
}

// scoreDefine: is the goal of the action clear?
func (h Heuristics) scoreDefine(actionType core.ActionType, content string, context map[string]any) float64 {
	score := 50.0

	if actionType == core.ActionReply || actionType == core.ActionPost {
		score += 15
	}

	if len(content) >= 10 {
		score += 10
		if containsAny(content, h.EngagementKeywords) {
			score += 10
		}
	}

	if ctxString(context, "goal") != "" || ctxString(context, "intent") != "" {
		score += 15
	} else {
		// Every supported action type has an inferable purpose.
		score += 10
	}

	return clamp(score)
}

// scoreDevise: is the content well crafted and the approach sound?
func (h Heuristics) scoreDevise(actionType core.ActionType, content string, context map[string]any) float64 {
	score := 50.0

	if content != "" {
		if len(content) >= h.MinContentLength && len(content) <= h.MaxContentLength {
			score += 10
		} else if len(content) > h.MaxContentLength {
			score -= 10
		}

		if containsAny(content, h.SpamIndicators) {
			score -= 20
		} else {
			score += 10
		}

		if containsAny(content, h.PersonalityMarkers) {
			score += 5
		}
	}

	if actionType == core.ActionReply {
		if theirs := ctxString(context, "their_message"); theirs != "" && wordOverlap(theirs, content) >= 2 {
			score += 10
		}
	}

	return clamp(score)
}

// wordOverlap counts distinct words shared by two texts, a cheap proxy for
// reply relevance.
func wordOverlap(a, b string) int {
	aw := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(a)) {
		aw[w] = struct{}{}
	}
	n := 0
	seen := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := aw[w]; ok {
			n++
		}
	}
	return n
}

// scoreValidate: is the action backed by evidence? Rewards genuine-looking
// actors and penalizes inappropriate content hard.
func (h Heuristics) scoreValidate(content string, context map[string]any) float64 {
	score := 50.0

	followers := ctxInt(context, "follower_count")
	if followers > h.TrustedFollowerCount {
		score += 10
	} else if followers > 0 {
		score += 5
	}

	if ctxBool(context, "verified") || ctxBool(context, "is_verified") {
		score += 15
	} else if ctxInt(context, "account_age_days") > 30 {
		score += 10
	}

	if containsAny(content, h.InappropriateKeywords) {
		score -= 30
	} else {
		score += 15
	}

	return clamp(score)
}

// scoreActUpon: execution readiness. High base because reaching the
// calculator already implies a prepared action.
func (h Heuristics) scoreActUpon(content string, context map[string]any) float64 {
	score := 70.0

	if strings.TrimSpace(content) != "" {
		score += 15
	}

	if ctxString(context, "blocked_reason") != "" {
		score -= 30
	} else {
		score += 15
	}

	return clamp(score)
}

// scoreLearn: use of past interaction feedback.
func (h Heuristics) scoreLearn(context map[string]any) float64 {
	score := 60.0

	if ctxBool(context, "past_interactions") {
		score += 15
		if ctxBool(context, "past_positive_outcome") {
			score += 5
		}
	}

	if rate := ctxFloat(context, "similar_action_success_rate"); rate > 0.7 {
		score += 15
	} else if rate > 0.5 {
		score += 10
	}

	return clamp(score)
}

// scoreUnderstand: recognition of the deeper pattern or intent.
func (h Heuristics) scoreUnderstand(context map[string]any) float64 {
	score := 60.0

	if ctxString(context, "detected_intent") != "" {
		score += 15
		if ctxFloat(context, "intent_confidence") > 0.8 {
			score += 5
		}
	}

	if ctxString(context, "user_pattern") != "" || ctxString(context, "engagement_pattern") != "" {
		score += 15
	}

	return clamp(score)
}

// scoreEvolve: growth and relationship-building potential.
func (h Heuristics) scoreEvolve(actionType core.ActionType, context map[string]any) float64 {
	score := 60.0

	switch actionType {
	case core.ActionReply, core.ActionDM:
		score += 15
		tier := ctxString(context, "relationship_tier")
		if tier == "super_fan" || tier == "engaged_fan" {
			score += 5
		}
	case core.ActionPost:
		score += 10
		if ctxString(context, "trending_topic") != "" {
			score += 5
		}
	}

	if ctxString(context, "growth_potential") != "" {
		score += 10
	}

	return clamp(score)
}
