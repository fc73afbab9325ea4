package core

import "context"

// ContentGenerator produces draft content for a candidate action. The core
// treats it as a black box: given an action type and context, return a
// draft string. Implementations may be template-based or model-backed.
type ContentGenerator interface {
	Generate(ctx context.Context, actionType ActionType, context map[string]any) (string, error)
}

// GeneratorFunc adapts a plain function to the ContentGenerator interface.
type GeneratorFunc func(ctx context.Context, actionType ActionType, context map[string]any) (string, error)

// Generate implements ContentGenerator.
func (f GeneratorFunc) Generate(ctx context.Context, actionType ActionType, context map[string]any) (string, error) {
	return f(ctx, actionType, context)
}
