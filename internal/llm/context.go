package llm

import "context"

type purposeKey struct{}

// WithPurpose tags calls made with ctx with the gateway operation that
// issued them, e.g. "grade-answer". The tag ends up on the llm_request event.
func WithPurpose(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, purposeKey{}, op)
}

// PurposeFrom returns the operation tag on ctx, or "unknown".
func PurposeFrom(ctx context.Context) string {
	op, _ := ctx.Value(purposeKey{}).(string)
	if op == "" {
		return "unknown"
	}
	return op
}
