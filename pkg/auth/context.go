package auth

import "context"

type contextKey struct{}

// WithSlackID stores the authenticated Slack id on the context.
func WithSlackID(ctx context.Context, slackID string) context.Context {
	return context.WithValue(ctx, contextKey{}, slackID)
}

// SlackIDFromContext returns the authenticated Slack id, if any.
func SlackIDFromContext(ctx context.Context) (string, bool) {
	slackID, ok := ctx.Value(contextKey{}).(string)
	return slackID, ok
}
