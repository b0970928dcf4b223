package auth

import "context"

type authStateContextKey struct{}

// SetAuthState stores the pipeline state on the context for downstream consumers.
func SetAuthState(ctx context.Context, state RequestAuthState) context.Context {
	return context.WithValue(ctx, authStateContextKey{}, state)
}

// GetAuthState retrieves the pipeline state from the context.
func GetAuthState(ctx context.Context) (RequestAuthState, bool) {
	state, ok := ctx.Value(authStateContextKey{}).(RequestAuthState)
	return state, ok && state.Authenticated()
}
