package auth

import "context"

// Credentials identify the participant on whose behalf a collaborator is called.
// They travel in the request context; nothing stores them globally.
type Credentials struct {
	Username string
	Token    string
}

type credentialsKey struct{}

// WithCredentials returns a copy of ctx carrying c.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFrom extracts the credentials stored by WithCredentials.
func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok
}
