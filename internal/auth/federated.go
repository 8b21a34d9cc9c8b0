package auth

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var ErrFederatedDisabled = errors.New("federated sign-in is not configured")

// Identity is the verified subject of a federated ID token.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
}

// TokenVerifier checks an ID token issued by an external identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier verifies Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier initializes a Firebase app from a service account file.
func NewFirebaseVerifier(ctx context.Context, credentialsFile string) (*FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	id := Identity{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	if verified, ok := tok.Claims["email_verified"].(bool); ok {
		id.EmailVerified = verified
	}
	if id.Email == "" {
		return Identity{}, errors.New("id token has no email claim")
	}
	return id, nil
}

// DisabledVerifier rejects every token. It stands in when no Firebase
// credentials are configured.
type DisabledVerifier struct{}

func (DisabledVerifier) Verify(context.Context, string) (Identity, error) {
	return Identity{}, ErrFederatedDisabled
}
