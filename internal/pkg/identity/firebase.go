package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/gofiber/fiber/v2/log"
	"google.golang.org/api/option"
)

// FirebaseProvider verifies Firebase ID tokens and deletes Firebase users.
type FirebaseProvider struct {
	client *auth.Client
}

// NewFirebaseProvider initializes the Firebase admin SDK from a service
// account file.
func NewFirebaseProvider(ctx context.Context, credentialsFile, projectID string) (*FirebaseProvider, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}

	log.Info("[Identity] Firebase auth initialized")
	return &FirebaseProvider{client: client}, nil
}

func (p *FirebaseProvider) VerifyIDToken(ctx context.Context, token string) (*Identity, error) {
	tok, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	email, _ := tok.Claims["email"].(string)
	return &Identity{UID: tok.UID, Email: email}, nil
}

// DeleteUser removes the Firebase account. An already missing account counts
// as deleted.
func (p *FirebaseProvider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		if auth.IsUserNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}
