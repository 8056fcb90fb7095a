package drive

import (
	"context"
	"os"

	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/eleveniq/sfexport/pkg/errors"
)

// NewService builds an authenticated Drive service from a service-account
// or authorized-user JSON credentials file. Token refresh is the oauth2
// library's concern.
func NewService(ctx context.Context, credentialsFile string) (*drivev3.Service, error) {
	data, err := os.ReadFile(credentialsFile) //nolint:gosec // G304: path comes from validated config
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to read drive credentials").
			WithDetail("path", credentialsFile)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, drivev3.DriveScope)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to parse drive credentials").
			WithDetail("path", credentialsFile)
	}

	svc, err := drivev3.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to create drive service")
	}

	return svc, nil
}
