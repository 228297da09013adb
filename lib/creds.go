package lib

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
)

// Credentials is the canonical shape of a set of temporary AWS credentials,
// as handed to downstream service clients.
//
// a copy/extension of https://docs.aws.amazon.com/sdk-for-go/api/aws/credentials/#Value
type Credentials struct {
	AccessKeyID string

	SecretAccessKey string

	SessionToken string

	Expiration time.Time
}

// Static wraps the credentials in a provider that never refreshes. The
// result is meant to live for exactly one outbound request.
func (c Credentials) Static() *credentials.Credentials {
	return credentials.NewStaticCredentials(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)
}

// Expired reports whether the credentials are past their expiration at now.
func (c Credentials) Expired(now time.Time) bool {
	return !c.Expiration.IsZero() && !now.Before(c.Expiration)
}

// CredentialSource hands out credentials for a single outbound request.
// Implementations must not cache them.
type CredentialSource interface {
	Retrieve(ctx context.Context) (Credentials, error)
}
