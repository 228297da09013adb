package cognitocreds

import (
	"errors"

	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/segmentio/aws-cognito-flags/lib"
	"golang.org/x/xerrors"
)

var (
	ErrNoIdentity    = errors.New("no identity id in response")
	ErrNoToken       = errors.New("no open id token in response")
	ErrNoCredentials = errors.New("no credentials in response")

	ErrCredentialsExpired = errors.New("credentials already expired")
)

// FromSTS converts the credentials returned by STS (pointer fields,
// AccessKeyId casing) into the shape the service clients expect. It is the
// only place the two formats meet.
func FromSTS(c *sts.Credentials) (lib.Credentials, error) {
	if c == nil {
		return lib.Credentials{}, ErrNoCredentials
	}

	var missing string
	switch {
	case c.AccessKeyId == nil:
		missing = "AccessKeyId"
	case c.SecretAccessKey == nil:
		missing = "SecretAccessKey"
	case c.SessionToken == nil:
		missing = "SessionToken"
	case c.Expiration == nil:
		missing = "Expiration"
	}
	if missing != "" {
		return lib.Credentials{}, xerrors.Errorf("%s missing: %w", missing, ErrNoCredentials)
	}

	return lib.Credentials{
		AccessKeyID:     *c.AccessKeyId,
		SecretAccessKey: *c.SecretAccessKey,
		SessionToken:    *c.SessionToken,
		Expiration:      *c.Expiration,
	}, nil
}
