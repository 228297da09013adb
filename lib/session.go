package lib

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	awssession "github.com/aws/aws-sdk-go/aws/session"
)

// NewSession builds an AWS session for region. Passing nil credentials
// yields an unsigned session, which is what Cognito's unauthenticated calls
// and AssumeRoleWithWebIdentity expect.
//
// Retries are disabled; callers decide whether to retry.
func NewSession(region string, creds *credentials.Credentials) (*awssession.Session, error) {
	if creds == nil {
		creds = credentials.AnonymousCredentials
	}
	return awssession.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: creds,
		MaxRetries:  aws.Int(0),
	})
}

// ConfigKey joins an application, environment and configuration profile
// into the key used by the configuration caches. Colons inside a part are
// escaped so distinct triples never share a key.
func ConfigKey(application, environment, configuration string) string {
	return strings.Join([]string{
		keyEscaper.Replace(application),
		keyEscaper.Replace(environment),
		keyEscaper.Replace(configuration),
	}, ":")
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)
