// Package cognitocreds exchanges a Cognito identity pool's unauthenticated
// role for temporary AWS credentials.
//
// The classic Cognito credentials flow scopes the session policy down to a
// fixed list of services, which excludes Evidently. Going through
// GetOpenIdToken and STS AssumeRoleWithWebIdentity directly keeps the full
// permissions of the role. The pool must have the basic (classic) flow
// enabled.
package cognitocreds

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cognitoidentity"
	"github.com/aws/aws-sdk-go/service/cognitoidentity/cognitoidentityiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/coder/quartz"
	"github.com/segmentio/aws-cognito-flags/lib"
	"golang.org/x/xerrors"
)

// Exchanger produces a fresh set of credentials on every call. Nothing it
// returns is cached.
type Exchanger struct {
	// Opts must have had ApplyDefaults and Validate called
	Opts lib.Opts

	// if set, identity ids are remembered per pool and GetId is skipped
	Identities IdentityStore

	newCognito func(region string) (cognitoidentityiface.CognitoIdentityAPI, error)
	newSTS     func(region string) (stsiface.STSAPI, error)
	clock      quartz.Clock
}

// New creates an Exchanger backed by real Cognito and STS clients.
func New(opts lib.Opts) (*Exchanger, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Exchanger{
		Opts:       opts,
		newCognito: newCognitoClient,
		newSTS:     newSTSClient,
		clock:      quartz.NewReal(),
	}, nil
}

func newCognitoClient(region string) (cognitoidentityiface.CognitoIdentityAPI, error) {
	sess, err := lib.NewSession(region, nil)
	if err != nil {
		return nil, err
	}
	return cognitoidentity.New(sess), nil
}

func newSTSClient(region string) (stsiface.STSAPI, error) {
	sess, err := lib.NewSession(region, nil)
	if err != nil {
		return nil, err
	}
	return sts.New(sess), nil
}

// Retrieve exchanges the configured pool and role for credentials.
func (e *Exchanger) Retrieve(ctx context.Context) (lib.Credentials, error) {
	return e.Exchange(ctx, e.Opts.IdentityPoolID, e.Opts.UnauthRoleARN)
}

// Exchange runs GetId, GetOpenIdToken and AssumeRoleWithWebIdentity in
// sequence. Any failure is returned as a *lib.AuthError naming the step;
// there are no retries.
func (e *Exchanger) Exchange(ctx context.Context, identityPoolID, unauthRoleARN string) (lib.Credentials, error) {
	log := e.Opts.Log

	cognito, err := e.newCognito(e.Opts.Region)
	if err != nil {
		return lib.Credentials{}, &lib.AuthError{Step: "NewSession", Err: err}
	}

	identityID, remembered, err := e.identityID(ctx, cognito, identityPoolID)
	if err != nil {
		return lib.Credentials{}, err
	}

	token, err := cognito.GetOpenIdTokenWithContext(ctx, &cognitoidentity.GetOpenIdTokenInput{
		IdentityId: aws.String(identityID),
	})
	if err != nil {
		if remembered {
			// the identity may have been deleted from the pool; look it up
			// again next time
			e.forget(identityPoolID)
		}
		return lib.Credentials{}, &lib.AuthError{Step: "GetOpenIdToken", Err: err}
	}
	if token.Token == nil {
		return lib.Credentials{}, &lib.AuthError{Step: "GetOpenIdToken", Err: ErrNoToken}
	}

	stsClient, err := e.newSTS(e.Opts.Region)
	if err != nil {
		return lib.Credentials{}, &lib.AuthError{Step: "NewSession", Err: err}
	}

	input := &sts.AssumeRoleWithWebIdentityInput{
		RoleArn:          aws.String(unauthRoleARN),
		RoleSessionName:  aws.String(e.Opts.RoleSessionName),
		WebIdentityToken: token.Token,
	}
	if e.Opts.AssumeRoleDuration != 0 {
		input.DurationSeconds = aws.Int64(int64(e.Opts.AssumeRoleDuration.Seconds()))
	}

	log.Debugf("Assuming role %s with web identity", unauthRoleARN)
	resp, err := stsClient.AssumeRoleWithWebIdentityWithContext(ctx, input)
	if err != nil {
		return lib.Credentials{}, &lib.AuthError{Step: "AssumeRoleWithWebIdentity", Err: err}
	}

	creds, err := FromSTS(resp.Credentials)
	if err != nil {
		return lib.Credentials{}, &lib.AuthError{Step: "AssumeRoleWithWebIdentity", Err: err}
	}
	if creds.Expired(e.clock.Now()) {
		return lib.Credentials{}, &lib.AuthError{
			Step: "AssumeRoleWithWebIdentity",
			Err:  xerrors.Errorf("expired at %s: %w", creds.Expiration, ErrCredentialsExpired),
		}
	}

	log.Debugf("Using credentials %s, expires at %s", suffix(creds.AccessKeyID), creds.Expiration)
	return creds, nil
}

func (e *Exchanger) identityID(ctx context.Context, cognito cognitoidentityiface.CognitoIdentityAPI, identityPoolID string) (string, bool, error) {
	log := e.Opts.Log

	if e.Identities != nil {
		if id, err := e.Identities.Get(identityPoolID); err == nil {
			log.Debugf("Reusing identity %s for pool %s", id, identityPoolID)
			return id, true, nil
		}
	}

	identity, err := cognito.GetIdWithContext(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(identityPoolID),
	})
	if err != nil {
		return "", false, &lib.AuthError{Step: "GetId", Err: err}
	}
	if identity.IdentityId == nil {
		return "", false, &lib.AuthError{Step: "GetId", Err: ErrNoIdentity}
	}
	log.Debugf("Got identity %s for pool %s", *identity.IdentityId, identityPoolID)

	if e.Identities != nil {
		if err := e.Identities.Put(identityPoolID, *identity.IdentityId); err != nil {
			log.Warnf("failed to remember identity for pool %s: %s", identityPoolID, err)
		}
	}
	return *identity.IdentityId, false, nil
}

func (e *Exchanger) forget(identityPoolID string) {
	if err := e.Identities.Delete(identityPoolID); err != nil {
		e.Opts.Log.Warnf("failed to forget identity for pool %s: %s", identityPoolID, err)
	}
}

// suffix returns the last four characters of an access key, which is enough
// to tell sessions apart in logs.
func suffix(accessKeyID string) string {
	if len(accessKeyID) <= 4 {
		return accessKeyID
	}
	return accessKeyID[len(accessKeyID)-4:]
}
