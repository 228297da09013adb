package lib

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultRoleSessionName = "evidentlyDemo"

	DefaultConfigTTL  = 30 * time.Second
	DefaultSessionTTL = time.Hour

	MinAssumeRoleDuration = time.Minute * 15
	MaxAssumeRoleDuration = time.Hour * 12
)

// Opts carries everything that used to be hard coded per deployment: the
// region, the Cognito pool and role, and the Evidently project. One Opts
// value per tenant lets several environments run side by side.
type Opts struct {
	Region string

	IdentityPoolID string
	UnauthRoleARN  string

	RoleSessionName string

	// if zero, STS picks its default (one hour)
	AssumeRoleDuration time.Duration

	// Evidently project and default feature
	Project string
	Feature string

	Log logrus.FieldLogger
}

// ApplyDefaults fills in unset fields with package defaults.
func (o *Opts) ApplyDefaults() *Opts {
	if o.RoleSessionName == "" {
		o.RoleSessionName = DefaultRoleSessionName
	}
	if o.Region == "" && o.IdentityPoolID != "" {
		// pool ids are prefixed with their region, e.g. us-west-2:3109c9f1-...
		if i := strings.Index(o.IdentityPoolID, ":"); i > 0 {
			o.Region = o.IdentityPoolID[:i]
		}
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	return o
}

type ErrMissingOpt struct {
	Name string
}

func (e *ErrMissingOpt) Error() string {
	return fmt.Sprintf("missing required option %s", e.Name)
}

type ErrAssumeRoleDurationOOB struct {
	Min    time.Duration
	Max    time.Duration
	Actual time.Duration
}

func (e *ErrAssumeRoleDurationOOB) Error() string {
	if e.Actual < e.Min {
		return fmt.Sprintf("actual AssumeRoleDuration %s < minimum %s", e.Actual, e.Min)
	}
	return fmt.Sprintf("actual AssumeRoleDuration %s > maximum %s", e.Actual, e.Max)
}

// Validate checks the options needed for a credential exchange. Project is
// only checked by the Evidently client.
func (o *Opts) Validate() error {
	if o.Region == "" {
		return &ErrMissingOpt{"Region"}
	}
	if o.IdentityPoolID == "" {
		return &ErrMissingOpt{"IdentityPoolID"}
	}
	if o.UnauthRoleARN == "" {
		return &ErrMissingOpt{"UnauthRoleARN"}
	}
	if d := o.AssumeRoleDuration; d != 0 && (d < MinAssumeRoleDuration || d > MaxAssumeRoleDuration) {
		return &ErrAssumeRoleDurationOOB{
			Min:    MinAssumeRoleDuration,
			Max:    MaxAssumeRoleDuration,
			Actual: d,
		}
	}
	return nil
}
