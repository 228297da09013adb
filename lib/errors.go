package lib

import (
	"errors"
	"fmt"
)

// ErrEmptyConfiguration is returned when AppConfig reports no configuration
// content and nothing has been cached for the key yet.
var ErrEmptyConfiguration = errors.New("broker returned an empty configuration and none is cached")

// AuthError is returned when any step of the anonymous credential exchange
// fails.
type AuthError struct {
	// Step is the failing call, e.g. "GetId" or "AssumeRoleWithWebIdentity".
	Step string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("credential exchange failed at %s: %s", e.Step, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// BrokerError is returned when a call to AppConfig or Evidently fails.
type BrokerError struct {
	Broker string
	Op     string
	Err    error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Broker, e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }

// MissingFlagError is returned when a flag is absent from a fetched
// configuration.
type MissingFlagError struct {
	Key  string
	Flag string
}

func (e *MissingFlagError) Error() string {
	return fmt.Sprintf("flag %q not found in configuration %s", e.Flag, e.Key)
}

// ParseError is returned when a configuration payload is not valid JSON.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("configuration %s is not valid JSON", e.Key)
	}
	return fmt.Sprintf("configuration %s is not valid JSON: %s", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
