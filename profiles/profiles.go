// Package profiles holds the per-tenant settings read from the config file.
package profiles

import "fmt"

// DefaultProfile is consulted last when looking up a value.
const DefaultProfile = "default"

// Keys understood in a profile section.
const (
	KeyRegion          = "region"
	KeyIdentityPoolID  = "identity_pool_id"
	KeyUnauthRoleARN   = "unauth_role_arn"
	KeyRoleSessionName = "role_session_name"
	KeyAssumeRoleTTL   = "assume_role_ttl"
	KeyProject         = "project"
	KeyFeature         = "feature"
	KeyApplication     = "application"
	KeyEnvironment     = "environment"
	KeyConfiguration   = "configuration"
	KeyConfigTTL       = "config_ttl"
	KeyMinPollInterval = "min_poll_interval"
	KeySourceProfile   = "source_profile"
)

func SourceProfile(p string, from Profiles) string {
	return sourceProfile(p, from)
}

// sourceProfile returns either the defined source_profile or p if none exists
func sourceProfile(p string, from Profiles) string {
	if conf, ok := from[p]; ok {
		if source := conf[KeySourceProfile]; source != "" {
			return source
		}
	}
	return p
}

type Profiles map[string]map[string]string

// GetValue looks a key up in profile, then its source_profile, then the
// default profile. It returns the value and the profile it came from.
func (p Profiles) GetValue(profile string, config_key string) (string, string, error) {
	config_value, ok := p[profile][config_key]
	if ok {
		return config_value, profile, nil
	}

	// Lookup from the `source_profile`, if it exists
	profile, ok = p[profile][KeySourceProfile]
	if ok {
		config_value, ok := p[profile][config_key]
		if ok {
			return config_value, profile, nil
		}

	}

	// Fallback to `default` if no profile supplies the value
	profile = DefaultProfile
	config_value, ok = p[profile][config_key]
	if ok {
		return config_value, profile, nil
	}

	return "", "", fmt.Errorf("Could not find %s in %s, source profile, or default", config_key, profile)
}

// Lookup is GetValue without the error: a missing key yields "".
func (p Profiles) Lookup(profile string, config_key string) string {
	v, _, _ := p.GetValue(profile, config_key)
	return v
}
