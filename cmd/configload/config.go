package configload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/aws-cognito-flags/profiles"
	log "github.com/sirupsen/logrus"

	"github.com/mitchellh/go-homedir"
	"github.com/vaughan0/go-ini"
)

// EnvConfigFile overrides the default config file location.
const EnvConfigFile = "AWS_COGNITO_FLAGS_CONFIG"

type config interface {
	Parse() (profiles.Profiles, error)
}

type fileConfig struct {
	file string
}

// NewConfigFromEnv reads the file named by AWS_COGNITO_FLAGS_CONFIG, or
// ~/.aws/cognito-flags when that is unset. A missing default file parses
// to no profiles.
func NewConfigFromEnv() (config, error) {
	file := os.Getenv(EnvConfigFile)
	if file == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(home, "/.aws/cognito-flags")
		if _, err := os.Stat(file); os.IsNotExist(err) {
			file = ""
		}
	}
	return &fileConfig{file: file}, nil
}

// NewConfigFromFile reads an explicitly named file, which must exist.
func NewConfigFromFile(file string) (config, error) {
	expanded, err := homedir.Expand(file)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(expanded); err != nil {
		return nil, err
	}
	return &fileConfig{file: expanded}, nil
}

func (c *fileConfig) Parse() (profiles.Profiles, error) {
	if c.file == "" {
		return profiles.Profiles{}, nil
	}

	log.Debugf("Parsing config file %s", c.file)
	f, err := ini.LoadFile(c.file)
	if err != nil {
		return nil, fmt.Errorf("Error parsing config file %q: %v", c.file, err)
	}

	ps := profiles.Profiles{profiles.DefaultProfile: map[string]string{}}
	for sectionName, section := range f {
		if sectionName == "" {
			// keys above the first section header
			for k, v := range section {
				ps[profiles.DefaultProfile][k] = v
			}
			continue
		}
		ps[strings.TrimPrefix(sectionName, "profile ")] = section
	}

	return ps, nil
}
