package configload

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/aws-cognito-flags/profiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
region = us-west-2

[profile demo]
identity_pool_id = us-west-2:3109c9f1-7857-4cbf-be91-c867a00768e0
unauth_role_arn = arn:aws:iam::000000000000:role/Cognito_evidentlydemoUnauth_Role
project = demo
feature = EditableGuestbook

[profile demo-eu]
source_profile = demo
region = eu-west-1
application = app1
`

func writeConfig(t *testing.T) string {
	dir, err := ioutil.TempDir("", "aws-cognito-flags")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	file := filepath.Join(dir, "config")
	require.NoError(t, ioutil.WriteFile(file, []byte(testConfig), 0600))
	return file
}

func TestParse(t *testing.T) {
	file := writeConfig(t)

	config, err := NewConfigFromFile(file)
	require.NoError(t, err)
	ps, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, "demo", ps["demo"][profiles.KeyProject])
	assert.Equal(t, "us-west-2", ps[profiles.DefaultProfile][profiles.KeyRegion])

	v, from, err := ps.GetValue("demo-eu", profiles.KeyIdentityPoolID)
	require.NoError(t, err)
	assert.Equal(t, "demo", from)
	assert.Equal(t, "us-west-2:3109c9f1-7857-4cbf-be91-c867a00768e0", v)

	assert.Equal(t, "eu-west-1", ps.Lookup("demo-eu", profiles.KeyRegion))
	assert.Equal(t, "us-west-2", ps.Lookup("demo", profiles.KeyRegion))
}

func TestNewConfigFromEnv(t *testing.T) {
	file := writeConfig(t)
	os.Setenv(EnvConfigFile, file)
	defer os.Unsetenv(EnvConfigFile)

	config, err := NewConfigFromEnv()
	require.NoError(t, err)
	ps, err := config.Parse()
	require.NoError(t, err)
	assert.Contains(t, ps, "demo-eu")
}

func TestNewConfigFromFileMissing(t *testing.T) {
	_, err := NewConfigFromFile(filepath.Join(os.TempDir(), "does-not-exist", "config"))
	assert.Error(t, err)
}

func TestGetConfigValue(t *testing.T) {
	config_profiles := make(profiles.Profiles)

	t.Run("empty profile", func(t *testing.T) {
		_, _, found_error := config_profiles.GetValue("profile_a", "config_key")
		if found_error == nil {
			t.Error("Searching an empty profile set should return an error")
		}
	})

	config_profiles["default"] = map[string]string{
		"key_a": "a",
		"key_b": "b",
	}

	config_profiles["profile_a"] = map[string]string{
		"key_b": "b-a",
		"key_c": "c-a",
		"key_d": "d-a",
	}

	config_profiles["profile_b"] = map[string]string{
		"source_profile": "profile_a",
		"key_d":          "d-b",
		"key_e":          "e-b",
	}

	config_profiles["profile_c"] = map[string]string{
		"source_profile": "profile_b",
		"key_f":          "f-c",
	}

	t.Run("missing key", func(t *testing.T) {
		_, _, found_error := config_profiles.GetValue("profile_a", "config_key")
		if found_error == nil {
			t.Error("Searching for a missing key should return an error")
		}
	})

	t.Run("fallback to default", func(t *testing.T) {
		found_value, found_profile, found_error := config_profiles.GetValue("profile_a", "key_a")
		assert.NoError(t, found_error)
		assert.Equal(t, "default", found_profile)
		assert.Equal(t, "a", found_value)
	})

	t.Run("found in current profile", func(t *testing.T) {
		found_value, found_profile, found_error := config_profiles.GetValue("profile_b", "key_d")
		assert.NoError(t, found_error)
		assert.Equal(t, "profile_b", found_profile)
		assert.Equal(t, "d-b", found_value)
	})

	t.Run("traversing from child profile", func(t *testing.T) {
		found_value, found_profile, found_error := config_profiles.GetValue("profile_b", "key_c")
		assert.NoError(t, found_error)
		assert.Equal(t, "profile_a", found_profile)
		assert.Equal(t, "c-a", found_value)
	})

	t.Run("recursive traversing from child profile", func(t *testing.T) {
		_, _, found_error := config_profiles.GetValue("profile_c", "key_c")
		if found_error == nil {
			t.Error("Recursive searching should not work")
		}
	})
}
