package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"
	"time"

	"github.com/99designs/keyring"
	"github.com/segmentio/aws-cognito-flags/cmd/configload"
	"github.com/segmentio/aws-cognito-flags/cmd/internal/analytics"
	"github.com/segmentio/aws-cognito-flags/lib"
	"github.com/segmentio/aws-cognito-flags/lib/cognitocreds"
	"github.com/segmentio/aws-cognito-flags/profiles"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Errors returned from frontend commands
var (
	ErrTooManyArguments = errors.New("too many arguments")
	ErrTooFewArguments  = errors.New("too few arguments")
)

const (
	EnvKeyringBackend = "AWS_COGNITO_FLAGS_BACKEND"
	EnvProfile        = "AWS_COGNITO_FLAGS_PROFILE"
)

// global flags
var (
	backend          string
	debug            bool
	configFile       string
	profile          string
	region           string
	rememberIdentity bool
	pretty           bool

	version         string
	analyticsClient analytics.Client

	// resolved in prerun
	configProfiles profiles.Profiles
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:               "aws-cognito-flags",
	Short:             "aws-cognito-flags evaluates Evidently features and AppConfig flags with anonymous Cognito credentials",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prerun,
	PersistentPostRun: postrun,
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(vers string, writeKey string) {
	version = vers
	analyticsClient = analytics.New(writeKey)
	RootCmd.Version = vers

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		switch err {
		case ErrTooFewArguments, ErrTooManyArguments, ErrCommandMissing:
			RootCmd.Usage()
		}
		stop()
		os.Exit(1)
	}
}

func prerun(cmd *cobra.Command, args []string) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if cmd.Name() == "help" || cmd.Name() == "version" {
		return nil
	}

	// Load backend and profile from env vars if not set as flags
	if !cmd.Flags().Lookup("backend").Changed {
		if backendFromEnv, ok := os.LookupEnv(EnvKeyringBackend); ok {
			backend = backendFromEnv
		}
	}
	if !cmd.Flags().Lookup("profile").Changed {
		if profileFromEnv, ok := os.LookupEnv(EnvProfile); ok {
			profile = profileFromEnv
		}
	}

	var err error
	configProfiles, err = loadProfiles()
	if err != nil {
		return err
	}

	if analyticsClient.Enabled() {
		if u, err := user.Current(); err == nil {
			analyticsClient.UserId = u.Username
		}
		analyticsClient.Version = version
		analyticsClient.Backend = backend
		analyticsClient.Identify()
		analyticsClient.TrackRanCommand(cmd.Name(), map[string]string{
			analytics.PropertyProfileName: profile,
			analytics.PropertyProject:     profileValue(profiles.KeyProject),
			analytics.PropertyRegion:      profileValue(profiles.KeyRegion),
		})
	}
	return nil
}

func postrun(cmd *cobra.Command, args []string) {
	analyticsClient.Close()
}

func loadProfiles() (profiles.Profiles, error) {
	if configFile != "" {
		config, err := configload.NewConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		return config.Parse()
	}
	config, err := configload.NewConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return config.Parse()
}

// profileValue looks key up in the selected profile, its source profile,
// and the default profile.
func profileValue(key string) string {
	return configProfiles.Lookup(profile, key)
}

func profileDuration(key string) (time.Duration, error) {
	v := profileValue(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("profile %s: invalid %s %q: %v", profile, key, v, err)
	}
	return d, nil
}

// baseOpts builds the tenant options from the selected profile and flags.
func baseOpts() (lib.Opts, error) {
	opts := lib.Opts{
		Region:          profileValue(profiles.KeyRegion),
		IdentityPoolID:  profileValue(profiles.KeyIdentityPoolID),
		UnauthRoleARN:   profileValue(profiles.KeyUnauthRoleARN),
		RoleSessionName: profileValue(profiles.KeyRoleSessionName),
		Project:         profileValue(profiles.KeyProject),
		Feature:         profileValue(profiles.KeyFeature),
		Log:             log.StandardLogger(),
	}
	if region != "" {
		opts.Region = region
	}

	d, err := profileDuration(profiles.KeyAssumeRoleTTL)
	if err != nil {
		return opts, err
	}
	opts.AssumeRoleDuration = d

	opts.ApplyDefaults()
	return opts, opts.Validate()
}

// newExchanger builds the credential exchanger for the selected profile,
// remembering Cognito identities in the keyring if asked to.
func newExchanger(opts lib.Opts) (*cognitocreds.Exchanger, error) {
	e, err := cognitocreds.New(opts)
	if err != nil {
		return nil, err
	}
	if rememberIdentity {
		var allowedBackends []keyring.BackendType
		if backend != "" {
			allowedBackends = append(allowedBackends, keyring.BackendType(backend))
		}
		kr, err := openKeyring(allowedBackends)
		if err != nil {
			return nil, err
		}
		e.Identities = &cognitocreds.KeyringIdentityStore{Keyring: kr, Log: opts.Log}
	}
	return e, nil
}

func init() {
	backendsAvailable := []string{}
	for _, backendType := range keyring.AvailableBackends() {
		backendsAvailable = append(backendsAvailable, string(backendType))
	}
	RootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", fmt.Sprintf("Secret backend to use %s", backendsAvailable))
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", fmt.Sprintf("Config file (default $%s or ~/.aws/cognito-flags)", configload.EnvConfigFile))
	RootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", profiles.DefaultProfile, "Profile to read settings from")
	RootCmd.PersistentFlags().StringVarP(&region, "region", "r", "", "AWS region, overrides the profile")
	RootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty print JSON output")
	RootCmd.PersistentFlags().BoolVar(&rememberIdentity, "remember-identity", false, "Reuse one Cognito identity per pool, stored in the keyring")
}
