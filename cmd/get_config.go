package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/segmentio/aws-cognito-flags/lib/appconfigpoller"
	"github.com/segmentio/aws-cognito-flags/profiles"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

// getConfigCmd represents the get-config command
var getConfigCmd = &cobra.Command{
	Use:   "get-config [<application> <environment> <configuration>]",
	Short: "get-config prints an AppConfig configuration profile",
	Long: `get-config prints an AppConfig configuration profile.

The application, environment and configuration default to the values in the
selected profile. With --watch the configuration is printed again every time
it changes.`,
	RunE:    getConfigRun,
	Example: "aws-cognito-flags get-config -p demo app1 prod flags --watch 30s",
}

func init() {
	RootCmd.AddCommand(getConfigCmd)
	getConfigCmd.Flags().DurationVarP(&watchInterval, "watch", "w", 0, "Poll at this interval and print every change")
}

// configTarget returns the application, environment and configuration
// profile named on the command line, or those of the selected profile.
func configTarget(args []string) (string, string, string, error) {
	switch len(args) {
	case 0:
		app := profileValue(profiles.KeyApplication)
		env := profileValue(profiles.KeyEnvironment)
		cfg := profileValue(profiles.KeyConfiguration)
		if app == "" || env == "" || cfg == "" {
			return "", "", "", fmt.Errorf("profile %s needs application, environment and configuration, or pass them as arguments", profile)
		}
		return app, env, cfg, nil
	case 3:
		return args[0], args[1], args[2], nil
	}
	return "", "", "", ErrTooFewArguments
}

func newPoller() (*appconfigpoller.Poller, error) {
	opts, err := baseOpts()
	if err != nil {
		return nil, err
	}
	exchanger, err := newExchanger(opts)
	if err != nil {
		return nil, err
	}

	ttl, err := profileDuration(profiles.KeyConfigTTL)
	if err != nil {
		return nil, err
	}
	minPoll, err := profileDuration(profiles.KeyMinPollInterval)
	if err != nil {
		return nil, err
	}

	return appconfigpoller.New(exchanger, appconfigpoller.Opts{
		Region:              opts.Region,
		ConfigTTL:           ttl,
		MinimumPollInterval: minPoll,
		Log:                 opts.Log,
	}), nil
}

func getConfigRun(cmd *cobra.Command, args []string) error {
	if len(args) > 3 {
		return ErrTooManyArguments
	}
	app, env, cfg, err := configTarget(args)
	if err != nil {
		return err
	}

	p, err := newPoller()
	if err != nil {
		return err
	}

	if watchInterval > 0 {
		ctx := cmd.Context()
		err := p.Watch(ctx, app, env, cfg, watchInterval, func(blob []byte) error {
			_, err := fmt.Fprintln(os.Stdout, string(blob))
			return err
		})
		if ctx.Err() != nil {
			// interrupted
			return nil
		}
		return err
	}

	if pretty {
		config, err := p.Config(cmd.Context(), app, env, cfg)
		if err != nil {
			return err
		}
		return printJSON(config)
	}

	blob, err := p.GetConfig(cmd.Context(), app, env, cfg)
	if err != nil {
		return err
	}
	fmt.Println(string(blob))
	return nil
}
