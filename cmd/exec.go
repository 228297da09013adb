package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/segmentio/aws-cognito-flags/lib"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var ErrCommandMissing = errors.New("must specify command to run")

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:     "exec -- <command>",
	Short:   "exec will run the command specified with the profile's anonymous credentials set in the environment",
	RunE:    execRun,
	Example: "aws-cognito-flags exec -p demo -- aws evidently list-projects",
}

func init() {
	RootCmd.AddCommand(execCmd)
}

// credsEnviron returns base with any ambient AWS credentials replaced by
// creds.
func credsEnviron(base []string, creds lib.Credentials, region, profileName string) []string {
	env := environ(base)
	env.Unset("AWS_CREDENTIAL_FILE")
	env.Unset("AWS_DEFAULT_PROFILE")
	env.Unset("AWS_PROFILE")
	env.Unset("AWS_SESSION_TOKEN")
	env.Unset("AWS_SECURITY_TOKEN")

	env.Set("AWS_ACCESS_KEY_ID", creds.AccessKeyID)
	env.Set("AWS_SECRET_ACCESS_KEY", creds.SecretAccessKey)
	if creds.SessionToken != "" {
		env.Set("AWS_SESSION_TOKEN", creds.SessionToken)
		env.Set("AWS_SECURITY_TOKEN", creds.SessionToken)
	}
	if region != "" {
		env.Set("AWS_REGION", region)
		env.Set("AWS_DEFAULT_REGION", region)
	}
	env.Set(EnvProfile, profileName)
	if !creds.Expiration.IsZero() {
		env.Set("AWS_COGNITO_FLAGS_SESSION_EXPIRATION", fmt.Sprintf("%d", creds.Expiration.Unix()))
	}
	return env
}

func execRun(cmd *cobra.Command, args []string) error {
	dashIx := cmd.ArgsLenAtDash()
	if dashIx == -1 || len(args) == dashIx {
		return ErrCommandMissing
	}
	if dashIx > 0 {
		return ErrTooManyArguments
	}
	command, commandArgs := args[0], args[1:]

	opts, err := baseOpts()
	if err != nil {
		return err
	}
	exchanger, err := newExchanger(opts)
	if err != nil {
		return err
	}
	creds, err := exchanger.Retrieve(cmd.Context())
	if err != nil {
		return err
	}

	ecmd := exec.Command(command, commandArgs...)
	ecmd.Stdin = os.Stdin
	ecmd.Stdout = os.Stdout
	ecmd.Stderr = os.Stderr
	ecmd.Env = credsEnviron(os.Environ(), creds, opts.Region, profile)

	// Forward SIGINT and SIGTERM to the child command
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if ok && ecmd.Process != nil {
			ecmd.Process.Signal(sig)
		}
	}()

	log.Debugf("exec %s with credentials for profile %s", command, profile)
	if err := ecmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			analyticsClient.Close()
			os.Exit(exitError.ExitCode())
		}
		return err
	}
	return nil
}

// environ is a slice of strings representing the environment, in the form "key=value".
type environ []string

// Unset an environment variable by key
func (e *environ) Unset(key string) {
	for i := range *e {
		if strings.HasPrefix((*e)[i], key+"=") {
			(*e)[i] = (*e)[len(*e)-1]
			*e = (*e)[:len(*e)-1]
			break
		}
	}
}

// Set adds an environment variable, replacing any existing ones of the same key
func (e *environ) Set(key, val string) {
	e.Unset(key)
	*e = append(*e, key+"="+val)
}
