package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const credProcessVersion = 1

var credsJSON bool

type credProcess struct {
	Version         int    `json:"Version"`
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	SessionToken    string `json:"SessionToken"`
	Expiration      string `json:"Expiration"`
}

// credsCmd represents the creds command
var credsCmd = &cobra.Command{
	Use:     "creds",
	Short:   "creds exchanges the profile's unauthenticated role for credentials and prints them",
	RunE:    credsRun,
	Example: "source <(aws-cognito-flags creds -p demo)\n[profile demo]\ncredential_process = aws-cognito-flags creds -p demo --json",
}

func init() {
	RootCmd.AddCommand(credsCmd)
	credsCmd.Flags().BoolVar(&credsJSON, "json", false, "Print credential_process output instead of export commands")
}

func printExport(varName, varValue string) {
	exportString := "export %s=%s\n"
	myShell, hasShell := os.LookupEnv("SHELL")
	if hasShell && strings.Contains(myShell, "fish") {
		exportString = "set -x %s %s\n"
	}
	fmt.Printf(exportString, varName, varValue)
}

func credsRun(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return ErrTooManyArguments
	}

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

	if credsJSON {
		return printJSON(credProcess{
			Version:         credProcessVersion,
			AccessKeyID:     creds.AccessKeyID,
			SecretAccessKey: creds.SecretAccessKey,
			SessionToken:    creds.SessionToken,
			Expiration:      creds.Expiration.UTC().Format(time.RFC3339),
		})
	}

	printExport("AWS_ACCESS_KEY_ID", shellescape.Quote(creds.AccessKeyID))
	printExport("AWS_SECRET_ACCESS_KEY", shellescape.Quote(creds.SecretAccessKey))
	printExport("AWS_SESSION_TOKEN", shellescape.Quote(creds.SessionToken))
	printExport("AWS_REGION", shellescape.Quote(opts.Region))
	printExport("AWS_DEFAULT_REGION", shellescape.Quote(opts.Region))
	return nil
}

func printJSON(v interface{}) error {
	var output []byte
	var err error
	if pretty {
		output, err = json.MarshalIndent(v, "", "    ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	fmt.Println(string(output))
	return nil
}
