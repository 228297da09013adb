package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information and exit",
	Run:   versionRun,
}

func init() {
	RootCmd.AddCommand(versionCmd)
}

func versionRun(cmd *cobra.Command, args []string) {
	v := version
	if v == "" {
		v = "(devel)"
	}
	fmt.Printf("aws-cognito-flags %s %s/%s\n", v, runtime.GOOS, runtime.GOARCH)
}
