package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/segmentio/aws-cognito-flags/profiles"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list will show you the profiles currently configured",
	RunE:  listRun,
}

func init() {
	RootCmd.AddCommand(listCmd)
}

// sorted for deterministic output
func listProfileNames(ps profiles.Profiles) []string {
	var profileNames []string
	for name := range ps {
		profileNames = append(profileNames, name)
	}
	sort.Strings(profileNames)
	return profileNames
}

func writeProfiles(out io.Writer, ps profiles.Profiles) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, '\t', 0)
	fmt.Fprintln(w, "PROFILE\tREGION\tIDENTITY_POOL\tPROJECT\t")
	for _, name := range listProfileNames(ps) {
		poolID := ps.Lookup(name, profiles.KeyIdentityPoolID)
		if poolID == "" {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			name,
			ps.Lookup(name, profiles.KeyRegion),
			poolID,
			ps.Lookup(name, profiles.KeyProject),
		)
	}
	return w.Flush()
}

func listRun(cmd *cobra.Command, args []string) error {
	return writeProfiles(os.Stdout, configProfiles)
}
