package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"zgate/internal/connection"
)

var lsCmd = &cobra.Command{
	Use:   "ls [pattern | dataset]",
	Short: "List datasets or members",
	Long: `List datasets matching a pattern, or members of a PDS.

Without an argument, your own datasets and the public ones are listed.

Examples:
  zgate ls                    # list USER.* and public datasets
  zgate ls 'SYS1.*'           # list datasets matching a pattern
  zgate ls 'USERNAME.SOURCE'  # list members in PDS`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	g, p, err := openGateway()
	if err != nil {
		return err
	}
	defer g.Close()

	if len(args) == 0 || strings.Contains(args[0], "*") {
		pattern := ""
		if len(args) > 0 {
			pattern = trimQuotes(args[0])
		}
		datasets, err := g.ListDatasets(cmd.Context(), p, pattern)
		if err != nil {
			return err
		}
		if len(datasets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No datasets found")
			return nil
		}
		printDatasets(cmd.OutOrStdout(), datasets)
		return nil
	}

	members, err := g.ListMembers(cmd.Context(), p, args[0])
	if err != nil {
		return err
	}
	if len(members) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No members found")
		return nil
	}
	printMembers(cmd.OutOrStdout(), members)
	return nil
}

func printDatasets(out io.Writer, datasets []connection.Dataset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DSNAME\tDSORG\tRECFM\tLRECL\tVOLUME\t")
	for _, d := range datasets {
		public := ""
		if d.Public {
			public = "public"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Name, d.Org, d.RecFm, d.LRecL, d.Volume, public)
	}
	w.Flush()
}

func printMembers(out io.Writer, members []connection.Member) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVV.MM\tCHANGED\tSIZE\tUSER")
	for _, m := range members {
		fmt.Fprintf(w, "%s\t%02d.%02d\t%s\t%d\t%s\n", m.Name, m.VV, m.MM, m.Changed, m.Size, m.User)
	}
	w.Flush()
}
