package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <dataset(member)> | <dataset>",
	Short: "Display content of a member or sequential dataset",
	Long: `Display the content of a PDS member or a sequential dataset.

Members are read through the z/OSMF file API, falling back to an IEBGENER
job when the installation does not serve them directly.

Examples:
  zgate cat 'USERNAME.SOURCE(MYPROG)'   # display PDS member
  zgate cat USERNAME.DATA               # display sequential dataset`,
	Args: cobra.ExactArgs(1),
	RunE: runCat,
}

var viewCmd = &cobra.Command{
	Use:   "view <dataset(member)>",
	Short: "Display a member by running an IEBGENER job",
	Long:  `Display a PDS member through a submitted IEBGENER job, without trying the file API first.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func init() {
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(viewCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	g, p, err := openGateway()
	if err != nil {
		return err
	}
	defer g.Close()

	path := args[0]
	if !strings.Contains(path, "(") {
		content, err := g.ReadDataset(cmd.Context(), p, path)
		if err != nil {
			return err
		}
		printContent(cmd.OutOrStdout(), content)
		return nil
	}

	dataset, member, err := parseDSN(path)
	if err != nil {
		return err
	}

	var content string
	err = withSpinner(fmt.Sprintf("Reading %s(%s)", dataset, member), func() error {
		var err error
		content, err = g.ReadMember(cmd.Context(), p, dataset, member)
		return err
	})
	if err != nil {
		return err
	}
	printContent(cmd.OutOrStdout(), content)
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	dataset, member, err := parseDSN(args[0])
	if err != nil {
		return err
	}

	g, p, err := openGateway()
	if err != nil {
		return err
	}
	defer g.Close()

	var content string
	err = withSpinner(fmt.Sprintf("Running IEBGENER for %s(%s)", dataset, member), func() error {
		var err error
		content, err = g.ViewMember(cmd.Context(), p, dataset, member)
		return err
	})
	if err != nil {
		return err
	}
	printContent(cmd.OutOrStdout(), content)
	return nil
}

func printContent(w io.Writer, content string) {
	fmt.Fprint(w, content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		fmt.Fprintln(w)
	}
}

func parseDSN(dsn string) (dataset, member string, err error) {
	dsn = trimQuotes(dsn)

	start := -1
	end := -1
	for i, c := range dsn {
		if c == '(' {
			start = i
		} else if c == ')' {
			end = i
		}
	}

	if start == -1 || end == -1 || end <= start+1 {
		return "", "", fmt.Errorf("invalid dataset format: %s (expected DATASET(MEMBER))", dsn)
	}

	dataset = dsn[:start]
	member = dsn[start+1 : end]
	return dataset, member, nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
