package cmd

import (
	"fmt"
	"strings"

	"zgate/internal/editor"

	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit <dataset(member)>",
	Short: "Edit a member",
	Long: `Download a PDS member, open it in your editor, and upload changes.

The editor is taken from $ZGATE_EDITOR, $VISUAL or $EDITOR, in that order.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
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
	err = withSpinner(fmt.Sprintf("Reading %s(%s)", dataset, member), func() error {
		var err error
		content, err = g.ReadMember(cmd.Context(), p, dataset, member)
		return err
	})
	if err != nil {
		return err
	}

	modified, changed, err := editor.Edit(member, content)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes, skipping upload")
		return nil
	}

	err = withSpinner(fmt.Sprintf("Writing %s(%s)", dataset, member), func() error {
		return g.WriteMember(cmd.Context(), p, dataset, member, modified)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s(%s)\n", strings.ToUpper(trimQuotes(dataset)), strings.ToUpper(member))
	return nil
}
