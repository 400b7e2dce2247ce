package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <dataset(member)> <local-file | ->",
	Short: "Upload a local file as a member",
	Long: `Store the content of a local file, or of stdin with "-", as a PDS member.

When the file API rejects the write, an IEBUPDTE job stores the member;
for a sequential dataset an IEBGENER job replaces its content.`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

func init() {
	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	dataset, member, err := parseDSN(args[0])
	if err != nil {
		return err
	}

	content, err := readSource(cmd.InOrStdin(), args[1])
	if err != nil {
		return err
	}

	g, p, err := openGateway()
	if err != nil {
		return err
	}
	defer g.Close()

	err = withSpinner(fmt.Sprintf("Writing %s(%s)", dataset, member), func() error {
		return g.WriteMember(cmd.Context(), p, dataset, member, content)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s(%s)\n", strings.ToUpper(dataset), strings.ToUpper(member))
	return nil
}

func readSource(stdin io.Reader, source string) (string, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", source, err)
	}
	return string(data), nil
}
