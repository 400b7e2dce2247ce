package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"zgate/internal/connection"
	"zgate/internal/gateway"
)

var submitWait bool

var submitCmd = &cobra.Command{
	Use:   "submit <dataset(member)> | <local-file>",
	Short: "Submit JCL for execution",
	Long: `Submit JCL stored in a PDS member, or from a local file.

With --wait the job status is checked up to the configured max_polls
times, poll_interval apart.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "wait for job to complete")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	g, p, err := openGateway()
	if err != nil {
		return err
	}
	defer g.Close()

	source := args[0]
	var job *connection.Job

	if _, statErr := os.Stat(source); statErr == nil {
		jcl, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", source, err)
		}
		job, err = g.SubmitJob(cmd.Context(), p, string(jcl))
		if err != nil {
			return err
		}
	} else {
		dataset, member, err := parseDSN(source)
		if err != nil {
			return err
		}
		job, err = g.ExecuteMember(cmd.Context(), p, dataset, member)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Job %s(%s) submitted\n", job.JobName, job.JobID)

	if !submitWait {
		return nil
	}
	return waitForJob(cmd, g, p, job)
}

func waitForJob(cmd *cobra.Command, g *gateway.Gateway, p connection.Profile, job *connection.Job) error {
	var status *connection.Job
	err := withSpinner(fmt.Sprintf("Waiting for %s", job.JobID), func() error {
		var err error
		status, err = g.AwaitJob(cmd.Context(), p, job.JobName, job.JobID)
		return err
	})
	if err != nil {
		return err
	}

	rc := status.RetCode
	if rc == "" {
		rc = "N/A"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Job %s completed: %s\n", job.JobID, rc)

	if strings.Contains(rc, "ABEND") || strings.Contains(rc, "JCL ERROR") {
		return fmt.Errorf("job ended with %s", rc)
	}
	return nil
}
