package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"zgate/internal/connection"

	"github.com/spf13/cobra"
)

var (
	jobsOwner  string
	jobsName   string
	jobsOutput bool
	jobsDD     string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [jobid]",
	Short: "List jobs or show job status/output",
	Long: `List jobs for current user, or show status/output of a specific job.

Examples:
  zgate jobs                        # list your jobs
  zgate jobs --owner '*'            # list every owner's jobs
  zgate jobs JOB01234               # show status
  zgate jobs JOB01234 -o            # show all output, one section per DD
  zgate jobs JOB01234 --dd SYSPRINT # show one output stream`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().StringVar(&jobsOwner, "owner", "", "filter by owner (default: current user, use '*' for all)")
	jobsCmd.Flags().StringVar(&jobsName, "name", "", "job name (looked up from the jobid when omitted)")
	jobsCmd.Flags().BoolVarP(&jobsOutput, "output", "o", false, "show job output (requires jobid)")
	jobsCmd.Flags().StringVar(&jobsDD, "dd", "", "show only this output DD (requires jobid)")
}

func runJobs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && (jobsOutput || jobsDD != "") {
		return fmt.Errorf("--output and --dd require a jobid")
	}

	g, p, err := openGateway()
	if err != nil {
		return err
	}
	defer g.Close()

	out := cmd.OutOrStdout()

	if len(args) > 0 {
		jobid := args[0]

		if jobsOutput || jobsDD != "" {
			output, err := g.JobOutput(cmd.Context(), p, jobsName, jobid, jobsDD)
			if err != nil {
				return err
			}
			printContent(out, output)
			return nil
		}

		job, err := g.JobStatus(cmd.Context(), p, jobsName, jobid)
		if err != nil {
			return err
		}
		printJobDetail(out, job)
		return nil
	}

	jobs, err := g.ListJobs(cmd.Context(), p, jobsOwner)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	printJobList(out, jobs)
	return nil
}

func printJobList(out io.Writer, jobs []connection.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOBNAME\tJOBID\tOWNER\tSTATUS\tRC")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.JobName, j.JobID, j.Owner, j.Status, j.RetCode)
	}
	w.Flush()
}

func printJobDetail(out io.Writer, job *connection.Job) {
	fmt.Fprintf(out, "Job ID:    %s\n", job.JobID)
	fmt.Fprintf(out, "Job Name:  %s\n", job.JobName)
	fmt.Fprintf(out, "Owner:     %s\n", job.Owner)
	fmt.Fprintf(out, "Status:    %s\n", job.Status)
	if job.RetCode != "" {
		fmt.Fprintf(out, "Return:    %s\n", job.RetCode)
	}
	if job.Class != "" {
		fmt.Fprintf(out, "Class:     %s\n", job.Class)
	}
}
