package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"zgate/internal/connection"
)

const (
	DefaultMaxPolls     = 10
	DefaultPollInterval = time.Second

	StatusOutput = "OUTPUT"

	DDSysut2   = "SYSUT2"
	DDSysprint = "SYSPRINT"
)

// Doer is the part of a connection.Session the job functions need.
type Doer interface {
	Do(ctx context.Context, req connection.Request) (*connection.Payload, error)
}

// Orchestrator submits job streams, waits for them with a bounded number
// of status checks, and harvests a named output stream.
type Orchestrator struct {
	MaxPolls     int
	PollInterval time.Duration
}

func NewOrchestrator(maxPolls int, pollInterval time.Duration) *Orchestrator {
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	if pollInterval < 0 {
		pollInterval = DefaultPollInterval
	}
	return &Orchestrator{MaxPolls: maxPolls, PollInterval: pollInterval}
}

// SubmitAndAwait runs a job stream to completion and returns the text of
// the ddName output stream. A failure in any phase aborts the whole run;
// a half-submitted job is never resubmitted.
func (o *Orchestrator) SubmitAndAwait(ctx context.Context, s Doer, jobStream, ddName string) (string, error) {
	job, err := o.Submit(ctx, s, jobStream)
	if err != nil {
		return "", err
	}
	if _, err := o.Await(ctx, s, job); err != nil {
		return "", err
	}
	return Harvest(ctx, s, job, ddName)
}

// Submit posts an inline job stream. Any answer other than 201 Created
// is a *connection.SubmitError.
func (o *Orchestrator) Submit(ctx context.Context, s Doer, jobStream string) (*connection.Job, error) {
	return submit(ctx, s, map[string]string{"file": "inline", "jcl": jobStream})
}

// SubmitFile submits a job stream already stored on the facility, such as
// //'USER.JCL(MYJOB)'. It does not wait for the job.
func (o *Orchestrator) SubmitFile(ctx context.Context, s Doer, ref string) (*connection.Job, error) {
	return submit(ctx, s, map[string]string{"file": ref})
}

func submit(ctx context.Context, s Doer, body map[string]string) (*connection.Job, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submit request: %w", err)
	}

	p, err := s.Do(ctx, connection.Request{
		Action:      "failed to submit job",
		Method:      http.MethodPost,
		Path:        "restjobs/jobs",
		ContentType: connection.AcceptJSON,
		Body:        data,
	})
	if err != nil {
		var re *connection.RemoteError
		if errors.As(err, &re) {
			return nil, &connection.SubmitError{RemoteError: re}
		}
		return nil, err
	}
	if p.Status != http.StatusCreated {
		return nil, &connection.SubmitError{RemoteError: &connection.RemoteError{
			Action: "failed to submit job",
			Status: p.Status,
			Body:   p.Text(),
		}}
	}

	var job connection.Job
	if err := p.Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to parse submit response: %w", err)
	}
	if job.JobID == "" || job.JobName == "" {
		return nil, fmt.Errorf("submit response carries no job identifiers: %s", p.Text())
	}

	zerolog.Ctx(ctx).Info().Str("jobname", job.JobName).Str("jobid", job.JobID).Msg("job submitted")
	return &job, nil
}

// Await checks the job status at most MaxPolls times, sleeping
// PollInterval between checks, and returns as soon as the job reaches
// OUTPUT.
func (o *Orchestrator) Await(ctx context.Context, s Doer, job *connection.Job) (*connection.Job, error) {
	logger := zerolog.Ctx(ctx).With().Str("jobname", job.JobName).Str("jobid", job.JobID).Logger()

	for attempt := 1; attempt <= o.MaxPolls; attempt++ {
		status, err := Status(ctx, s, job.JobName, job.JobID)
		if err != nil {
			return nil, err
		}
		logger.Debug().Int("attempt", attempt).Str("status", status.Status).Msg("polled job status")
		if status.Status == StatusOutput {
			return status, nil
		}
		if attempt == o.MaxPolls {
			break
		}
		if err := sleep(ctx, o.PollInterval); err != nil {
			return nil, err
		}
	}

	logger.Warn().Int("attempts", o.MaxPolls).Msg("job did not reach OUTPUT")
	return nil, fmt.Errorf("%w: %s(%s) after %d status checks", connection.ErrJobTimeout, job.JobName, job.JobID, o.MaxPolls)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Status returns the current state of a job. When jobName is empty the
// job is looked up by id across all owners.
func Status(ctx context.Context, s Doer, jobName, jobID string) (*connection.Job, error) {
	if jobName == "" {
		return lookup(ctx, s, jobID)
	}

	p, err := s.Do(ctx, connection.Request{
		Action: "failed to get job status",
		Path:   fmt.Sprintf("restjobs/jobs/%s/%s", url.PathEscape(jobName), url.PathEscape(jobID)),
	})
	if err != nil {
		return nil, err
	}

	var job connection.Job
	if err := p.Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to parse job status: %w", err)
	}
	return &job, nil
}

func lookup(ctx context.Context, s Doer, jobID string) (*connection.Job, error) {
	p, err := s.Do(ctx, connection.Request{
		Action: "failed to get job status",
		Path:   "restjobs/jobs?owner=*&jobid=" + url.QueryEscape(jobID),
	})
	if err != nil {
		return nil, err
	}

	items, err := connection.DecodeItems[connection.Job](p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job status: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("job %s: %w", jobID, connection.ErrNotFound)
	}
	return &items[0], nil
}

// List returns the jobs of owner; "*" lists every owner.
func List(ctx context.Context, s Doer, owner string) ([]connection.Job, error) {
	p, err := s.Do(ctx, connection.Request{
		Action: "failed to list jobs",
		Path:   "restjobs/jobs?owner=" + url.QueryEscape(owner) + "&prefix=*",
	})
	if err != nil {
		return nil, err
	}

	items, err := connection.DecodeItems[connection.Job](p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jobs list: %w", err)
	}
	return items, nil
}

func Files(ctx context.Context, s Doer, job *connection.Job) ([]connection.JobFile, error) {
	p, err := s.Do(ctx, connection.Request{
		Action: "failed to list job files",
		Path:   fmt.Sprintf("restjobs/jobs/%s/%s/files", url.PathEscape(job.JobName), url.PathEscape(job.JobID)),
	})
	if err != nil {
		return nil, err
	}

	files, err := connection.DecodeItems[connection.JobFile](p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job files: %w", err)
	}
	return files, nil
}

// Records fetches one spool file as newline separated text. Installations
// answer either with plain text or with {"records": [...]}.
func Records(ctx context.Context, s Doer, job *connection.Job, file connection.JobFile) (string, error) {
	p, err := s.Do(ctx, connection.Request{
		Action:   fmt.Sprintf("failed to read DD %s", file.DDName),
		Path:     fmt.Sprintf("restjobs/jobs/%s/%s/files/%d/records", url.PathEscape(job.JobName), url.PathEscape(job.JobID), file.ID),
		Accept:   connection.AcceptText,
		DataType: "text",
	})
	if err != nil {
		return "", err
	}

	if p.Structured() {
		var rec struct {
			Records []string `json:"records"`
		}
		if err := p.Decode(&rec); err == nil && rec.Records != nil {
			return strings.Join(rec.Records, "\n"), nil
		}
	}
	text := strings.ReplaceAll(p.Text(), "\r\n", "\n")
	return strings.TrimSuffix(text, "\n"), nil
}

// Harvest returns the text of the ddName stream of a finished job.
func Harvest(ctx context.Context, s Doer, job *connection.Job, ddName string) (string, error) {
	files, err := Files(ctx, s, job)
	if err != nil {
		return "", err
	}

	for _, f := range files {
		if f.DDName != ddName {
			continue
		}
		text, err := Records(ctx, s, job, f)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", fmt.Errorf("%s output of %s(%s) is empty: %w", ddName, job.JobName, job.JobID, connection.ErrNotFound)
		}
		return text, nil
	}
	return "", fmt.Errorf("no %s output for %s(%s): %w", ddName, job.JobName, job.JobID, connection.ErrNotFound)
}

// Output concatenates every spool file of a job, each preceded by a
// header naming its DD and step.
func Output(ctx context.Context, s Doer, job *connection.Job) (string, error) {
	files, err := Files(ctx, s, job)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, f := range files {
		text, err := Records(ctx, s, job, f)
		if err != nil {
			return "", err
		}
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "--- DD: %s (Step: %s) ---\n", f.DDName, f.StepName)
		output.WriteString(text)
	}
	return output.String(), nil
}
