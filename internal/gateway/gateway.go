// Package gateway is the single entry point to the z/OS resource
// operations. Every operation opens its own session: one handshake, one
// token, discarded when the operation returns.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"zgate/internal/connection"
	"zgate/internal/dataset"
	"zgate/internal/jcl"
	"zgate/internal/jobs"
)

const DefaultPublicPattern = "PUBLIC.*"

type Settings struct {
	Facility      string
	Timeout       time.Duration
	MaxPolls      int
	PollInterval  time.Duration
	PublicPattern string
	MemberPath    dataset.MemberPath
	JobCard       jcl.JobCard
	// Client overrides the HTTP client, e.g. to enforce TLS verification.
	Client *http.Client
}

type Gateway struct {
	transport     *connection.Transport
	jobs          *jobs.Orchestrator
	resolver      *dataset.Resolver
	publicPattern string
	log           zerolog.Logger
}

func New(s Settings, logger zerolog.Logger) *Gateway {
	orch := jobs.NewOrchestrator(s.MaxPolls, s.PollInterval)
	return &Gateway{
		transport: connection.NewTransport(connection.Options{
			Facility: s.Facility,
			Timeout:  s.Timeout,
			Client:   s.Client,
		}),
		jobs:          orch,
		resolver:      dataset.NewResolver(orch, s.JobCard, s.MemberPath),
		publicPattern: s.PublicPattern,
		log:           logger,
	}
}

func (g *Gateway) Close() error {
	return g.transport.Close()
}

// run opens a session for p and hands it to fn with a context carrying
// the operation logger.
func (g *Gateway) run(ctx context.Context, op string, p connection.Profile, fn func(context.Context, *connection.Session) error) error {
	logger := g.log.With().
		Str("op", op).
		Str("op_id", uuid.NewString()).
		Str("profile", p.String()).
		Logger()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	s, err := g.transport.Open(ctx, p)
	if err != nil {
		logger.Warn().Err(err).Msg("handshake failed")
		return err
	}

	if err := fn(ctx, s); err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("operation failed")
		return err
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("operation complete")
	return nil
}

// ListDatasets lists datasets matching pattern. With an empty pattern it
// lists the caller's own datasets (HLQ.*) and the public ones; the two
// listings run concurrently and own entries come first.
func (g *Gateway) ListDatasets(ctx context.Context, p connection.Profile, pattern string) ([]connection.Dataset, error) {
	var result []connection.Dataset
	err := g.run(ctx, "list_datasets", p, func(ctx context.Context, s *connection.Session) error {
		if pattern != "" {
			var err error
			result, err = dataset.List(ctx, s, jcl.Normalize(pattern))
			return err
		}

		own := p.OwnPattern()
		if g.publicPattern == "" {
			var err error
			result, err = dataset.List(ctx, s, own)
			return err
		}

		var (
			wg                  sync.WaitGroup
			ownList, publicList []connection.Dataset
			ownErr, publicErr   error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			ownList, ownErr = dataset.List(ctx, s, own)
		}()
		go func() {
			defer wg.Done()
			publicList, publicErr = dataset.List(ctx, s, g.publicPattern)
		}()
		wg.Wait()

		if ownErr != nil {
			return ownErr
		}
		if publicErr != nil {
			return publicErr
		}
		result = mergeDatasets(ownList, publicList)
		return nil
	})
	return result, err
}

func mergeDatasets(own, public []connection.Dataset) []connection.Dataset {
	seen := make(map[string]bool, len(own))
	merged := make([]connection.Dataset, 0, len(own)+len(public))
	for _, d := range own {
		seen[d.Name] = true
		merged = append(merged, d)
	}
	for _, d := range public {
		if seen[d.Name] {
			continue
		}
		d.Public = true
		merged = append(merged, d)
	}
	return merged
}

func (g *Gateway) ListMembers(ctx context.Context, p connection.Profile, name string) ([]connection.Member, error) {
	name, err := datasetArg(name)
	if err != nil {
		return nil, err
	}

	var members []connection.Member
	err = g.run(ctx, "list_members", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		members, err = dataset.ListMembers(ctx, s, name)
		return err
	})
	return members, err
}

// ReadMember reads through the direct file API and falls back to a job
// when the installation does not serve the member directly.
func (g *Gateway) ReadMember(ctx context.Context, p connection.Profile, name, member string) (string, error) {
	name, member, err := memberArgs(name, member)
	if err != nil {
		return "", err
	}

	var content string
	err = g.run(ctx, "read_member", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		content, err = g.resolver.ReadMember(ctx, s, name, member)
		return err
	})
	return content, err
}

// ViewMember reads a member only through an IEBGENER job.
func (g *Gateway) ViewMember(ctx context.Context, p connection.Profile, name, member string) (string, error) {
	name, member, err := memberArgs(name, member)
	if err != nil {
		return "", err
	}

	var content string
	err = g.run(ctx, "view_member", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		content, err = g.resolver.ViewMember(ctx, s, name, member)
		return err
	})
	return content, err
}

// ReadDataset reads a sequential dataset.
func (g *Gateway) ReadDataset(ctx context.Context, p connection.Profile, name string) (string, error) {
	name, err := datasetArg(name)
	if err != nil {
		return "", err
	}

	var content string
	err = g.run(ctx, "read_dataset", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		content, err = g.resolver.ReadDataset(ctx, s, name)
		return err
	})
	return content, err
}

func (g *Gateway) WriteMember(ctx context.Context, p connection.Profile, name, member, content string) error {
	name, member, err := memberArgs(name, member)
	if err != nil {
		return err
	}

	return g.run(ctx, "write_member", p, func(ctx context.Context, s *connection.Session) error {
		return g.resolver.WriteMember(ctx, s, name, member, content)
	})
}

// ExecuteMember submits the job stream stored in a member and returns
// the job identifiers without waiting for the job.
func (g *Gateway) ExecuteMember(ctx context.Context, p connection.Profile, name, member string) (*connection.Job, error) {
	name, member, err := memberArgs(name, member)
	if err != nil {
		return nil, err
	}

	var job *connection.Job
	err = g.run(ctx, "execute_member", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		job, err = g.jobs.SubmitFile(ctx, s, jcl.MemberRef(name, member))
		return err
	})
	return job, err
}

// SubmitJob submits an inline job stream without waiting for it. The
// stream is passed through as written; the facility validates it.
func (g *Gateway) SubmitJob(ctx context.Context, p connection.Profile, jobStream string) (*connection.Job, error) {
	if strings.TrimSpace(jobStream) == "" {
		return nil, fmt.Errorf("%w: job stream is empty", connection.ErrInvalidJobStream)
	}

	var job *connection.Job
	err := g.run(ctx, "submit_job", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		job, err = g.jobs.Submit(ctx, s, jobStream)
		return err
	})
	return job, err
}

// AwaitJob waits for a submitted job with the same bounded poll the
// utility jobs use and returns its final status.
func (g *Gateway) AwaitJob(ctx context.Context, p connection.Profile, jobName, jobID string) (*connection.Job, error) {
	var job *connection.Job
	err := g.run(ctx, "await_job", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		job, err = g.jobs.Await(ctx, s, &connection.Job{JobName: strings.ToUpper(jobName), JobID: strings.ToUpper(jobID)})
		return err
	})
	return job, err
}

// ListJobs lists the jobs of owner; an empty owner means the caller,
// "*" every owner.
func (g *Gateway) ListJobs(ctx context.Context, p connection.Profile, owner string) ([]connection.Job, error) {
	if owner == "" {
		owner = strings.ToUpper(p.User)
	}

	var list []connection.Job
	err := g.run(ctx, "list_jobs", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		list, err = jobs.List(ctx, s, owner)
		return err
	})
	return list, err
}

// JobStatus returns a job's state. jobName may be empty.
func (g *Gateway) JobStatus(ctx context.Context, p connection.Profile, jobName, jobID string) (*connection.Job, error) {
	var job *connection.Job
	err := g.run(ctx, "job_status", p, func(ctx context.Context, s *connection.Session) error {
		var err error
		job, err = jobs.Status(ctx, s, strings.ToUpper(jobName), strings.ToUpper(jobID))
		return err
	})
	return job, err
}

// JobOutput returns the text of one output stream, or every stream with
// DD headers when ddName is empty. jobName may be empty.
func (g *Gateway) JobOutput(ctx context.Context, p connection.Profile, jobName, jobID, ddName string) (string, error) {
	var output string
	err := g.run(ctx, "job_output", p, func(ctx context.Context, s *connection.Session) error {
		job := &connection.Job{JobName: strings.ToUpper(jobName), JobID: strings.ToUpper(jobID)}
		if job.JobName == "" {
			found, err := jobs.Status(ctx, s, "", job.JobID)
			if err != nil {
				return err
			}
			job = found
		}

		var err error
		if ddName == "" {
			output, err = jobs.Output(ctx, s, job)
		} else {
			output, err = jobs.Harvest(ctx, s, job, strings.ToUpper(ddName))
		}
		return err
	})
	return output, err
}

func datasetArg(name string) (string, error) {
	name = jcl.Normalize(name)
	if err := jcl.ValidateDatasetName(name); err != nil {
		return "", err
	}
	return name, nil
}

func memberArgs(name, member string) (string, string, error) {
	name, err := datasetArg(name)
	if err != nil {
		return "", "", err
	}
	member = jcl.Normalize(member)
	if err := jcl.ValidateMemberName(member); err != nil {
		return "", "", err
	}
	return name, member, nil
}
