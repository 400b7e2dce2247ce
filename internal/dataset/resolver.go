package dataset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"zgate/internal/connection"
	"zgate/internal/jcl"
	"zgate/internal/jobs"
)

// MemberPath selects how member content is addressed on the facility.
type MemberPath string

const (
	// MemberPathParen addresses members as ds/DATASET(MEMBER).
	MemberPathParen MemberPath = "paren"
	// MemberPathRecords addresses members as ds/DATASET/member/MEMBER/records.
	MemberPathRecords MemberPath = "records"
)

func (m MemberPath) Valid() bool {
	return m == MemberPathParen || m == MemberPathRecords
}

// outcome is the result of a direct content attempt: either the attempt
// succeeded, or the operation needs the job-based path.
type outcome struct {
	content  string
	fallback bool
	cause    error
}

func direct(content string) outcome { return outcome{content: content} }

func needsJobFallback(cause error) outcome { return outcome{fallback: true, cause: cause} }

// Resolver picks the read and write strategy for dataset content: a
// direct file API call first, then a utility job chosen by the dataset
// organization.
type Resolver struct {
	jobs       *jobs.Orchestrator
	card       jcl.JobCard
	memberPath MemberPath
}

func NewResolver(orch *jobs.Orchestrator, card jcl.JobCard, memberPath MemberPath) *Resolver {
	if !memberPath.Valid() {
		memberPath = MemberPathParen
	}
	return &Resolver{jobs: orch, card: card, memberPath: memberPath}
}

func (r *Resolver) memberURL(name, member string) string {
	if r.memberPath == MemberPathRecords {
		return fmt.Sprintf("restfiles/ds/%s/member/%s/records", url.PathEscape(name), url.PathEscape(member))
	}
	return fmt.Sprintf("restfiles/ds/%s(%s)", url.PathEscape(name), url.PathEscape(member))
}

// ReadMember returns the content of a member. The direct read is tried
// first; when it fails or answers with structured data the dataset
// organization decides between an IEBGENER job (PO) and a plain read of
// the dataset itself (PS).
func (r *Resolver) ReadMember(ctx context.Context, s jobs.Doer, name, member string) (string, error) {
	logger := zerolog.Ctx(ctx)

	res, err := r.readDirect(ctx, s, r.memberURL(name, member), fmt.Sprintf("failed to read %s(%s)", name, member))
	if err != nil {
		return "", err
	}
	if !res.fallback {
		return res.content, nil
	}
	logger.Debug().AnErr("cause", res.cause).Msg("direct member read unavailable")

	ds, err := Describe(ctx, s, name)
	if err != nil {
		return "", err
	}

	switch Classify(ds.Org) {
	case Partitioned:
		logger.Info().Str("dataset", name).Str("member", member).Msg("reading member through IEBGENER job")
		return r.ViewMember(ctx, s, name, member)
	case Sequential:
		return r.readSequential(ctx, s, name)
	default:
		return "", fmt.Errorf("%s: %w: %q", name, connection.ErrUnsupportedOrganization, ds.Org)
	}
}

// ViewMember reads a member only through an IEBGENER job and the SYSUT2
// output stream.
func (r *Resolver) ViewMember(ctx context.Context, s jobs.Doer, name, member string) (string, error) {
	stream, err := jcl.ReadMember(r.card, name, member)
	if err != nil {
		return "", err
	}
	return r.jobs.SubmitAndAwait(ctx, s, stream, jobs.DDSysut2)
}

// ReadDataset returns the content of a sequential dataset.
func (r *Resolver) ReadDataset(ctx context.Context, s jobs.Doer, name string) (string, error) {
	ds, err := Describe(ctx, s, name)
	if err != nil {
		return "", err
	}

	switch Classify(ds.Org) {
	case Partitioned:
		return "", fmt.Errorf("%s: %w", name, connection.ErrPartitioned)
	case Sequential:
		return r.readSequential(ctx, s, name)
	default:
		return "", fmt.Errorf("%s: %w: %q", name, connection.ErrUnsupportedOrganization, ds.Org)
	}
}

func (r *Resolver) readSequential(ctx context.Context, s jobs.Doer, name string) (string, error) {
	path := fmt.Sprintf("restfiles/ds/%s", url.PathEscape(name))
	res, err := r.readDirect(ctx, s, path, fmt.Sprintf("failed to read %s", name))
	if err != nil {
		return "", err
	}
	if res.fallback {
		return "", res.cause
	}
	return res.content, nil
}

// readDirect asks for plain text. Facility rejections and structured
// answers other than a record list call for the job path; transport
// failures abort.
func (r *Resolver) readDirect(ctx context.Context, s jobs.Doer, path, action string) (outcome, error) {
	p, err := s.Do(ctx, connection.Request{
		Action:   action,
		Path:     path,
		Accept:   connection.AcceptText,
		DataType: "text",
	})
	if err != nil {
		var re *connection.RemoteError
		if errors.As(err, &re) {
			return needsJobFallback(err), nil
		}
		return outcome{}, err
	}
	if p.Structured() {
		var rec struct {
			Records []string `json:"records"`
		}
		if err := p.Decode(&rec); err == nil && rec.Records != nil {
			return direct(strings.Join(rec.Records, "\n")), nil
		}
		return needsJobFallback(fmt.Errorf("%s: structured response to a text request", action)), nil
	}
	return direct(p.Text()), nil
}

// WriteMember stores content as a member. A direct PUT is tried first;
// when the facility rejects it, an IEBUPDTE (PO) or IEBGENER (PS) job does
// the write and its SYSPRINT is scanned for ERROR or FAILED.
func (r *Resolver) WriteMember(ctx context.Context, s jobs.Doer, name, member, content string) error {
	logger := zerolog.Ctx(ctx)

	res, err := r.writeDirect(ctx, s, name, member, content)
	if err != nil {
		return err
	}
	if !res.fallback {
		return nil
	}
	logger.Debug().AnErr("cause", res.cause).Msg("direct member write unavailable")

	ds, err := Describe(ctx, s, name)
	if err != nil {
		return err
	}

	var stream string
	switch Classify(ds.Org) {
	case Partitioned:
		stream, err = jcl.AddMember(r.card, name, member, content)
	case Sequential:
		stream, err = jcl.WriteSequential(r.card, name, content)
	default:
		return fmt.Errorf("%s: %w: %q", name, connection.ErrUnsupportedOrganization, ds.Org)
	}
	if err != nil {
		return err
	}

	logger.Info().Str("dataset", name).Str("member", member).Str("org", ds.Org).Msg("writing through utility job")
	sysprint, err := r.jobs.SubmitAndAwait(ctx, s, stream, jobs.DDSysprint)
	if err != nil {
		return err
	}
	if UtilityFailed(sysprint) {
		return &connection.RemoteError{
			Action: fmt.Sprintf("failed to write %s(%s)", name, member),
			Status: http.StatusInternalServerError,
			Body:   sysprint,
		}
	}
	return nil
}

// UtilityFailed reports whether utility SYSPRINT output signals failure.
// The match is a case-sensitive substring test for ERROR or FAILED.
func UtilityFailed(sysprint string) bool {
	return strings.Contains(sysprint, "ERROR") || strings.Contains(sysprint, "FAILED")
}

func (r *Resolver) writeDirect(ctx context.Context, s jobs.Doer, name, member, content string) (outcome, error) {
	_, err := s.Do(ctx, connection.Request{
		Action:      fmt.Sprintf("failed to write %s(%s)", name, member),
		Method:      http.MethodPut,
		Path:        r.memberURL(name, member),
		ContentType: connection.AcceptText,
		DataType:    "text",
		Body:        []byte(content),
	})
	if err != nil {
		var re *connection.RemoteError
		if errors.As(err, &re) {
			return needsJobFallback(err), nil
		}
		return outcome{}, err
	}
	return direct(""), nil
}
