package dataset

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"zgate/internal/connection"
	"zgate/internal/jobs"
)

type Organization int

const (
	Unsupported Organization = iota
	Partitioned
	Sequential
)

func (o Organization) String() string {
	switch o {
	case Partitioned:
		return "partitioned"
	case Sequential:
		return "sequential"
	default:
		return "unsupported"
	}
}

// Classify maps an organization code to the strategy category: any code
// containing "PO" is partitioned, any containing "PS" sequential. Every
// other code, including an empty one, is unsupported.
func Classify(org string) Organization {
	switch {
	case strings.Contains(org, "PO"):
		return Partitioned
	case strings.Contains(org, "PS"):
		return Sequential
	default:
		return Unsupported
	}
}

// List returns the datasets matching a dslevel pattern such as USER.*.
func List(ctx context.Context, s jobs.Doer, pattern string) ([]connection.Dataset, error) {
	p, err := s.Do(ctx, connection.Request{
		Action: "failed to list datasets",
		Path:   "restfiles/ds?dslevel=" + url.QueryEscape(pattern),
		Header: attributesBase(),
	})
	if err != nil {
		return nil, err
	}

	items, err := connection.DecodeItems[connection.Dataset](p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset list: %w", err)
	}
	return items, nil
}

// Describe fetches the attributes of one dataset. It is never cached:
// a dataset may be reorganized between calls.
func Describe(ctx context.Context, s jobs.Doer, name string) (*connection.Dataset, error) {
	items, err := List(ctx, s, name)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Name == name {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("dataset %s: %w", name, connection.ErrNotFound)
}

type memberItem struct {
	Member   string `json:"member"`
	ID       any    `json:"id"`
	Version  any    `json:"version"`
	Modified any    `json:"modified"`
	Vers     any    `json:"vers"`
	Mod      any    `json:"mod"`
	C4date   string `json:"c4date"`
	M4date   string `json:"m4date"`
	Mtime    string `json:"mtime"`
	Cnorc    any    `json:"cnorc"`
	Inorc    any    `json:"inorc"`
	Mnorc    any    `json:"mnorc"`
	User     string `json:"user"`
}

func ListMembers(ctx context.Context, s jobs.Doer, name string) ([]connection.Member, error) {
	p, err := s.Do(ctx, connection.Request{
		Action: fmt.Sprintf("failed to list members of %s", name),
		Path:   fmt.Sprintf("restfiles/ds/%s/member", url.PathEscape(name)),
	})
	if err != nil {
		return nil, err
	}

	items, err := connection.DecodeItems[memberItem](p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse member list: %w", err)
	}

	members := make([]connection.Member, 0, len(items))
	for _, item := range items {
		m := connection.Member{
			Name:     item.Member,
			ID:       connection.Str(item.ID),
			Version:  connection.Str(item.Version),
			Modified: connection.Str(item.Modified),
			VV:       connection.Int(item.Vers),
			MM:       connection.Int(item.Mod),
			Created:  item.C4date,
			Size:     connection.Int(item.Cnorc),
			Init:     connection.Int(item.Inorc),
			Mod:      connection.Int(item.Mnorc),
			User:     item.User,
		}
		if item.Mtime != "" {
			m.Changed = item.M4date + " " + item.Mtime
		} else {
			m.Changed = item.M4date
		}
		if m.Modified == "" {
			m.Modified = m.Changed
		}
		members = append(members, m)
	}
	return members, nil
}

func attributesBase() map[string][]string {
	return map[string][]string{"X-IBM-Attributes": {"base"}}
}
