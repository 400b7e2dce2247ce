package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrUnsupportedOrganization = errors.New("unsupported dataset organization")
	ErrPartitioned             = errors.New("dataset is partitioned, use a member operation")
	ErrJobTimeout              = errors.New("job did not complete in time")
	ErrInvalidName             = errors.New("invalid name")
	ErrInvalidJobStream        = errors.New("invalid job stream")
)

// AuthError is returned when the facility rejects the handshake.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	if msg := remoteMessage(e.Body); msg != "" {
		return fmt.Sprintf("authentication failed: %s (status %d)", msg, e.Status)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.Status)
}

// TransportError covers failures below HTTP: DNS, refused and reset
// connections, and request timeouts.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: connection error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func newTransportError(op string, err error) *TransportError {
	te := &TransportError{Op: op, Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		te.Timeout = true
	}
	return te
}

// RemoteError is a non-2xx answer from the facility. Body holds the
// response text exactly as received.
type RemoteError struct {
	Action string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	if msg := remoteMessage(e.Body); msg != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Action, msg, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Action, e.Status)
}

// SubmitError is a rejected job submission.
type SubmitError struct {
	*RemoteError
}

func (e *SubmitError) Unwrap() error { return e.RemoteError }

// IsRetryable reports whether err belongs to the retryable class. Only
// transport failures qualify; the gateway itself never retries.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func remoteMessage(body string) string {
	var errResp struct {
		Message string `json:"message"`
		Details []struct {
			Message string `json:"messageText"`
		} `json:"details"`
	}
	if json.Unmarshal([]byte(body), &errResp) == nil && errResp.Message != "" {
		msg := errResp.Message
		if len(errResp.Details) > 0 && errResp.Details[0].Message != "" {
			msg += ": " + errResp.Details[0].Message
		}
		return msg
	}
	return strings.TrimSpace(body)
}
