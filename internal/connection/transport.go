package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	CSRFHeader  = "X-CSRF-ZOSMF-HEADER"
	TokenHeader = "X-CSRF-ZOSMF-TOKEN"

	DefaultFacility = "zosmf"
	DefaultTimeout  = 30 * time.Second

	AcceptJSON = "application/json"
	AcceptText = "text/plain"

	maxBody = 64 << 20
)

type Options struct {
	Facility string
	Timeout  time.Duration
	// Client replaces the default client, whose TLS verification is
	// disabled for facility-managed and self-signed certificates.
	Client *http.Client
}

// Transport performs authenticated calls against the facility's file
// and job APIs. It holds no credentials and is safe for concurrent use.
type Transport struct {
	facility  string
	client    *http.Client
	transport *http.Transport
}

func NewTransport(opts Options) *Transport {
	t := &Transport{facility: strings.Trim(opts.Facility, "/")}
	if t.facility == "" {
		t.facility = DefaultFacility
	}
	if opts.Client != nil {
		t.client = opts.Client
		return t
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t.transport = &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
	}
	t.client = &http.Client{
		Timeout:   timeout,
		Transport: t.transport,
	}
	return t
}

func (t *Transport) Close() error {
	if t.transport != nil {
		t.transport.CloseIdleConnections()
	}
	return nil
}

func (t *Transport) endpoint(p Profile, path string) string {
	return fmt.Sprintf("%s/%s/%s", p.BaseURL(), t.facility, strings.TrimPrefix(path, "/"))
}

// Request describes one call relative to the facility root, for example
// "restfiles/ds?dslevel=USER.*".
type Request struct {
	Action      string
	Method      string
	Path        string
	Accept      string
	ContentType string
	DataType    string // X-IBM-Data-Type
	Header      http.Header
	Body        []byte
}

// Payload is a successful response body. A request negotiated as JSON may
// still come back as plain text, and text content may itself look like
// JSON; Structured tells the two apart by the response media type.
type Payload struct {
	Status int
	Header http.Header
	Raw    []byte
}

func (p *Payload) Text() string {
	return string(p.Raw)
}

// Structured reports whether the facility answered with a JSON document:
// an application/json media type and a JSON object or array body. A text
// answer is never structured, whatever its content.
func (p *Payload) Structured() bool {
	mediaType, _, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
	if err != nil || mediaType != AcceptJSON {
		return false
	}
	trimmed := bytes.TrimSpace(p.Raw)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(trimmed)
}

func (p *Payload) Decode(v any) error {
	return json.Unmarshal(p.Raw, v)
}

// DecodeItems accepts both a bare JSON array and an {"items": [...]}
// envelope, since installations differ.
func DecodeItems[T any](p *Payload) ([]T, error) {
	trimmed := bytes.TrimSpace(p.Raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var envelope struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// Session binds a profile to the token acquired for it. A session serves
// exactly one logical operation and is then discarded.
type Session struct {
	transport *Transport
	profile   Profile
	token     string
}

// Open performs the handshake for p and returns a session for one
// logical operation.
func (t *Transport) Open(ctx context.Context, p Profile) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	token, err := t.AcquireToken(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Session{transport: t, profile: p, token: token}, nil
}

func (s *Session) Profile() Profile {
	return s.profile
}

func (s *Session) HasToken() bool {
	return s.token != ""
}

func (s *Session) Do(ctx context.Context, req Request) (*Payload, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + req.Path
	action := req.Action
	if action == "" {
		action = op
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, s.transport.endpoint(s.profile, req.Path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	httpReq.SetBasicAuth(s.profile.User, s.profile.Password)
	httpReq.Header.Set(CSRFHeader, "*")
	if s.token != "" {
		httpReq.Header.Set(TokenHeader, s.token)
	}
	accept := req.Accept
	if accept == "" {
		accept = AcceptJSON
	}
	httpReq.Header.Set("Accept", accept)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.DataType != "" {
		httpReq.Header.Set("X-IBM-Data-Type", req.DataType)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	logger := zerolog.Ctx(ctx)
	start := time.Now()
	resp, err := s.transport.client.Do(httpReq)
	if err != nil {
		te := newTransportError(op, err)
		logger.Debug().Err(err).Str("method", method).Str("path", req.Path).Bool("timeout", te.Timeout).Msg("facility request failed")
		return nil, te
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, newTransportError(op, err)
	}

	logger.Debug().
		Str("method", method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("facility request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Action: action, Status: resp.StatusCode, Body: string(raw)}
	}
	return &Payload{Status: resp.StatusCode, Header: resp.Header, Raw: raw}, nil
}
