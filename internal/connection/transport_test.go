package connection_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zgate/internal/connection"
	"zgate/internal/zosmftest"
)

func profileFor(t *testing.T, srv *httptest.Server) connection.Profile {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return connection.Profile{Host: host, Port: port, User: "U", Password: "S"}
}

func TestAcquireToken(t *testing.T) {
	t.Run("token issued", func(t *testing.T) {
		f := zosmftest.New().Start(t)
		tr := connection.NewTransport(connection.Options{})
		defer tr.Close()

		token, err := tr.AcquireToken(context.Background(), f.Profile())
		require.NoError(t, err)
		assert.Equal(t, zosmftest.DefaultToken, token)
		assert.Equal(t, 1, f.Handshakes())
	})

	t.Run("no token header", func(t *testing.T) {
		f := zosmftest.New()
		f.Token = ""
		f.Start(t)
		tr := connection.NewTransport(connection.Options{})
		defer tr.Close()

		token, err := tr.AcquireToken(context.Background(), f.Profile())
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		f := zosmftest.New()
		f.HandshakeStatus = http.StatusUnauthorized
		f.HandshakeBody = "Unauthorized: bad password"
		f.Start(t)
		tr := connection.NewTransport(connection.Options{})
		defer tr.Close()

		_, err := tr.AcquireToken(context.Background(), f.Profile())
		var authErr *connection.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusUnauthorized, authErr.Status)
		assert.Equal(t, "Unauthorized: bad password", authErr.Body)
		assert.False(t, connection.IsRetryable(err))
	})

	t.Run("server error is an auth failure", func(t *testing.T) {
		f := zosmftest.New()
		f.HandshakeStatus = http.StatusServiceUnavailable
		f.Start(t)
		tr := connection.NewTransport(connection.Options{})
		defer tr.Close()

		_, err := tr.AcquireToken(context.Background(), f.Profile())
		var authErr *connection.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusServiceUnavailable, authErr.Status)
	})
}

func TestOpenRejectsIncompleteProfile(t *testing.T) {
	tr := connection.NewTransport(connection.Options{})
	defer tr.Close()

	_, err := tr.Open(context.Background(), connection.Profile{Host: "h", Port: 443, User: "U"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
}

func TestSessionSendsTokenOnEveryRequest(t *testing.T) {
	f := zosmftest.New().Start(t)
	f.AddSequential("U.DATA", "x")
	tr := connection.NewTransport(connection.Options{})
	defer tr.Close()

	s, err := tr.Open(context.Background(), f.Profile())
	require.NoError(t, err)
	assert.True(t, s.HasToken())

	for i := 0; i < 3; i++ {
		_, err := s.Do(context.Background(), connection.Request{Path: "restfiles/ds?dslevel=U.*"})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{zosmftest.DefaultToken, zosmftest.DefaultToken, zosmftest.DefaultToken}, f.TokensSeen())
	assert.Equal(t, 1, f.Handshakes())
}

func TestSessionHeaders(t *testing.T) {
	var (
		mu  sync.Mutex
		got http.Header
	)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/zosmf/" {
			w.Header().Set(connection.TokenHeader, "abc")
			return
		}
		mu.Lock()
		got = r.Header.Clone()
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := connection.NewTransport(connection.Options{})
	defer tr.Close()
	s, err := tr.Open(context.Background(), profileFor(t, srv))
	require.NoError(t, err)

	_, err = s.Do(context.Background(), connection.Request{
		Method:      http.MethodPut,
		Path:        "restfiles/ds/U.SRC(A)",
		Accept:      connection.AcceptText,
		ContentType: connection.AcceptText,
		DataType:    "text",
		Body:        []byte("data"),
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "*", got.Get(connection.CSRFHeader))
	assert.Equal(t, "abc", got.Get(connection.TokenHeader))
	assert.Equal(t, connection.AcceptText, got.Get("Accept"))
	assert.Equal(t, connection.AcceptText, got.Get("Content-Type"))
	assert.Equal(t, "text", got.Get("X-IBM-Data-Type"))
	assert.Contains(t, got.Get("Authorization"), "Basic ")
}

func TestSessionNoTokenHeaderWhenNoneIssued(t *testing.T) {
	f := zosmftest.New()
	f.Token = ""
	f.Start(t)
	tr := connection.NewTransport(connection.Options{})
	defer tr.Close()

	s, err := tr.Open(context.Background(), f.Profile())
	require.NoError(t, err)
	assert.False(t, s.HasToken())

	_, err = s.Do(context.Background(), connection.Request{Path: "restjobs/jobs?owner=*&prefix=*"})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, f.TokensSeen())
}

func TestSessionPayloads(t *testing.T) {
	tests := []struct {
		name           string
		contentType    string
		body           string
		wantStructured bool
	}{
		{name: "object", contentType: "application/json", body: `{"items":[]}`, wantStructured: true},
		{name: "array", contentType: "application/json; charset=UTF-8", body: `[{"jobid":"JOB1"}]`, wantStructured: true},
		{name: "text", contentType: "text/plain", body: "HELLO\nWORLD\n", wantStructured: false},
		{name: "json shaped text", contentType: "text/plain", body: `{"records":["A","B"]}`, wantStructured: false},
		{name: "no content type", body: `{"env":"prod"}`, wantStructured: false},
		{name: "brace text", contentType: "application/json", body: "{ not json", wantStructured: false},
		{name: "empty", contentType: "application/json", body: "", wantStructured: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := connection.NewTransport(connection.Options{})
			defer tr.Close()
			s, err := tr.Open(context.Background(), profileFor(t, srv))
			require.NoError(t, err)

			p, err := s.Do(context.Background(), connection.Request{Path: "x"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStructured, p.Structured())
			assert.Equal(t, tt.body, p.Text())
		})
	}
}

func TestSessionRemoteError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/zosmf/" {
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"rc":4,"message":"Data set not found","details":[{"messageText":"U.NOPE"}]}`))
	}))
	defer srv.Close()

	tr := connection.NewTransport(connection.Options{})
	defer tr.Close()
	s, err := tr.Open(context.Background(), profileFor(t, srv))
	require.NoError(t, err)

	_, err = s.Do(context.Background(), connection.Request{Action: "failed to read U.NOPE", Path: "restfiles/ds/U.NOPE"})
	var re *connection.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Contains(t, re.Body, `"rc":4`)
	assert.Equal(t, "failed to read U.NOPE: Data set not found: U.NOPE (status 404)", err.Error())
	assert.False(t, connection.IsRetryable(err))
}

func TestSessionTimeout(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/zosmf/" {
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	tr := connection.NewTransport(connection.Options{Timeout: 100 * time.Millisecond})
	defer tr.Close()
	s, err := tr.Open(context.Background(), profileFor(t, srv))
	require.NoError(t, err)

	_, err = s.Do(context.Background(), connection.Request{Path: "restjobs/jobs"})
	var te *connection.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout)
	assert.True(t, connection.IsRetryable(err))
}

func TestConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	tr := connection.NewTransport(connection.Options{})
	defer tr.Close()

	_, err = tr.Open(context.Background(), connection.Profile{Host: "127.0.0.1", Port: port, User: "U", Password: "S"})
	var te *connection.TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, te.Timeout)
	assert.Equal(t, "handshake", te.Op)
}

func TestCustomFacilityRoot(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
	}))
	defer srv.Close()

	tr := connection.NewTransport(connection.Options{Facility: "/ibmzosmf/"})
	defer tr.Close()
	s, err := tr.Open(context.Background(), profileFor(t, srv))
	require.NoError(t, err)
	_, err = s.Do(context.Background(), connection.Request{Path: "restjobs/jobs"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/ibmzosmf/", "/ibmzosmf/restjobs/jobs"}, paths)
}

func TestDecodeItems(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "bare array", raw: `[{"jobid":"JOB1"},{"jobid":"JOB2"}]`, want: []string{"JOB1", "JOB2"}},
		{name: "envelope", raw: `{"items":[{"jobid":"JOB3"}],"returnedRows":1}`, want: []string{"JOB3"}},
		{name: "empty envelope", raw: `{"items":[]}`, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := connection.DecodeItems[connection.Job](&connection.Payload{Raw: []byte(tt.raw)})
			require.NoError(t, err)
			ids := []string{}
			for _, j := range items {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := connection.DecodeItems[connection.Job](&connection.Payload{Raw: []byte("not json")})
	assert.Error(t, err)
}

func TestDatasetAttributesAcceptNumbers(t *testing.T) {
	p := &connection.Payload{Raw: []byte(`{"items":[{"dsname":"U.SRC","dsorg":"PO-E","recfm":"FB","lrecl":80,"blksz":"27920","vol":"VOL001"}]}`)}
	items, err := connection.DecodeItems[connection.Dataset](p)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, connection.Dataset{
		Name: "U.SRC", Org: "PO-E", RecFm: "FB", LRecL: "80", BlkSize: "27920", Volume: "VOL001",
	}, items[0])
}

func TestProfileString(t *testing.T) {
	p := connection.Profile{Host: "mainframe.example.com", Port: 443, User: "IBMUSER", Password: "secret"}
	assert.Equal(t, "IBMUSER@mainframe.example.com:443", p.String())
	assert.NotContains(t, p.String(), "secret")
	assert.Equal(t, "https://mainframe.example.com:443", p.BaseURL())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "authentication failed (status 401)", (&connection.AuthError{Status: 401}).Error())
	assert.Equal(t, "submit: INVALID JCL (status 500)",
		(&connection.SubmitError{RemoteError: &connection.RemoteError{Action: "submit", Status: 500, Body: "INVALID JCL"}}).Error())

	te := &connection.TransportError{Op: "GET x", Err: context.DeadlineExceeded, Timeout: true}
	assert.True(t, errors.Is(te, context.DeadlineExceeded))
}

func TestProfileOwnPattern(t *testing.T) {
	tests := []struct {
		name string
		p    connection.Profile
		want string
	}{
		{name: "user id", p: connection.Profile{User: "ibmuser"}, want: "IBMUSER.*"},
		{name: "hlq", p: connection.Profile{User: "ibmuser", HLQ: "team"}, want: "TEAM.*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.OwnPattern())
		})
	}
}
