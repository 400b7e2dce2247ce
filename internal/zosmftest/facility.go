// Package zosmftest provides an in-memory z/OSMF facility for tests. It
// serves the handshake, the dataset and job REST paths, and runs the
// IEBGENER and IEBUPDTE job streams the gateway generates.
package zosmftest

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"zgate/internal/connection"
)

const (
	DefaultUser     = "U"
	DefaultPassword = "S"
	DefaultToken    = "tok-123"
)

const (
	MemberRecords = "records"
	MemberMessage = "message"
)

type Dataset struct {
	Org     string
	Content string
	Members map[string]string
}

type job struct {
	connection.Job
	files  []connection.JobFile
	output map[int]string
	checks int
}

// Facility is a fake z/OSMF. Exported fields configure its behaviour and
// must be set before the first request.
type Facility struct {
	User     string
	Password string
	// Token is returned by the handshake; empty means no token header.
	Token string

	HandshakeStatus int
	HandshakeBody   string

	// DirectReads and DirectWrites enable the file API content paths.
	// When disabled they answer 500, forcing the job path.
	DirectReads  bool
	DirectWrites bool

	// PollsUntilOutput is the number of status checks answered ACTIVE
	// before OUTPUT. Negative means the job never finishes.
	PollsUntilOutput int

	SubmitStatus int
	SubmitBody   string

	// Sysprint replaces the SYSPRINT text of utility jobs.
	Sysprint string

	// RecordsJSON answers spool records as {"records": [...]}.
	RecordsJSON bool

	// MemberJSON makes direct member reads answer with application/json:
	// MemberRecords wraps the lines in {"records": [...]}, MemberMessage
	// returns a message document instead of the content.
	MemberJSON string

	mu       sync.Mutex
	server   *httptest.Server
	datasets map[string]*Dataset
	jobs     map[string]*job
	nextJob  int

	handshakes   int
	submits      int
	statusChecks int
	requests     []string
	tokensSeen   []string
	jobStreams   []string
}

func New() *Facility {
	return &Facility{
		User:         DefaultUser,
		Password:     DefaultPassword,
		Token:        DefaultToken,
		DirectReads:  true,
		DirectWrites: true,
		datasets:     make(map[string]*Dataset),
		jobs:         make(map[string]*job),
		nextJob:      1,
	}
}

// Start serves the facility over TLS until the test ends.
func (f *Facility) Start(t testing.TB) *Facility {
	f.server = httptest.NewTLSServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *Facility) Profile() connection.Profile {
	u, _ := url.Parse(f.server.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return connection.Profile{Host: host, Port: port, User: f.User, Password: f.Password}
}

func (f *Facility) AddPDS(name string, members map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := make(map[string]string, len(members))
	for k, v := range members {
		m[k] = v
	}
	f.datasets[name] = &Dataset{Org: "PO", Members: m}
}

func (f *Facility) AddSequential(name, content string) {
	f.AddDataset(name, "PS", content)
}

func (f *Facility) AddDataset(name, org, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datasets[name] = &Dataset{Org: org, Content: content, Members: map[string]string{}}
}

// SetOrg changes the organization code reported for a dataset.
func (f *Facility) SetOrg(name, org string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ds, ok := f.datasets[name]; ok {
		ds.Org = org
	}
}

func (f *Facility) Member(name, member string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.datasets[name]
	if !ok {
		return "", false
	}
	c, ok := ds.Members[member]
	return c, ok
}

func (f *Facility) Content(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ds, ok := f.datasets[name]; ok {
		return ds.Content
	}
	return ""
}

func (f *Facility) Handshakes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handshakes
}

func (f *Facility) Submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func (f *Facility) StatusChecks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusChecks
}

// Requests lists "METHOD path" for every request after the handshake.
func (f *Facility) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// TokensSeen lists the X-CSRF-ZOSMF-TOKEN value of every request after
// the handshake.
func (f *Facility) TokensSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokensSeen...)
}

// JobStreams lists the inline JCL of every submission.
func (f *Facility) JobStreams() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.jobStreams...)
}

func (f *Facility) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != f.User || pass != f.Password {
		writeError(w, http.StatusUnauthorized, "IZUG846W: invalid credentials")
		return
	}

	if r.URL.Path == "/zosmf/" || r.URL.Path == "/zosmf" {
		f.handshake(w)
		return
	}

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.tokensSeen = append(f.tokensSeen, r.Header.Get(connection.TokenHeader))

	if r.Header.Get(connection.CSRFHeader) == "" {
		writeError(w, http.StatusForbidden, "missing "+connection.CSRFHeader)
		return
	}
	if f.Token != "" && r.Header.Get(connection.TokenHeader) != f.Token {
		writeError(w, http.StatusForbidden, "invalid anti-forgery token")
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/zosmf/restfiles/ds"):
		f.files(w, r, strings.TrimPrefix(r.URL.Path, "/zosmf/restfiles/ds"))
	case strings.HasPrefix(r.URL.Path, "/zosmf/restjobs/jobs"):
		f.jobsAPI(w, r, strings.TrimPrefix(r.URL.Path, "/zosmf/restjobs/jobs"))
	default:
		writeError(w, http.StatusNotFound, "no such path")
	}
}

func (f *Facility) handshake(w http.ResponseWriter) {
	f.handshakes++
	if f.HandshakeStatus != 0 && f.HandshakeStatus != http.StatusOK {
		w.WriteHeader(f.HandshakeStatus)
		fmt.Fprint(w, f.HandshakeBody)
		return
	}
	if f.Token != "" {
		w.Header().Set(connection.TokenHeader, f.Token)
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"zosmf_version":"27"}`)
}

func (f *Facility) files(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		f.listDatasets(w, r.URL.Query().Get("dslevel"))
		return
	}
	rest = strings.TrimPrefix(rest, "/")

	// ds/NAME(MEMBER)
	if open := strings.Index(rest, "("); open > 0 && strings.HasSuffix(rest, ")") {
		f.memberContent(w, r, rest[:open], rest[open+1:len(rest)-1])
		return
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1:
		f.datasetContent(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "member":
		f.listMembers(w, parts[0])
	case len(parts) == 4 && parts[1] == "member" && parts[3] == "records":
		f.memberContent(w, r, parts[0], parts[2])
	default:
		writeError(w, http.StatusNotFound, "no such path")
	}
}

func (f *Facility) listDatasets(w http.ResponseWriter, pattern string) {
	var names []string
	for name := range f.datasets {
		if matchLevel(pattern, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	items := make([]map[string]any, 0, len(names))
	for _, name := range names {
		items = append(items, map[string]any{
			"dsname": name,
			"dsorg":  f.datasets[name].Org,
			"recfm":  "FB",
			"lrecl":  80,
			"blksz":  "27920",
			"vol":    "VOL001",
			"dev":    "3390",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "returnedRows": len(items)})
}

func matchLevel(pattern, name string) bool {
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == name
}

func (f *Facility) listMembers(w http.ResponseWriter, name string) {
	ds, ok := f.datasets[name]
	if !ok {
		writeError(w, http.StatusNotFound, "dataset not found: "+name)
		return
	}
	var names []string
	for m := range ds.Members {
		names = append(names, m)
	}
	sort.Strings(names)

	items := make([]map[string]any, 0, len(names))
	for _, m := range names {
		items = append(items, map[string]any{
			"member": m,
			"vers":   1,
			"mod":    2,
			"c4date": "2025/01/01",
			"m4date": "2025/02/01",
			"mtime":  "10:30",
			"cnorc":  len(strings.Split(ds.Members[m], "\n")),
			"user":   f.User,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (f *Facility) memberContent(w http.ResponseWriter, r *http.Request, name, member string) {
	ds, ok := f.datasets[name]
	switch r.Method {
	case http.MethodGet:
		if !f.DirectReads {
			writeError(w, http.StatusInternalServerError, "direct member access unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "dataset not found: "+name)
			return
		}
		if !strings.Contains(ds.Org, "PO") {
			writeError(w, http.StatusBadRequest, "dataset is not partitioned: "+name)
			return
		}
		content, found := ds.Members[member]
		if !found {
			writeError(w, http.StatusNotFound, "member not found: "+member)
			return
		}
		switch f.MemberJSON {
		case MemberRecords:
			writeJSON(w, http.StatusOK, map[string]any{"records": strings.Split(content, "\n")})
		case MemberMessage:
			writeJSON(w, http.StatusOK, map[string]any{"rc": 0, "message": "member content not available as text"})
		default:
			writeText(w, content)
		}
	case http.MethodPut:
		if !f.DirectWrites {
			writeError(w, http.StatusInternalServerError, "direct member access unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "dataset not found: "+name)
			return
		}
		if !strings.Contains(ds.Org, "PO") {
			writeError(w, http.StatusBadRequest, "dataset is not partitioned: "+name)
			return
		}
		body, _ := readAll(r)
		ds.Members[member] = body
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (f *Facility) datasetContent(w http.ResponseWriter, r *http.Request, name string) {
	ds, ok := f.datasets[name]
	if !ok {
		writeError(w, http.StatusNotFound, "dataset not found: "+name)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if strings.Contains(ds.Org, "PO") {
		writeError(w, http.StatusBadRequest, "dataset is partitioned")
		return
	}
	writeText(w, ds.Content)
}

func (f *Facility) jobsAPI(w http.ResponseWriter, r *http.Request, rest string) {
	rest = strings.Trim(rest, "/")
	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			f.submit(w, r)
		case http.MethodGet:
			f.listJobs(w, r.URL.Query())
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, "no such path")
		return
	}
	j, ok := f.jobs[parts[1]]
	if !ok || j.JobName != parts[0] {
		writeError(w, http.StatusNotFound, "job not found: "+rest)
		return
	}

	switch {
	case len(parts) == 2:
		f.statusChecks++
		j.checks++
		status := j.Job
		if f.PollsUntilOutput < 0 || j.checks <= f.PollsUntilOutput {
			status.Status = "ACTIVE"
			status.RetCode = ""
		}
		writeJSON(w, http.StatusOK, status)
	case len(parts) == 3 && parts[2] == "files":
		writeJSON(w, http.StatusOK, j.files)
	case len(parts) == 5 && parts[2] == "files" && parts[4] == "records":
		id, _ := strconv.Atoi(parts[3])
		text, ok := j.output[id]
		if !ok {
			writeError(w, http.StatusNotFound, "no such file")
			return
		}
		if f.RecordsJSON {
			records := []string{}
			if text != "" {
				records = strings.Split(text, "\n")
			}
			writeJSON(w, http.StatusOK, map[string]any{"records": records})
			return
		}
		writeText(w, text)
	default:
		writeError(w, http.StatusNotFound, "no such path")
	}
}

func (f *Facility) listJobs(w http.ResponseWriter, q url.Values) {
	owner := q.Get("owner")
	jobid := q.Get("jobid")

	var ids []string
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list := []connection.Job{}
	for _, id := range ids {
		j := f.jobs[id]
		if owner != "" && owner != "*" && owner != j.Owner {
			continue
		}
		if jobid != "" && jobid != j.JobID {
			continue
		}
		list = append(list, j.Job)
	}
	writeJSON(w, http.StatusOK, list)
}

func (f *Facility) submit(w http.ResponseWriter, r *http.Request) {
	f.submits++
	body, _ := readAll(r)

	if f.SubmitStatus != 0 {
		w.WriteHeader(f.SubmitStatus)
		fmt.Fprint(w, f.SubmitBody)
		return
	}

	var req struct {
		File string `json:"file"`
		JCL  string `json:"jcl"`
	}
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid submit body")
		return
	}

	var j *job
	switch {
	case req.File == "inline":
		f.jobStreams = append(f.jobStreams, req.JCL)
		j = f.run(req.JCL)
	case strings.HasPrefix(req.File, "//'"):
		j = f.newJob(refJobName(req.File))
		f.addOutput(j, "JESMSGLG", "JES2", "$HASP373 "+j.JobName+" STARTED")
	default:
		writeError(w, http.StatusBadRequest, "unsupported file reference")
		return
	}
	writeJSON(w, http.StatusCreated, j.Job)
}

func refJobName(ref string) string {
	ref = strings.TrimSuffix(strings.TrimPrefix(ref, "//'"), "'")
	if open := strings.Index(ref, "("); open >= 0 {
		return strings.TrimSuffix(ref[open+1:], ")")
	}
	return "JOB"
}

func (f *Facility) newJob(name string) *job {
	id := fmt.Sprintf("JOB%05d", f.nextJob)
	f.nextJob++
	j := &job{
		Job: connection.Job{
			JobID:   id,
			JobName: name,
			Owner:   strings.ToUpper(f.User),
			Status:  "OUTPUT",
			RetCode: "CC 0000",
			Class:   "A",
		},
		output: make(map[int]string),
	}
	f.jobs[id] = j
	return j
}

func (f *Facility) addOutput(j *job, dd, step, text string) {
	id := len(j.files) + 1
	j.files = append(j.files, connection.JobFile{ID: id, DDName: dd, StepName: step})
	j.output[id] = text
}
