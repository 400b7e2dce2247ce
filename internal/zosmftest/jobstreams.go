package zosmftest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

var dsnParam = regexp.MustCompile(`DSN=([A-Z0-9#$@.\-]+)(?:\(([A-Z0-9#$@]+)\))?`)

type ddStatement struct {
	params string
	data   []string
}

type jobStream struct {
	name    string
	program string
	dds     map[string]*ddStatement
}

// parseStream reads the statements the gateway generates: named
// statements, "// " continuations and DLM-delimited in-stream data.
func parseStream(stream string) jobStream {
	js := jobStream{dds: make(map[string]*ddStatement)}

	var (
		current *ddStatement
		params  *string
		inData  bool
		dlm     string
	)
	for _, line := range strings.Split(stream, "\n") {
		if inData {
			if strings.HasPrefix(line, dlm) {
				inData = false
				continue
			}
			current.data = append(current.data, line)
			continue
		}
		if !strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "// ") {
			if params != nil {
				*params += strings.TrimSpace(line[2:])
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimPrefix(fields[0], "//")
		rest := ""
		if len(fields) > 2 {
			rest = fields[2]
		}

		switch fields[1] {
		case "JOB":
			js.name = name
			params = nil
		case "EXEC":
			js.program = strings.TrimPrefix(strings.Split(rest, ",")[0], "PGM=")
			params = nil
		case "DD":
			current = &ddStatement{params: rest}
			js.dds[name] = current
			params = &current.params
			if strings.HasPrefix(rest, "DATA") || strings.HasPrefix(rest, "*") {
				inData = true
				dlm = "/*"
				if i := strings.Index(rest, "DLM="); i >= 0 {
					dlm = strings.Trim(rest[i+4:], "'")
				}
			}
		}
	}
	return js
}

func (d *ddStatement) dsn() (string, string) {
	if d == nil {
		return "", ""
	}
	m := dsnParam.FindStringSubmatch(d.params)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// run executes a submitted job stream against the facility datasets.
func (f *Facility) run(stream string) *job {
	js := parseStream(stream)
	j := f.newJob(js.name)
	f.addOutput(j, "JESMSGLG", "JES2", "$HASP373 "+js.name+" STARTED - CLASS A")

	var (
		sysprint string
		sysut2   *string
		failed   bool
	)
	switch js.program {
	case "IEBGENER":
		sysprint, sysut2, failed = f.generate(js)
	case "IEBUPDTE":
		sysprint, failed = f.update(js)
	default:
		sysprint, failed = "IEW4000I PROGRAM "+js.program+" NOT FOUND", true
	}
	if f.Sysprint != "" {
		sysprint = f.Sysprint
	}
	if failed {
		j.RetCode = "CC 0012"
	}

	f.addOutput(j, "SYSPRINT", "STEP1", sysprint)
	if sysut2 != nil {
		f.addOutput(j, "SYSUT2", "STEP1", *sysut2)
	}
	return j
}

func (f *Facility) generate(js jobStream) (string, *string, bool) {
	in, out := js.dds["SYSUT1"], js.dds["SYSUT2"]
	if in == nil || out == nil {
		return "IEB311I CONFLICTING PARAMETERS - ERROR", nil, true
	}

	// In-stream SYSUT1 replaces a sequential dataset.
	if in.data != nil || strings.HasPrefix(in.params, "DATA") {
		name, _ := out.dsn()
		ds, ok := f.datasets[name]
		if !ok {
			return "IEF212I " + name + " - DATA SET NOT FOUND - ERROR", nil, true
		}
		ds.Content = strings.Join(in.data, "\n")
		return "DATA SET UTILITY - GENERATE\nPROCESSING ENDED AT EOD", nil, false
	}

	name, member := in.dsn()
	ds, ok := f.datasets[name]
	if !ok {
		return "IEF212I " + name + " - DATA SET NOT FOUND - ERROR", nil, true
	}
	content := ds.Content
	if member != "" {
		c, found := ds.Members[member]
		if !found {
			return "IEC143I 213-2C MEMBER " + member + " NOT FOUND - ERROR", nil, true
		}
		content = c
	}
	return "DATA SET UTILITY - GENERATE\nPROCESSING ENDED AT EOD", &content, false
}

func (f *Facility) update(js jobStream) (string, bool) {
	out, in := js.dds["SYSUT2"], js.dds["SYSIN"]
	if out == nil || in == nil {
		return "IEB805I CONTROL STATEMENT ERROR", true
	}
	name, _ := out.dsn()
	ds, ok := f.datasets[name]
	if !ok {
		return "IEF212I " + name + " - DATA SET NOT FOUND - ERROR", true
	}

	var (
		member string
		lines  []string
	)
	for _, line := range in.data {
		switch {
		case strings.HasPrefix(line, "./ ADD NAME="):
			member = strings.TrimSpace(strings.TrimPrefix(line, "./ ADD NAME="))
		case strings.HasPrefix(line, "./ ENDUP"):
		default:
			lines = append(lines, line)
		}
	}
	if member == "" {
		return "IEB805I CONTROL STATEMENT ERROR", true
	}
	ds.Members[member] = strings.Join(lines, "\n")
	return fmt.Sprintf("IEB817I MEMBER NAME (%s) STOWED\nIEB818I HIGHEST CONDITION CODE WAS 00000000", member), false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"rc": 4, "reason": 0, "category": 1, "message": msg})
}

func readAll(r *http.Request) (string, error) {
	b, err := io.ReadAll(r.Body)
	return string(b), err
}
