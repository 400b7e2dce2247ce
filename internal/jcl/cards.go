package jcl

import (
	"fmt"
	"strings"

	"zgate/internal/connection"
)

const (
	// StatementColumns is the last column a JCL statement may use;
	// column 72 is the continuation column and 73-80 the sequence field.
	StatementColumns = 71
	// RecordColumns is the length of an in-stream data record.
	RecordColumns = 80

	continuation    = "//             "
	minContinuation = "// "
)

// statement renders one JCL statement, folding parameters onto
// continuation lines so that no line passes column 71.
func statement(name, op string, params ...string) string {
	line := fmt.Sprintf("//%-8s %s", name, op)
	if len(params) == 0 {
		return line
	}
	line += " "

	var lines []string
	first := true
	for i, param := range params {
		sep := ""
		if i < len(params)-1 {
			sep = ","
		}
		if !first && len(line)+len(param)+len(sep) > StatementColumns {
			lines = append(lines, line)
			line = continuation
			if len(line)+len(param)+len(sep) > StatementColumns {
				line = minContinuation
			}
		}
		line += param + sep
		first = false
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

// Validate checks the card layout of a job stream: statements must fit in
// 71 columns and in-stream records in 80. Records outside an in-stream
// data set are rejected.
func Validate(stream string) error {
	inData := false
	dlm := ""

	lines := strings.Split(strings.TrimRight(stream, "\n"), "\n")
	for i, line := range lines {
		n := i + 1
		if inData {
			if endsData(line, dlm) {
				inData = false
				if !strings.HasPrefix(line, "//") {
					continue
				}
			} else {
				if len(line) > RecordColumns {
					return fmt.Errorf("%w: record %d exceeds %d columns", connection.ErrInvalidJobStream, n, RecordColumns)
				}
				continue
			}
		}

		if !strings.HasPrefix(line, "//") && !strings.HasPrefix(line, "/*") {
			return fmt.Errorf("%w: record %d is not a JCL statement: %q", connection.ErrInvalidJobStream, n, line)
		}
		if len(line) > StatementColumns {
			return fmt.Errorf("%w: statement %d exceeds %d columns", connection.ErrInvalidJobStream, n, StatementColumns)
		}
		if d, ok := opensData(line); ok {
			inData = true
			dlm = d
		}
	}
	if inData && dlm != "" {
		return fmt.Errorf("%w: in-stream data not terminated by %s", connection.ErrInvalidJobStream, dlm)
	}
	return nil
}

// opensData reports whether a DD statement starts in-stream data and
// returns its explicit delimiter, if any.
func opensData(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[1] != "DD" {
		return "", false
	}
	params := strings.Split(fields[2], ",")
	if params[0] != "*" && params[0] != "DATA" {
		return "", false
	}
	for _, p := range params[1:] {
		if strings.HasPrefix(p, "DLM=") {
			return strings.Trim(strings.TrimPrefix(p, "DLM="), "'"), true
		}
	}
	return "", true
}

func endsData(line, dlm string) bool {
	if dlm != "" {
		return strings.HasPrefix(line, dlm)
	}
	return strings.HasPrefix(line, "/*") || strings.HasPrefix(line, "//")
}
