package jcl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"zgate/internal/connection"
)

const (
	// Delimiter closes in-stream data so that content lines starting
	// with "//" or "/*" are carried as data.
	Delimiter = "@@"

	DefaultAccount  = "ACCT"
	DefaultClass    = "A"
	DefaultMsgClass = "A"
)

// JobCard holds the accounting fields of the generated JOB statements.
type JobCard struct {
	Account  string `yaml:"account"`
	Class    string `yaml:"class"`
	MsgClass string `yaml:"msgclass"`
}

func DefaultJobCard() JobCard {
	return JobCard{Account: DefaultAccount, Class: DefaultClass, MsgClass: DefaultMsgClass}
}

// WithDefaults fills empty fields with the defaults.
func (c JobCard) WithDefaults() JobCard {
	if c.Account == "" {
		c.Account = DefaultAccount
	}
	if c.Class == "" {
		c.Class = DefaultClass
	}
	if c.MsgClass == "" {
		c.MsgClass = DefaultMsgClass
	}
	return c
}

type streamData struct {
	Card    JobCard
	Dataset string
	Member  string
	Lines   []string
}

const readMemberTpl = `{{jobcard .Card "VIEWJOB" "VIEWMEMBER"}}
{{stmt "STEP1" "EXEC" "PGM=IEBGENER"}}
{{stmt "SYSUT1" "DD" "DISP=SHR" (printf "DSN=%s(%s)" .Dataset .Member)}}
{{stmt "SYSUT2" "DD" "SYSOUT=*"}}
{{stmt "SYSPRINT" "DD" "SYSOUT=*"}}
{{stmt "SYSIN" "DD" "DUMMY"}}
//
`

const addMemberTpl = `{{jobcard .Card "UPDTEJOB" "UPDATEMBR"}}
{{stmt "STEP1" "EXEC" "PGM=IEBUPDTE" "PARM=NEW"}}
{{stmt "SYSPRINT" "DD" "SYSOUT=*"}}
{{stmt "SYSUT2" "DD" "DISP=OLD" (printf "DSN=%s" .Dataset)}}
{{stmt "SYSIN" "DD" "DATA" (printf "DLM=%s" dlm)}}
./ ADD NAME={{.Member}}
{{range .Lines}}{{.}}
{{end}}./ ENDUP
{{dlm}}
//
`

const writeSequentialTpl = `{{jobcard .Card "UPDTEJOB" "UPDATEDS"}}
{{stmt "STEP1" "EXEC" "PGM=IEBGENER"}}
{{stmt "SYSPRINT" "DD" "SYSOUT=*"}}
{{stmt "SYSIN" "DD" "DUMMY"}}
{{stmt "SYSUT1" "DD" "DATA" (printf "DLM=%s" dlm)}}
{{range .Lines}}{{.}}
{{end}}{{dlm}}
{{stmt "SYSUT2" "DD" "DISP=OLD" (printf "DSN=%s" .Dataset)}}
//
`

var funcs = template.FuncMap{
	"stmt": statement,
	"dlm":  func() string { return Delimiter },
	"jobcard": func(card JobCard, jobName, programmer string) string {
		return statement(jobName, "JOB",
			"("+card.Account+")",
			"'"+programmer+"'",
			"CLASS="+card.Class,
			"MSGCLASS="+card.MsgClass,
			"MSGLEVEL=(1,1)")
	},
}

var (
	readMemberJCL      = template.Must(template.New("read-member").Funcs(funcs).Parse(readMemberTpl))
	addMemberJCL       = template.Must(template.New("add-member").Funcs(funcs).Parse(addMemberTpl))
	writeSequentialJCL = template.Must(template.New("write-sequential").Funcs(funcs).Parse(writeSequentialTpl))
)

// ReadMember builds an IEBGENER job that copies a member to the SYSUT2
// sysout stream.
func ReadMember(card JobCard, dataset, member string) (string, error) {
	if err := validateNames(dataset, member); err != nil {
		return "", err
	}
	return render(readMemberJCL, streamData{Card: card.WithDefaults(), Dataset: dataset, Member: member})
}

// AddMember builds an IEBUPDTE job that stores content as a member of a
// partitioned dataset.
func AddMember(card JobCard, dataset, member, content string) (string, error) {
	if err := validateNames(dataset, member); err != nil {
		return "", err
	}
	lines, err := contentLines(content)
	if err != nil {
		return "", err
	}
	for i, line := range lines {
		if strings.HasPrefix(line, "./") {
			return "", fmt.Errorf("%w: line %d would be read as an IEBUPDTE control statement", connection.ErrInvalidJobStream, i+1)
		}
	}
	return render(addMemberJCL, streamData{Card: card.WithDefaults(), Dataset: dataset, Member: member, Lines: lines})
}

// WriteSequential builds an IEBGENER job that replaces the content of a
// sequential dataset with the in-stream content.
func WriteSequential(card JobCard, dataset, content string) (string, error) {
	if err := ValidateDatasetName(dataset); err != nil {
		return "", err
	}
	lines, err := contentLines(content)
	if err != nil {
		return "", err
	}
	return render(writeSequentialJCL, streamData{Card: card.WithDefaults(), Dataset: dataset, Lines: lines})
}

func validateNames(dataset, member string) error {
	if err := ValidateDatasetName(dataset); err != nil {
		return err
	}
	return ValidateMemberName(member)
}

// contentLines splits content into in-stream records. A single trailing
// newline is dropped.
func contentLines(content string) ([]string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if len(line) > RecordColumns {
			return nil, fmt.Errorf("%w: line %d exceeds %d columns", connection.ErrInvalidJobStream, i+1, RecordColumns)
		}
		if strings.HasPrefix(line, Delimiter) {
			return nil, fmt.Errorf("%w: line %d starts with the in-stream delimiter %s", connection.ErrInvalidJobStream, i+1, Delimiter)
		}
	}
	return lines, nil
}

func render(tpl *template.Template, data streamData) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute JCL template '%s': %w", tpl.Name(), err)
	}
	stream := buf.String()
	if err := Validate(stream); err != nil {
		return "", err
	}
	return stream, nil
}
