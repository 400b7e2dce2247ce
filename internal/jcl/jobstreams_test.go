package jcl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zgate/internal/connection"
)

func TestStatement(t *testing.T) {
	tests := []struct {
		name   string
		label  string
		op     string
		params []string
		want   string
	}{
		{
			name:  "no params",
			label: "SYSIN", op: "DD",
			want: "//SYSIN    DD",
		},
		{
			name:  "fits on one line",
			label: "STEP1", op: "EXEC", params: []string{"PGM=IEBGENER"},
			want: "//STEP1    EXEC PGM=IEBGENER",
		},
		{
			name:  "several params",
			label: "SYSUT1", op: "DD", params: []string{"DISP=SHR", "DSN=U.SAMPLE(MEM1)"},
			want: "//SYSUT1   DD DISP=SHR,DSN=U.SAMPLE(MEM1)",
		},
		{
			name:  "long dataset name folds",
			label: "SYSUT2", op: "DD", params: []string{"DISP=OLD", "DSN=AAAAAAAA.BBBBBBBB.CCCCCCCC.DDDDDDDD.EEEEEEEE"},
			want: "//SYSUT2   DD DISP=OLD,\n//             DSN=AAAAAAAA.BBBBBBBB.CCCCCCCC.DDDDDDDD.EEEEEEEE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statement(tt.label, tt.op, tt.params...)
			assert.Equal(t, tt.want, got)
			for _, line := range strings.Split(got, "\n") {
				assert.LessOrEqual(t, len(line), StatementColumns)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		wantErr string
	}{
		{
			name:   "statements only",
			stream: "//J JOB (A)\n//S EXEC PGM=IEFBR14\n//\n",
		},
		{
			name:   "delimited data may look like JCL",
			stream: "//J JOB (A)\n//S EXEC PGM=IEBGENER\n//SYSUT1 DD DATA,DLM=@@\n//NOT A STATEMENT\n/* NOR A DELIMITER\n@@\n//\n",
		},
		{
			name:   "DD * ends at the next statement",
			stream: "//J JOB (A)\n//SYSIN DD *\nDATA LINE\n/*\n//\n",
		},
		{
			name:    "statement past column 71",
			stream:  "//J JOB (A)\n//S EXEC PGM=IEBGENER," + strings.Repeat("X", 60) + "\n",
			wantErr: "exceeds 71 columns",
		},
		{
			name:    "record past column 80",
			stream:  "//SYSIN DD DATA,DLM=@@\n" + strings.Repeat("X", 81) + "\n@@\n",
			wantErr: "exceeds 80 columns",
		},
		{
			name:    "stray record",
			stream:  "//J JOB (A)\nHELLO\n",
			wantErr: "is not a JCL statement",
		},
		{
			name:    "unterminated data",
			stream:  "//SYSIN DD DATA,DLM=@@\nLINE\n",
			wantErr: "not terminated by @@",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.stream)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, connection.ErrInvalidJobStream)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadMember(t *testing.T) {
	stream, err := ReadMember(DefaultJobCard(), "U.SAMPLE", "MEM1")
	require.NoError(t, err)

	want := strings.Join([]string{
		"//VIEWJOB  JOB (ACCT),'VIEWMEMBER',CLASS=A,MSGCLASS=A,MSGLEVEL=(1,1)",
		"//STEP1    EXEC PGM=IEBGENER",
		"//SYSUT1   DD DISP=SHR,DSN=U.SAMPLE(MEM1)",
		"//SYSUT2   DD SYSOUT=*",
		"//SYSPRINT DD SYSOUT=*",
		"//SYSIN    DD DUMMY",
		"//",
		"",
	}, "\n")
	assert.Equal(t, want, stream)
}

func TestReadMemberJobCard(t *testing.T) {
	stream, err := ReadMember(JobCard{Account: "D123", Class: "B"}, "U.SAMPLE", "MEM1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stream, "//VIEWJOB  JOB (D123),'VIEWMEMBER',CLASS=B,MSGCLASS=A,"))
}

func TestReadMemberRejectsInvalidNames(t *testing.T) {
	_, err := ReadMember(DefaultJobCard(), "U.SAMPLE", "TOOLONGNAME")
	assert.ErrorIs(t, err, connection.ErrInvalidName)

	_, err = ReadMember(DefaultJobCard(), "U..SAMPLE", "MEM1")
	assert.ErrorIs(t, err, connection.ErrInvalidName)
}

func TestAddMember(t *testing.T) {
	stream, err := AddMember(DefaultJobCard(), "U.SRC", "NEW1", "LINE ONE\r\n//LOOKS LIKE JCL\n")
	require.NoError(t, err)

	want := strings.Join([]string{
		"//UPDTEJOB JOB (ACCT),'UPDATEMBR',CLASS=A,MSGCLASS=A,MSGLEVEL=(1,1)",
		"//STEP1    EXEC PGM=IEBUPDTE,PARM=NEW",
		"//SYSPRINT DD SYSOUT=*",
		"//SYSUT2   DD DISP=OLD,DSN=U.SRC",
		"//SYSIN    DD DATA,DLM=@@",
		"./ ADD NAME=NEW1",
		"LINE ONE",
		"//LOOKS LIKE JCL",
		"./ ENDUP",
		"@@",
		"//",
		"",
	}, "\n")
	assert.Equal(t, want, stream)
}

func TestAddMemberEmptyContent(t *testing.T) {
	stream, err := AddMember(DefaultJobCard(), "U.SRC", "NEW1", "")
	require.NoError(t, err)
	assert.Contains(t, stream, "./ ADD NAME=NEW1\n./ ENDUP\n@@\n")
}

func TestAddMemberRejectsControlStatements(t *testing.T) {
	_, err := AddMember(DefaultJobCard(), "U.SRC", "NEW1", "OK\n./ DELETE NAME=X\n")
	assert.ErrorIs(t, err, connection.ErrInvalidJobStream)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteSequential(t *testing.T) {
	stream, err := WriteSequential(DefaultJobCard(), "U.DATA", "A\nB")
	require.NoError(t, err)

	want := strings.Join([]string{
		"//UPDTEJOB JOB (ACCT),'UPDATEDS',CLASS=A,MSGCLASS=A,MSGLEVEL=(1,1)",
		"//STEP1    EXEC PGM=IEBGENER",
		"//SYSPRINT DD SYSOUT=*",
		"//SYSIN    DD DUMMY",
		"//SYSUT1   DD DATA,DLM=@@",
		"A",
		"B",
		"@@",
		"//SYSUT2   DD DISP=OLD,DSN=U.DATA",
		"//",
		"",
	}, "\n")
	assert.Equal(t, want, stream)
}

func TestContentLimits(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "80 columns", content: strings.Repeat("X", 80)},
		{name: "81 columns", content: "OK\n" + strings.Repeat("X", 81), wantErr: "line 2 exceeds 80 columns"},
		{name: "delimiter", content: "@@END", wantErr: "in-stream delimiter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WriteSequential(DefaultJobCard(), "U.DATA", tt.content)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, connection.ErrInvalidJobStream)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
