package jcl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"zgate/internal/connection"
)

func TestValidateDatasetName(t *testing.T) {
	tests := []struct {
		name        string
		dataset     string
		shouldError bool
		errContains string
	}{
		{
			name:    "Valid dataset name",
			dataset: "USER.JCL",
		},
		{
			name:    "Valid dataset with multiple qualifiers",
			dataset: "SYS1.USER.JCL.DATA",
		},
		{
			name:    "Valid dataset with special chars",
			dataset: "A$B#C@D.DATA",
		},
		{
			name:    "Hyphen after first character",
			dataset: "USER.JCL-LIB",
		},
		{
			name:        "Empty dataset name",
			dataset:     "",
			shouldError: true,
			errContains: "dataset name cannot be empty",
		},
		{
			name:        "Too long",
			dataset:     "AAAAAAAA.BBBBBBBB.CCCCCCCC.DDDDDDDD.EEEEEEEE.F",
			shouldError: true,
			errContains: "exceeds 44 characters",
		},
		{
			name:        "Empty qualifier (double dot)",
			dataset:     "USER..JCL",
			shouldError: true,
			errContains: "contains an empty qualifier",
		},
		{
			name:        "Empty qualifier (trailing dot)",
			dataset:     "USER.JCL.",
			shouldError: true,
			errContains: "contains an empty qualifier",
		},
		{
			name:        "Qualifier too long",
			dataset:     "USER.JCLLIBRARY",
			shouldError: true,
			errContains: "exceeds 8 characters",
		},
		{
			name:        "Leading digit",
			dataset:     "USER.1JCL",
			shouldError: true,
			errContains: "invalid characters",
		},
		{
			name:        "Lower case",
			dataset:     "user.jcl",
			shouldError: true,
			errContains: "invalid characters",
		},
		{
			name:        "Member syntax is not a dataset name",
			dataset:     "USER.JCL(MEM)",
			shouldError: true,
			errContains: "invalid characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatasetName(tt.dataset)
			if tt.shouldError {
				assert.ErrorIs(t, err, connection.ErrInvalidName)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMemberName(t *testing.T) {
	tests := []struct {
		member  string
		wantErr bool
	}{
		{member: "MEM1"},
		{member: "$TEMP"},
		{member: "ABCDEFGH"},
		{member: "", wantErr: true},
		{member: "ABCDEFGHI", wantErr: true},
		{member: "1ABC", wantErr: true},
		{member: "MY-MEM", wantErr: true},
		{member: "mem1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			err := ValidateMemberName(tt.member)
			if tt.wantErr {
				assert.ErrorIs(t, err, connection.ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "USER.SRC", Normalize("user.src"))
	assert.Equal(t, "USER.SRC", Normalize("  'user.src' "))
	assert.Equal(t, "'", Normalize("'"))
}

func TestMemberRef(t *testing.T) {
	assert.Equal(t, "//'USER.JCL(BUILD)'", MemberRef("USER.JCL", "BUILD"))
}
