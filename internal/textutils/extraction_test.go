package textutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "beli makan 25rb", CollapseWhitespace("beli   makan \t 25rb"))
	assert.Equal(t, "", CollapseWhitespace(""))
}

func TestCleanLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "beli makan 25rb", "beli makan 25rb"},
		{"padded", "   TOTAL   25.000   ", "TOTAL 25.000"},
		{"control chars", "TOTAL\x00 25.000\x07", "TOTAL 25.000"},
		{"only noise", " \x00\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanLine(tt.input))
		})
	}
}

func TestCleanBlock(t *testing.T) {
	in := "  WARUNG  MAKMUR \n\n\x00\nTOTAL\t25.000\n"
	assert.Equal(t, "WARUNG MAKMUR\nTOTAL 25.000", CleanBlock(in))
}
