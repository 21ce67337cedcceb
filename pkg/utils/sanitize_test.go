package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDirName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dlpsgame.com", "dlpsgame.com"},
		{"a/b\\c:d", "a_b_c_d"},
		{"__trimmed__", "trimmed"},
		{"a<>b???c", "a_b_c"},
		{"", "site"},
		{"///", "site"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeDirName(tt.in), "in=%q", tt.in)
	}
}

func TestSanitizeDirName_LongInput(t *testing.T) {
	got := SanitizeDirName(strings.Repeat("a", 300))
	assert.Len(t, got, 100)
}
