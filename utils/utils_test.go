package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"12345", true},
		{"0", true},
		{"", false},
		{"12a45", false},
		{" 123", false},
		{"-1", false},
		{"١٢٣", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNumeric(tt.in))
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("abc"))
	assert.Equal(t, "*****6789", MaskSecret("123456789"))
}

func TestClampPage(t *testing.T) {
	limit, offset := ClampPage(0, -5)
	assert.Equal(t, DefaultPageSize, limit)
	assert.Equal(t, 0, offset)

	limit, offset = ClampPage(MaxPageSize+1, 10)
	assert.Equal(t, MaxPageSize, limit)
	assert.Equal(t, 10, offset)
}
