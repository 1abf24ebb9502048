package numutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt64WithCommas(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{name: "zero", input: 0, expected: "0"},
		{name: "below one thousand", input: 999, expected: "999"},
		{name: "exactly one thousand", input: 1000, expected: "1,000"},
		{name: "five digits", input: 12345, expected: "12,345"},
		{name: "seven digits", input: 1234567, expected: "1,234,567"},
		{name: "negative", input: -1234567, expected: "-1,234,567"},
		{name: "group boundary", input: 100000, expected: "100,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Int64WithCommas(tt.input))
		})
	}
}

func TestIntWithCommas(t *testing.T) {
	assert.Equal(t, "12,345", IntWithCommas(12345))
}
