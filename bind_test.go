package fluentlite

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type customID int32

type stringer struct{}

func (stringer) String() string { return "nope" }

func TestBindValue(t *testing.T) {
	now := time.Now()
	n := 7

	tests := []struct {
		name        string
		input       any
		expected    any
		expectError bool
	}{
		{name: "nil", input: nil, expected: nil},
		{name: "bool", input: true, expected: true},
		{name: "int", input: 7, expected: int64(7)},
		{name: "int8", input: int8(-3), expected: int64(-3)},
		{name: "int64", input: int64(1 << 40), expected: int64(1 << 40)},
		{name: "uint", input: uint(7), expected: int64(7)},
		{name: "uint8", input: uint8(255), expected: int64(255)},
		{name: "uint64 in range", input: uint64(12), expected: int64(12)},
		{name: "uint64 overflow", input: uint64(math.MaxUint64), expectError: true},
		{name: "float32", input: float32(1.5), expected: float64(1.5)},
		{name: "float64", input: 2.25, expected: 2.25},
		{name: "string", input: "hello", expected: "hello"},
		{name: "bytes", input: []byte{1, 2}, expected: []byte{1, 2}},
		{name: "time", input: now, expected: now},
		{name: "nil pointer", input: (*int)(nil), expected: nil},
		{name: "pointer", input: &n, expected: int64(7)},
		{name: "named int type", input: customID(9), expected: int64(9)},
		{name: "named string type", input: time.Month(3).String(), expected: "March"},
		{name: "unsupported struct", input: stringer{}, expectError: true},
		{name: "unsupported slice", input: []int{1}, expectError: true},
		{name: "unsupported map", input: map[string]int{}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bindValue(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBindArgs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		bound, err := bindArgs(nil)
		assert.NoError(t, err)
		assert.Nil(t, bound)
	})

	t.Run("normalizes each value", func(t *testing.T) {
		bound, err := bindArgs([]any{1, "a", nil})
		assert.NoError(t, err)
		assert.Equal(t, []any{int64(1), "a", nil}, bound)
	})

	t.Run("reports the parameter position", func(t *testing.T) {
		_, err := bindArgs([]any{1, map[string]int{}})
		assert.ErrorContains(t, err, "parameter 2")
	})
}
