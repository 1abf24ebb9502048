package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_validateBusyTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{
			name:    "valid timeout",
			timeout: 5 * time.Second,
			wantErr: false,
		},
		{
			name:    "valid zero timeout",
			timeout: 0,
			wantErr: false,
		},
		{
			name:    "invalid negative timeout",
			timeout: -time.Second,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBusyTimeout(tt.timeout)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_defaultHistoryPath(t *testing.T) {
	path := defaultHistoryPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, ".fluentlite_history")
}
