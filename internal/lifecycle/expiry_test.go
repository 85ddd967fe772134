package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpired(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"just created", 0, false},
		{"one second before the window", 14*time.Minute + 59*time.Second, false},
		{"exactly at the window", 15 * time.Minute, true},
		{"well past the window", 2 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expired(created, created.Add(tt.elapsed)))
		})
	}
}

func TestDeadline(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, created.Add(15*time.Minute), Deadline(created))
	assert.True(t, Expired(created, Deadline(created)))
}
