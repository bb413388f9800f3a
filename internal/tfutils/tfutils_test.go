package tfutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		timeframe string
		expected  time.Duration
		wantErr   bool
	}{
		{"1m", time.Minute, false},
		{"15m", 15 * time.Minute, false},
		{"1h", time.Hour, false},
		{"4h", 4 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"2h", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.timeframe, func(t *testing.T) {
			dur, err := ParseTimeframe(tt.timeframe)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, IsValidTimeframe(tt.timeframe))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, dur)
			assert.True(t, IsValidTimeframe(tt.timeframe))
		})
	}
}

func TestBrokerCode(t *testing.T) {
	assert.Equal(t, "H1", BrokerCode("1h"))
	assert.Equal(t, "M15", BrokerCode("15m"))
	assert.Equal(t, "D1", BrokerCode("1d"))
	assert.Equal(t, "", BrokerCode("7h"))
}
