package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name         string
		balance      float64
		riskPercent  float64
		stopLossPips int
		pipValue     float64
		expected     float64
		wantErr      bool
	}{
		{
			name:         "reference sizing",
			balance:      10000,
			riskPercent:  2,
			stopLossPips: 20,
			pipValue:     10,
			expected:     1.0,
		},
		{
			name:         "half lot",
			balance:      5000,
			riskPercent:  2,
			stopLossPips: 20,
			pipValue:     10,
			expected:     0.5,
		},
		{
			name:         "rounds to two decimals",
			balance:      10000,
			riskPercent:  1,
			stopLossPips: 30,
			pipValue:     10,
			expected:     0.33,
		},
		{
			name:         "tiny balance rounds to zero",
			balance:      50,
			riskPercent:  1,
			stopLossPips: 50,
			pipValue:     10,
			expected:     0,
		},
		{
			name:         "zero balance",
			balance:      0,
			riskPercent:  2,
			stopLossPips: 20,
			pipValue:     10,
			wantErr:      true,
		},
		{
			name:         "negative balance",
			balance:      -100,
			riskPercent:  2,
			stopLossPips: 20,
			pipValue:     10,
			wantErr:      true,
		},
		{
			name:         "zero stop loss",
			balance:      10000,
			riskPercent:  2,
			stopLossPips: 0,
			pipValue:     10,
			wantErr:      true,
		},
		{
			name:         "zero risk percent",
			balance:      10000,
			riskPercent:  0,
			stopLossPips: 20,
			pipValue:     10,
			wantErr:      true,
		},
		{
			name:         "zero pip value",
			balance:      10000,
			riskPercent:  2,
			stopLossPips: 20,
			pipValue:     0,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lots, err := Size(tt.balance, tt.riskPercent, tt.stopLossPips, tt.pipValue)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidParameter)
				return
			}

			require.NoError(t, err)
			assert.InDelta(t, tt.expected, lots, 0.0001)
		})
	}
}

func TestPipValue(t *testing.T) {
	assert.Equal(t, 10.0, PipValue("EURUSD"))
	assert.Equal(t, 9.1, PipValue("USDJPY"))
	assert.Equal(t, DefaultPipValue, PipValue("EURNOK"))
}
