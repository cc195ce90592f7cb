package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaticRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    string
		wantErr bool
	}{
		{name: "valid rate", rate: "150", wantErr: false},
		{name: "fractional rate", rate: "0.25", wantErr: false},
		{name: "zero rate", rate: "0", wantErr: true},
		{name: "negative rate", rate: "-3", wantErr: true},
		{name: "not a number", rate: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewStaticRate("ETH", "USD", tt.rate)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestStaticRate_Convert(t *testing.T) {
	r, err := NewStaticRate("ETH", "USD", "150")
	require.NoError(t, err)

	got := r.Convert(decimal.RequireFromString("2"))
	assert.True(t, decimal.NewFromInt(300).Equal(got), "got %s", got)

	native, reporting := r.Pair()
	assert.Equal(t, "ETH", native)
	assert.Equal(t, "USD", reporting)
}
