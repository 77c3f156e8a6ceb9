package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBar() IntervalBar {
	return IntervalBar{
		Symbol:          "btcusdt",
		IntervalSec:     60,
		Timestamp:       1_700_000_040,
		BuyVolume:       2.5,
		SellVolume:      1.25,
		Delta:           1.25,
		CumulativeDelta: 10,
	}
}

func TestValidateBar(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(b *IntervalBar)
		wantErr string
	}{
		{name: "valid", mutate: func(b *IntervalBar) {}},
		{name: "negative cvd is fine", mutate: func(b *IntervalBar) { b.CumulativeDelta = -3 }},
		{name: "rounding noise tolerated", mutate: func(b *IntervalBar) { b.Delta = 1.25000001 }},
		{name: "missing symbol", mutate: func(b *IntervalBar) { b.Symbol = "" }, wantErr: "symbol"},
		{name: "zero interval", mutate: func(b *IntervalBar) { b.IntervalSec = 0 }, wantErr: "tf_sec"},
		{name: "unaligned", mutate: func(b *IntervalBar) { b.Timestamp += 1 }, wantErr: "not aligned"},
		{name: "negative volume", mutate: func(b *IntervalBar) { b.SellVolume = -1 }, wantErr: "non-negative"},
		{name: "delta mismatch", mutate: func(b *IntervalBar) { b.Delta = 2 }, wantErr: "delta invariant"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bar := validBar()
			tc.mutate(&bar)

			err := ValidateBar(&bar)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestBarFromHash(t *testing.T) {
	bar := validBar()

	fields := make(map[string]string)
	for k, v := range bar.Hash() {
		switch v := v.(type) {
		case string:
			fields[k] = v
		case int64:
			fields[k] = formatFloat(float64(v))
		}
	}

	parsed, ok, err := BarFromHash(fields)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bar, parsed)

	_, ok, err = BarFromHash(map[string]string{})
	require.NoError(t, err)
	assert.False(t, ok)

	fields["delta"] = "n/a"
	_, ok, err = BarFromHash(fields)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "delta")
}

func TestNewKeys(t *testing.T) {
	keys := NewKeys("BTCUSDT", 60)

	assert.Equal(t, Keys{
		Bar:     "delta:btcusdt:60:bar",
		Current: "delta:btcusdt:60:current",
		History: "delta:btcusdt:60:history",
		CVD:     "cvd:btcusdt:60:current",
		Channel: "delta:btcusdt:60:stream",
	}, keys)
}
