package feed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

func TestDecoder_Decode(t *testing.T) {
	decoder, err := NewDecoder()
	require.NoError(t, err)

	receivedAt := time.Unix(1_700_000_030, 0)

	testCases := []struct {
		name     string
		raw      string
		assertFn func(t *testing.T, res DecodeResult)
	}{
		{
			name: "buyer initiated",
			raw:  `{"e":"aggTrade","E":1700000030123,"s":"BTCUSDT","a":5933014,"p":"43250.10","q":"0.015","f":100,"l":105,"T":1700000030120,"m":false}`,
			assertFn: func(t *testing.T, res DecodeResult) {
				require.True(t, res.OK())
				assert.Equal(t, models.SideBuy, res.Trade.Side)
				assert.True(t, decimal.RequireFromString("0.015").Equal(res.Trade.Quantity))
				assert.True(t, decimal.RequireFromString("43250.1").Equal(res.Trade.Price))
				assert.Equal(t, receivedAt, res.Trade.ReceivedAt)
				assert.Equal(t, time.UnixMilli(1700000030123), res.Trade.EventTime)
				assert.Equal(t, int64(5933014), res.Trade.TradeID)
			},
		},
		{
			name: "seller initiated",
			raw:  `{"p":"43250.10","q":"2","m":true}`,
			assertFn: func(t *testing.T, res DecodeResult) {
				require.True(t, res.OK())
				assert.Equal(t, models.SideSell, res.Trade.Side)
				assert.True(t, res.Trade.EventTime.IsZero())
			},
		},
		{
			name: "not json",
			raw:  `{"p":`,
			assertFn: func(t *testing.T, res DecodeResult) {
				assert.False(t, res.OK())
				assert.Equal(t, ReasonInvalidJSON, res.Reason)
				assert.ErrorIs(t, res.Err, ErrMalformed)
			},
		},
		{
			name: "missing side flag",
			raw:  `{"p":"1","q":"1"}`,
			assertFn: func(t *testing.T, res DecodeResult) {
				assert.False(t, res.OK())
				assert.Equal(t, ReasonSchema, res.Reason)
			},
		},
		{
			name: "numeric quantity instead of string",
			raw:  `{"p":"1","q":1.5,"m":false}`,
			assertFn: func(t *testing.T, res DecodeResult) {
				assert.Equal(t, ReasonSchema, res.Reason)
			},
		},
		{
			name: "subscription ack",
			raw:  `{"result":null,"id":1}`,
			assertFn: func(t *testing.T, res DecodeResult) {
				assert.Equal(t, ReasonSchema, res.Reason)
			},
		},
		{
			name: "zero quantity",
			raw:  `{"p":"1","q":"0.000","m":false}`,
			assertFn: func(t *testing.T, res DecodeResult) {
				assert.Equal(t, ReasonNonPositiveQty, res.Reason)
			},
		},
		{
			name: "negative quantity",
			raw:  `{"p":"1","q":"-3","m":true}`,
			assertFn: func(t *testing.T, res DecodeResult) {
				assert.Equal(t, ReasonNonPositiveQty, res.Reason)
				assert.ErrorIs(t, res.Err, ErrMalformed)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.assertFn(t, decoder.Decode([]byte(tc.raw), receivedAt))
		})
	}
}
