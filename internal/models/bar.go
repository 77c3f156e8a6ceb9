package models

// IntervalBar is one closed interval. Immutable once created.
//
// Wire names follow the store format consumed by the dashboards:
// ask_vol is buyer-initiated volume, bid_vol is seller-initiated volume.
type IntervalBar struct {
	Symbol          string  `json:"symbol"`
	IntervalSec     int64   `json:"tf_sec"`
	Timestamp       int64   `json:"ts"` // interval start, unix seconds
	BuyVolume       float64 `json:"ask_vol"`
	SellVolume      float64 `json:"bid_vol"`
	Delta           float64 `json:"delta"`
	CumulativeDelta float64 `json:"cvd"`
}

// LiveSnapshot is the still-open interval. CumulativeDelta is provisional:
// committed CVD plus the in-progress delta.
type LiveSnapshot IntervalBar

// BarMessage is the pub/sub broadcast envelope.
type BarMessage struct {
	Type string      `json:"type"`
	Data IntervalBar `json:"data"`
}

// NewBarMessage wraps a bar for broadcast.
func NewBarMessage(bar IntervalBar) BarMessage {
	return BarMessage{Type: "bar", Data: bar}
}
