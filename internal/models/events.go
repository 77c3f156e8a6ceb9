package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the aggressor side of a trade.
type Side string

const (
	SideBuy  Side = "buy"  // buyer-initiated, lifts the ask
	SideSell Side = "sell" // seller-initiated, hits the bid
)

// TradeEvent is a single decoded upstream trade. Not persisted.
type TradeEvent struct {
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Side       Side
	ReceivedAt time.Time // wall clock at receipt, used for bucketing
	EventTime  time.Time // exchange event time, diagnostics only
	TradeID    int64     // aggregate trade id
}

// IsSell reports whether the trade was seller-initiated.
func (t TradeEvent) IsSell() bool {
	return t.Side == SideSell
}

// AggTradeMessage mirrors the Binance aggTrade stream payload.
type AggTradeMessage struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"` // true: the seller was the aggressor
}
