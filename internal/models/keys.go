package models

import (
	"fmt"
	"strings"
)

// Keys is the store namespace for one instrument/interval pair.
type Keys struct {
	Bar     string // latest closed bar (hash)
	Current string // live snapshot (hash)
	History string // bounded bar log (list of JSON)
	CVD     string // committed cumulative delta (string scalar)
	Channel string // pub/sub channel for closed bars
}

// NewKeys builds the key set, e.g. delta:btcusdt:60:bar.
func NewKeys(symbol string, intervalSec int64) Keys {
	symbol = strings.ToLower(symbol)
	prefix := fmt.Sprintf("delta:%s:%d", symbol, intervalSec)
	return Keys{
		Bar:     prefix + ":bar",
		Current: prefix + ":current",
		History: prefix + ":history",
		CVD:     fmt.Sprintf("cvd:%s:%d:current", symbol, intervalSec),
		Channel: prefix + ":stream",
	}
}
