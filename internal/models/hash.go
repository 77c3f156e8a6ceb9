package models

import (
	"fmt"
	"strconv"
)

// Hash returns the field mapping written with HSET.
func (b IntervalBar) Hash() map[string]interface{} {
	return map[string]interface{}{
		"symbol":  b.Symbol,
		"tf_sec":  b.IntervalSec,
		"ts":      b.Timestamp,
		"ask_vol": formatFloat(b.BuyVolume),
		"bid_vol": formatFloat(b.SellVolume),
		"delta":   formatFloat(b.Delta),
		"cvd":     formatFloat(b.CumulativeDelta),
	}
}

// BarFromHash parses an HGETALL result. An empty map yields ok=false.
func BarFromHash(fields map[string]string) (bar IntervalBar, ok bool, err error) {
	if len(fields) == 0 {
		return IntervalBar{}, false, nil
	}

	bar.Symbol = fields["symbol"]
	if bar.IntervalSec, err = parseInt(fields, "tf_sec"); err != nil {
		return IntervalBar{}, false, err
	}
	if bar.Timestamp, err = parseInt(fields, "ts"); err != nil {
		return IntervalBar{}, false, err
	}
	if bar.BuyVolume, err = parseFloat(fields, "ask_vol"); err != nil {
		return IntervalBar{}, false, err
	}
	if bar.SellVolume, err = parseFloat(fields, "bid_vol"); err != nil {
		return IntervalBar{}, false, err
	}
	if bar.Delta, err = parseFloat(fields, "delta"); err != nil {
		return IntervalBar{}, false, err
	}
	if bar.CumulativeDelta, err = parseFloat(fields, "cvd"); err != nil {
		return IntervalBar{}, false, err
	}

	return bar, true, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseInt(fields map[string]string, key string) (int64, error) {
	v, err := strconv.ParseInt(fields[key], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}

func parseFloat(fields map[string]string, key string) (float64, error) {
	v, err := strconv.ParseFloat(fields[key], 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}
