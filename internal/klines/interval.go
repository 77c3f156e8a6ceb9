package klines

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrBadInterval         = errors.New("bad interval")
	ErrUnsupportedInterval = errors.New("only 5s/10s/15s/30s supported")
)

// baseInterval is fetched upstream when a sub-minute interval is requested.
const baseInterval = "1m"

var subMinuteSeconds = map[int64]bool{5: true, 10: true, 15: true, 30: true}

// ParseInterval returns the upstream interval to fetch and, for sub-minute
// requests, the segment length in seconds (0 otherwise).
func ParseInterval(interval string) (upstream string, subSec int64, err error) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return "", 0, ErrBadInterval
	}

	if !strings.HasSuffix(interval, "s") {
		return interval, 0, nil
	}

	subSec, err = strconv.ParseInt(strings.TrimSuffix(interval, "s"), 10, 64)
	if err != nil {
		return "", 0, ErrBadInterval
	}
	if !subMinuteSeconds[subSec] {
		return "", 0, ErrUnsupportedInterval
	}

	return baseInterval, subSec, nil
}

// Split derives sub-minute candles from 1m candles. Each minute becomes
// 60/subSec segments whose open and close walk linearly from the minute's
// open to its close; high and low add a quarter of the minute's range.
func Split(candles []Candle, subSec int64) []Candle {
	segments := 60 / subSec
	out := make([]Candle, 0, len(candles)*int(segments))

	for _, c := range candles {
		step := (c.Close - c.Open) / float64(segments)
		spread := math.Abs(c.High-c.Low) * 0.25

		for i := int64(0); i < segments; i++ {
			open := c.Open + step*float64(i)
			closePrice := c.Open + step*float64(i+1)
			out = append(out, Candle{
				Time:  c.Time + i*subSec,
				Open:  open,
				High:  max(open, closePrice) + spread,
				Low:   min(open, closePrice) - spread,
				Close: closePrice,
			})
		}
	}

	return out
}
