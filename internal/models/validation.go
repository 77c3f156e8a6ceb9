package models

import (
	"fmt"
	"math"
)

// roundingTolerance covers two independent 8-digit roundings.
const roundingTolerance = 2e-8

// ValidateBar checks an IntervalBar against the aggregation invariants.
func ValidateBar(bar *IntervalBar) error {
	if bar.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if bar.IntervalSec <= 0 {
		return fmt.Errorf("tf_sec must be positive, got %d", bar.IntervalSec)
	}

	if bar.Timestamp%bar.IntervalSec != 0 {
		return fmt.Errorf("ts %d is not aligned to tf_sec %d", bar.Timestamp, bar.IntervalSec)
	}

	if bar.BuyVolume < 0 || bar.SellVolume < 0 {
		return fmt.Errorf("volumes must be non-negative: ask_vol=%f bid_vol=%f", bar.BuyVolume, bar.SellVolume)
	}

	if math.Abs(bar.Delta-(bar.BuyVolume-bar.SellVolume)) > roundingTolerance {
		return fmt.Errorf("delta invariant violation: %f != %f - %f", bar.Delta, bar.BuyVolume, bar.SellVolume)
	}

	return nil
}
