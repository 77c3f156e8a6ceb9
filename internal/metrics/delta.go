package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

// outputPrecision is the number of fractional digits exposed on snapshots
// and bars. Internal sums stay exact.
const outputPrecision = 8

// DeltaAccumulator tracks aggressor volume for the open interval and the
// committed cumulative volume delta.
//
// Not safe for concurrent use: the aggregator is its only owner.
type DeltaAccumulator struct {
	buyVolume  decimal.Decimal
	sellVolume decimal.Decimal
	committed  decimal.Decimal
	trades     int
}

// NewDeltaAccumulator creates an accumulator seeded with the committed
// cumulative delta restored from the store.
func NewDeltaAccumulator(committed float64) *DeltaAccumulator {
	return &DeltaAccumulator{
		buyVolume:  decimal.Zero,
		sellVolume: decimal.Zero,
		committed:  decimal.NewFromFloat(committed),
	}
}

// Apply adds the trade quantity to the side that initiated it.
func (d *DeltaAccumulator) Apply(trade models.TradeEvent) {
	if trade.IsSell() {
		d.sellVolume = d.sellVolume.Add(trade.Quantity)
	} else {
		d.buyVolume = d.buyVolume.Add(trade.Quantity)
	}
	d.trades++
}

// Delta is buy volume minus sell volume for the open interval, unrounded.
func (d *DeltaAccumulator) Delta() decimal.Decimal {
	return d.buyVolume.Sub(d.sellVolume)
}

// Trades returns the number of trades applied since the last Finalize.
func (d *DeltaAccumulator) Trades() int {
	return d.trades
}

// Committed returns the cumulative delta of all finalized intervals.
func (d *DeltaAccumulator) Committed() float64 {
	return round(d.committed)
}

// Snapshot projects the open interval without mutating state.
func (d *DeltaAccumulator) Snapshot(symbol string, intervalSec, bucketStart int64) models.LiveSnapshot {
	delta := d.Delta()
	return models.LiveSnapshot(d.bar(symbol, intervalSec, bucketStart, delta, d.committed.Add(delta)))
}

// Finalize closes the open interval: it returns the frozen bar, advances the
// committed cumulative delta and clears the volumes for the next interval.
func (d *DeltaAccumulator) Finalize(symbol string, intervalSec, bucketStart int64) models.IntervalBar {
	delta := d.Delta()
	d.committed = d.committed.Add(delta)
	bar := d.bar(symbol, intervalSec, bucketStart, delta, d.committed)

	d.buyVolume = decimal.Zero
	d.sellVolume = decimal.Zero
	d.trades = 0

	return bar
}

func (d *DeltaAccumulator) bar(symbol string, intervalSec, bucketStart int64, delta, cumulative decimal.Decimal) models.IntervalBar {
	return models.IntervalBar{
		Symbol:          symbol,
		IntervalSec:     intervalSec,
		Timestamp:       bucketStart,
		BuyVolume:       round(d.buyVolume),
		SellVolume:      round(d.sellVolume),
		Delta:           round(delta),
		CumulativeDelta: round(cumulative),
	}
}

func round(v decimal.Decimal) float64 {
	return v.Round(outputPrecision).InexactFloat64()
}
