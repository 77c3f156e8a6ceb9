package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

// DropReason labels why a message never reached the accumulator.
type DropReason string

const (
	ReasonInvalidJSON    DropReason = "invalid_json"
	ReasonSchema         DropReason = "schema"
	ReasonInvalidNumber  DropReason = "invalid_number"
	ReasonNonPositiveQty DropReason = "non_positive_qty"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed trade message")

// DecodeResult is either a trade or a drop reason, never both.
type DecodeResult struct {
	Trade  models.TradeEvent
	Reason DropReason
	Err    error
}

// OK reports whether the message decoded into a trade.
func (r DecodeResult) OK() bool {
	return r.Err == nil
}

// Decoder turns raw aggTrade payloads into TradeEvents.
type Decoder struct {
	validator *SchemaValidator
}

// NewDecoder compiles the aggTrade schema.
func NewDecoder() (*Decoder, error) {
	validator, err := NewSchemaValidator(aggTradeSchema)
	if err != nil {
		return nil, err
	}
	return &Decoder{validator: validator}, nil
}

// Decode parses one raw message received at receivedAt.
func (d *Decoder) Decode(raw []byte, receivedAt time.Time) DecodeResult {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return drop(ReasonInvalidJSON, err)
	}

	if err := d.validator.Validate(doc); err != nil {
		return drop(ReasonSchema, err)
	}

	var msg models.AggTradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return drop(ReasonInvalidJSON, err)
	}

	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return drop(ReasonInvalidNumber, fmt.Errorf("price %q: %w", msg.Price, err))
	}

	qty, err := decimal.NewFromString(msg.Quantity)
	if err != nil {
		return drop(ReasonInvalidNumber, fmt.Errorf("quantity %q: %w", msg.Quantity, err))
	}

	if !qty.IsPositive() {
		return drop(ReasonNonPositiveQty, fmt.Errorf("quantity %s", qty))
	}

	side := models.SideBuy
	if msg.IsBuyerMaker {
		side = models.SideSell
	}

	trade := models.TradeEvent{
		Price:      price,
		Quantity:   qty,
		Side:       side,
		ReceivedAt: receivedAt,
		TradeID:    msg.AggTradeID,
	}
	if msg.EventTime > 0 {
		trade.EventTime = time.UnixMilli(msg.EventTime)
	}

	return DecodeResult{Trade: trade}
}

func drop(reason DropReason, err error) DecodeResult {
	return DecodeResult{Reason: reason, Err: fmt.Errorf("%w: %s: %w", ErrMalformed, reason, err)}
}
