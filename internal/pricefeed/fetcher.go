package pricefeed

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoPrice indicates the venue answered but has no price for the
// symbol. Distinct from transport failures, which surface as wrapped
// errors.
var ErrNoPrice = errors.New("pricefeed: no price for symbol")

// Quote is one observed last price.
type Quote struct {
	Last      decimal.Decimal
	Timestamp time.Time
}

// Fetcher retrieves the current price for a symbol on a venue.
type Fetcher interface {
	GetPrice(ctx context.Context, venue, symbol string) (Quote, error)
}
