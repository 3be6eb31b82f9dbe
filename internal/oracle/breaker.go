package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/cleared-dev/proforma/internal/model"
	"github.com/cleared-dev/proforma/internal/reconcile"
)

// ErrBreakerOpen is returned without calling the wrapped oracle while the
// breaker is open.
var ErrBreakerOpen = errors.New("oracle circuit breaker open")

// BreakerSettings tunes a Breaker. Zero fields take the defaults.
type BreakerSettings struct {
	// MaxFailures consecutive failures open the breaker. Default 3.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial call.
	// Default 60s.
	OpenTimeout time.Duration
	Logger      *zerolog.Logger
}

// Breaker stops calling an oracle that keeps failing, so a dead oracle
// costs one fast failure per change instead of one timeout each.
type Breaker struct {
	next reconcile.Oracle
	cb   *gobreaker.CircuitBreaker
}

var _ reconcile.Oracle = (*Breaker)(nil)

// NewBreaker wraps next.
func NewBreaker(name string, next reconcile.Oracle, s BreakerSettings) *Breaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 3
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 60 * time.Second
	}
	log := zerolog.Nop()
	if s.Logger != nil {
		log = *s.Logger
	}

	st := gobreaker.Settings{Name: name}
	st.Timeout = s.OpenTimeout
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= s.MaxFailures
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("oracle", name).Str("from", from.String()).Str("to", to.String()).Msg("oracle breaker state changed")
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) ProposeCorrection(ctx context.Context, snapshot *model.BalanceSheet, failing model.Change, imbalance decimal.Decimal) (model.Change, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.ProposeCorrection(ctx, snapshot, failing, imbalance)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return model.Change{}, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	if err != nil {
		return model.Change{}, err
	}
	return out.(model.Change), nil
}
