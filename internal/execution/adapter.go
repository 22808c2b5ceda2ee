// Package execution is the order placement boundary. Only paper mode exists:
// intents are validated and logged, never sent.
package execution

import (
	"errors"
	"fmt"
	"sync"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

// ErrExecutionUnavailable is returned when live execution is requested.
// There is no authenticated CLOB order path.
var ErrExecutionUnavailable = errors.New("live execution is not available; keep execution.enabled=false")

// Config for the adapter.
type Config struct {
	Enabled bool `mapstructure:"enabled"`
}

// Adapter places order intents.
type Adapter struct {
	enabled bool

	mu      sync.Mutex
	intents []models.OrderIntent
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{enabled: cfg.Enabled}
}

// PlaceOrder records the intent and returns an empty order id while
// disabled. When enabled it fails with ErrExecutionUnavailable.
func (a *Adapter) PlaceOrder(intent models.OrderIntent) (string, error) {
	if err := validate(intent); err != nil {
		return "", err
	}
	if a.enabled {
		return "", ErrExecutionUnavailable
	}

	a.mu.Lock()
	a.intents = append(a.intents, intent)
	a.mu.Unlock()

	logger.Info("Paper order %s %s size=%.2f @ %.3f (%s, %s)",
		intent.Side, intent.TokenID, intent.Size, intent.Price, intent.Strategy, intent.Reason)
	return "", nil
}

// Intents returns a copy of the paper intents recorded so far.
func (a *Adapter) Intents() []models.OrderIntent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.OrderIntent, len(a.intents))
	copy(out, a.intents)
	return out
}

func validate(intent models.OrderIntent) error {
	if intent.TokenID == "" {
		return errors.New("order intent has no token")
	}
	if intent.Side != models.SideBuy && intent.Side != models.SideSell {
		return fmt.Errorf("invalid order side %q", intent.Side)
	}
	if intent.Price <= 0 || intent.Price >= 1 {
		return fmt.Errorf("order price %.4f outside (0,1)", intent.Price)
	}
	if intent.Size <= 0 {
		return fmt.Errorf("order size %.4f must be positive", intent.Size)
	}
	return nil
}
