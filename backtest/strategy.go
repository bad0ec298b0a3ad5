package backtest

import (
	"github.com/0x5487/lob-sim"
	"github.com/0x5487/lob-sim/signals"
)

// Params is a flat name -> value strategy configuration.
type Params map[string]float64

// Get returns the named parameter or def when absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Strategy is the contract between the engine and trading logic. All
// callbacks run synchronously inside the event loop and must be total:
// no panics, no blocking, no goroutines.
type Strategy interface {
	Name() string

	// Initialize receives the configured parameters before OnStart.
	Initialize(params Params)

	OnStart()
	OnMarketData(update MarketDataUpdate, book *lob.OrderBook, portfolio *Portfolio)
	OnSignal(sig signals.Signal, book *lob.OrderBook, portfolio *Portfolio)
	OnFill(exec lob.Execution, portfolio *Portfolio)
	OnEnd(portfolio *Portfolio)

	// GenerateOrders is polled after each market event; returned
	// requests enter the queue at the engine's current time.
	GenerateOrders(book *lob.OrderBook, portfolio *Portfolio) []OrderRequest
}

// BaseStrategy provides no-op callbacks so strategies only override
// what they need.
type BaseStrategy struct {
	params Params
}

// Initialize stores the parameters for Param lookups.
func (s *BaseStrategy) Initialize(params Params) { s.params = params }

// Param returns a configured parameter or def.
func (s *BaseStrategy) Param(name string, def float64) float64 { return s.params.Get(name, def) }

func (s *BaseStrategy) OnStart() {}

func (s *BaseStrategy) OnMarketData(MarketDataUpdate, *lob.OrderBook, *Portfolio) {}

func (s *BaseStrategy) OnSignal(signals.Signal, *lob.OrderBook, *Portfolio) {}

func (s *BaseStrategy) OnFill(lob.Execution, *Portfolio) {}

func (s *BaseStrategy) OnEnd(*Portfolio) {}

func (s *BaseStrategy) GenerateOrders(*lob.OrderBook, *Portfolio) []OrderRequest { return nil }
