package signals

import (
	"github.com/0x5487/lob-sim"
)

// ImbalanceCalculator emits the multi-level volume imbalance as a
// signal, with the weighted top-of-book variant in metadata.
type ImbalanceCalculator struct {
	Levels    int
	Threshold float64
}

// NewImbalanceCalculator creates an imbalance calculator over the top
// `levels` levels. threshold scales confidence: |value| >= threshold
// means full confidence.
func NewImbalanceCalculator(levels int, threshold float64) *ImbalanceCalculator {
	if levels <= 0 {
		levels = 5
	}
	if threshold <= 0 {
		threshold = 0.3
	}
	return &ImbalanceCalculator{Levels: levels, Threshold: threshold}
}

// Name implements Calculator.
func (c *ImbalanceCalculator) Name() string { return "OrderImbalance" }

// Calculate implements Calculator.
func (c *ImbalanceCalculator) Calculate(book *lob.OrderBook) Signal {
	value := book.OrderImbalance(c.Levels)
	conf := value / c.Threshold
	if conf < 0 {
		conf = -conf
	}
	if conf > 1 {
		conf = 1
	}
	s := newSignal(TypeOrderImbalance, book, value, conf)
	s.Metadata["top_imbalance"] = TopImbalance(book)
	return s
}

// MicropriceCalculator emits the Stoikov microprice with mid and
// spread in metadata.
type MicropriceCalculator struct{}

// Name implements Calculator.
func (MicropriceCalculator) Name() string { return "Microprice" }

// Calculate implements Calculator.
func (MicropriceCalculator) Calculate(book *lob.OrderBook) Signal {
	s := newSignal(TypeMicroprice, book, Microprice(book), 1)
	s.Metadata["mid"] = book.MidPrice()
	s.Metadata["spread"] = book.Spread()
	s.Metadata["weighted_mid"] = WeightedMid(book)
	return s
}

// Generator maintains a collection of calculators and produces their
// signals on demand. Stateful calculators are driven through Update
// and OnTrade.
type Generator struct {
	calculators []Calculator
	byName      map[string]Calculator
}

// NewGenerator creates an empty Generator.
func NewGenerator() *Generator {
	return &Generator{byName: make(map[string]Calculator)}
}

// Add registers a calculator. A later calculator with the same name
// replaces the earlier one for Get but both still run in Generate.
func (g *Generator) Add(calc Calculator) {
	g.calculators = append(g.calculators, calc)
	g.byName[calc.Name()] = calc
}

// Update drives every stateful calculator with the current book.
// Called after each market event, before any Calculate.
func (g *Generator) Update(book *lob.OrderBook) {
	for _, calc := range g.calculators {
		if u, ok := calc.(Updater); ok {
			u.Update(book)
		}
	}
}

// OnTrade feeds one execution to every trade-observing calculator.
func (g *Generator) OnTrade(exec lob.Execution) {
	for _, calc := range g.calculators {
		if o, ok := calc.(TradeObserver); ok {
			o.OnTrade(exec)
		}
	}
}

// Generate evaluates every calculator against the book.
func (g *Generator) Generate(book *lob.OrderBook) []Signal {
	out := make([]Signal, 0, len(g.calculators))
	for _, calc := range g.calculators {
		out = append(out, calc.Calculate(book))
	}
	return out
}

// Get evaluates the named calculator, the second return is false when
// it is not registered.
func (g *Generator) Get(name string, book *lob.OrderBook) (Signal, bool) {
	calc, ok := g.byName[name]
	if !ok {
		return Signal{}, false
	}
	return calc.Calculate(book), true
}

// Combine blends signals into one custom signal using the given
// weights; value and confidence are weight-normalized averages.
func (g *Generator) Combine(sigs []Signal, weights []float64) Signal {
	var value, weightSum, conf float64
	for i := 0; i < len(sigs) && i < len(weights); i++ {
		value += weights[i] * sigs[i].Value
		conf += weights[i] * sigs[i].Confidence
		weightSum += weights[i]
	}

	out := Signal{Type: TypeCustom, Metadata: make(map[string]float64)}
	if len(sigs) > 0 {
		out.Symbol = sigs[0].Symbol
		out.Timestamp = sigs[0].Timestamp
	}
	if weightSum > 0 {
		out.Value = value / weightSum
		out.Confidence = conf / weightSum
	}
	return out
}

// Reset clears the internal state of every stateful calculator. The
// calculator set itself is kept.
func (g *Generator) Reset() {
	for _, calc := range g.calculators {
		if r, ok := calc.(Resetter); ok {
			r.Reset()
		}
	}
}
