package ledger

import (
	"arbsim/internal/model"
)

// Ledger holds an equity balance and the ordered history of trades that
// moved it. It is not safe for concurrent use; the owner serializes access.
type Ledger struct {
	equity  float64
	history []model.TradeRecord
	index   map[string]int
}

// New creates a ledger funded with capital.
func New(capital float64) *Ledger {
	return &Ledger{
		equity: capital,
		index:  make(map[string]int),
	}
}

// Equity returns the current balance.
func (l *Ledger) Equity() float64 {
	return l.equity
}

// Apply appends trade and adds its net profit to equity.
func (l *Ledger) Apply(trade model.TradeRecord) {
	l.index[trade.ID] = len(l.history)
	l.history = append(l.history, trade)
	l.equity += trade.Profit
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int {
	return len(l.history)
}

// History returns a copy of the trades in settlement order.
func (l *Ledger) History() []model.TradeRecord {
	out := make([]model.TradeRecord, len(l.history))
	for i, t := range l.history {
		if t.Layers != nil {
			layers := *t.Layers
			t.Layers = &layers
		}
		out[i] = t
	}
	return out
}

// Trade looks up a trade by id.
func (l *Ledger) Trade(id string) (model.TradeRecord, bool) {
	i, ok := l.index[id]
	if !ok {
		return model.TradeRecord{}, false
	}
	return l.history[i], true
}

// Attach sets the rationale of a trade. It reports false, changing nothing,
// when the id is unknown or a rationale is already attached.
func (l *Ledger) Attach(id, reasoning string, layers *model.AnalysisLayers) bool {
	i, ok := l.index[id]
	if !ok {
		return false
	}
	t := &l.history[i]
	if t.Reasoning != "" || t.Layers != nil {
		return false
	}
	t.Reasoning = reasoning
	if layers != nil {
		cp := *layers
		t.Layers = &cp
	}
	return true
}

// Reset drops all history and sets equity to capital.
func (l *Ledger) Reset(capital float64) {
	l.equity = capital
	l.history = nil
	l.index = make(map[string]int)
}

// Clone returns an independent copy.
func (l *Ledger) Clone() *Ledger {
	cp := &Ledger{
		equity:  l.equity,
		history: l.History(),
		index:   make(map[string]int, len(l.index)),
	}
	for id, i := range l.index {
		cp.index[id] = i
	}
	return cp
}
