// Package targets computes the profit-target and stop levels a capture row is
// graded against, from per-symbol offset configuration.
package targets

import "strings"

// Mode selects how an offset is applied to the entry price.
type Mode string

const (
	ModePoints   Mode = "POINTS"
	ModePercent  Mode = "PERCENT"
	ModeDisabled Mode = "DISABLED"
)

// SymbolConfig is one symbol's offset configuration.
type SymbolConfig struct {
	Mode   Mode    `yaml:"mode"`
	Offset float64 `yaml:"offset"`
}

// Config maps symbols to their target configuration. Missing symbols behave
// as DISABLED so a configuration gap degrades to an ungraded row, never an
// error.
type Config map[string]SymbolConfig

// Compute returns (high, low) target levels for an entry price, or ok=false
// when the symbol is disabled, unknown, or misconfigured.
func (c Config) Compute(symbol string, entry float64) (high, low float64, ok bool) {
	sc, found := c[symbol]
	if !found || entry <= 0 || sc.Offset <= 0 {
		return 0, 0, false
	}
	switch Mode(strings.ToUpper(string(sc.Mode))) {
	case ModePoints:
		return entry + sc.Offset, entry - sc.Offset, true
	case ModePercent:
		return entry * (1 + sc.Offset/100), entry * (1 - sc.Offset/100), true
	default:
		return 0, 0, false
	}
}

// Symbols returns every configured symbol, disabled ones included.
func (c Config) Symbols() []string {
	out := make([]string, 0, len(c))
	for s := range c {
		out = append(out, s)
	}
	return out
}
