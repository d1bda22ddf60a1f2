package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess      = "✓"
	SymbolFail         = "✗"
	SymbolWarning      = "⚠"
	SymbolConnected    = "●"
	SymbolDisconnected = "○"
	SymbolInactive     = "⊘" // sensor reports itself inactive

	SymbolTrendUp   = "↑"
	SymbolTrendDown = "↓"
	SymbolTrendFlat = "→"
)

// TrendFlatBand is the slope magnitude below which a trend is shown as flat.
const TrendFlatBand = 0.01

// TrendSymbol picks an arrow for a per-sample slope.
func TrendSymbol(slope float64) string {
	switch {
	case slope > TrendFlatBand:
		return SymbolTrendUp
	case slope < -TrendFlatBand:
		return SymbolTrendDown
	default:
		return SymbolTrendFlat
	}
}
