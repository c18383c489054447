package wire

// Instrument identifies a traded financial instrument.
type Instrument struct {
	InternalCode    Text `json:"internalCode"`
	BloombergTicker Text `json:"bloombergTicker"`
	ReutersTicker   Text `json:"reutersTicker"`
	InstrumentType  Text `json:"instrumentType"`
	Currency        Text `json:"currency"`
	AssetClass      Text `json:"assetClass,omitempty"`
}

// Position is a held quantity of an instrument and its P&L figures.
// Price fields are optional and stay nil when the feed omits them.
type Position struct {
	Instrument    Instrument `json:"instrument"`
	Quantity      Number     `json:"quantity"`
	DailyPnL      Number     `json:"dailyPnL"`
	TotalPnL      Number     `json:"totalPnL"`
	LastPrice     *Number    `json:"lastPrice,omitempty"`
	OpeningPrice  *Number    `json:"openingPrice,omitempty"`
	EntryPrice    *Number    `json:"entryPrice,omitempty"`
	PositionValue *Number    `json:"positionValue,omitempty"`
}

type RiskMetrics struct {
	Var95       Number  `json:"var95"`
	Var99       Number  `json:"var99"`
	MaxDrawdown Number  `json:"maxDrawdown"`
	Exposure    Number  `json:"exposure"`
	RiskLimit   Number  `json:"riskLimit"`
	Volatility  *Number `json:"volatility,omitempty"`
}

// Strategy is a named, toggleable trading book.
type Strategy struct {
	ID          ID          `json:"id"`
	Name        Text        `json:"name"`
	Selected    Flag        `json:"selected"`
	Positions   []Position  `json:"positions"`
	RiskMetrics RiskMetrics `json:"riskMetrics"`
}

// TotalPnL sums the total P&L of every position in the strategy.
func (s Strategy) TotalPnL() float64 {
	var total float64
	for _, p := range s.Positions {
		total += p.TotalPnL.Float64()
	}
	return total
}

// DailyPnL sums the daily P&L of every position in the strategy.
func (s Strategy) DailyPnL() float64 {
	var total float64
	for _, p := range s.Positions {
		total += p.DailyPnL.Float64()
	}
	return total
}
