package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initialFrame = `{
  "type": "initial",
  "data": {
    "strategies": [
      {
        "id": 1,
        "name": "Long-Term Growth",
        "selected": false,
        "positions": [
          {
            "instrument": {"internalCode": "AAPL", "bloombergTicker": "AAPL US", "reutersTicker": "AAPL.O", "instrumentType": "Equity", "currency": "USD"},
            "quantity": 100,
            "dailyPnL": -20.156497489679737,
            "totalPnL": -1738.6820035429564
          }
        ],
        "riskMetrics": {"var95": 1971.77, "var99": 394.35, "maxDrawdown": 3943.54, "exposure": 39435.44, "riskLimit": 59153.16}
      },
      {"id": 2, "name": "Value Investing", "selected": true, "positions": [], "riskMetrics": {}}
    ]
  }
}`

func TestDecode_InitialSnapshot(t *testing.T) {
	msg, err := Decode([]byte(initialFrame))
	require.NoError(t, err)

	assert.Equal(t, KindInitial, msg.Type)
	require.True(t, msg.HasStrategies())
	require.Len(t, msg.Data.Strategies, 2)

	s := msg.Data.Strategies[0]
	assert.Equal(t, ID(1), s.ID)
	assert.Equal(t, "Long-Term Growth", s.Name.String())
	require.Len(t, s.Positions, 1)
	assert.Equal(t, "AAPL", s.Positions[0].Instrument.InternalCode.String())
	assert.Equal(t, 100.0, s.Positions[0].Quantity.Float64())
	assert.Nil(t, s.Positions[0].LastPrice)
	assert.Nil(t, s.RiskMetrics.Volatility)
	assert.InDelta(t, 1971.77, s.RiskMetrics.Var95.Float64(), 1e-9)

	assert.True(t, msg.Data.Strategies[1].Selected.Bool())
	assert.Empty(t, msg.Data.Strategies[1].Positions)

	_, ok := msg.StrategyID()
	assert.False(t, ok)
	assert.Nil(t, msg.PriceMap())
}

func TestDecode_UpdateWithPrices(t *testing.T) {
	raw := `{"type":"update","data":{"prices":{"AAPL":191.5,"MSFT":"402.25"},"strategies":[]}}`

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, KindUpdate, msg.Type)
	assert.True(t, msg.HasStrategies(), "explicit empty list is still a replacement")
	assert.Equal(t, map[string]float64{"AAPL": 191.5, "MSFT": 402.25}, msg.PriceMap())
}

func TestDecode_MissingOptionalFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"no data", `{"type":"update"}`, KindUpdate},
		{"empty data", `{"type":"toggle","data":{}}`, KindToggle},
		{"null strategies", `{"type":"update","data":{"strategies":null}}`, KindUpdate},
		{"bare strategy", `{"type":"initial","data":{"strategies":[{"id":3}]}}`, KindInitial},
		{"unknown fields", `{"type":"update","data":{"seq":12},"extra":true}`, KindUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, msg.Type)
		})
	}
}

func TestDecode_LooseNumbers(t *testing.T) {
	raw := `{"type":"update","data":{"strategyId":"9","strategies":[{"id":"4","name":"Loose","positions":[
		{"quantity":"25","dailyPnL":null,"totalPnL":"n/a","lastPrice":"101.5","entryPrice":true}
	],"riskMetrics":{"var95":"12.5","volatility":0.2}}]}}`

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	id, ok := msg.StrategyID()
	require.True(t, ok)
	assert.Equal(t, int64(9), id)

	s := msg.Data.Strategies[0]
	assert.Equal(t, ID(4), s.ID)
	p := s.Positions[0]
	assert.Equal(t, 25.0, p.Quantity.Float64())
	assert.Zero(t, p.DailyPnL.Float64())
	assert.Zero(t, p.TotalPnL.Float64())
	require.NotNil(t, p.LastPrice)
	assert.Equal(t, 101.5, p.LastPrice.Float64())
	require.NotNil(t, p.EntryPrice)
	assert.Zero(t, p.EntryPrice.Float64())
	assert.Equal(t, 12.5, s.RiskMetrics.Var95.Float64())
	require.NotNil(t, s.RiskMetrics.Volatility)
	assert.Equal(t, 0.2, s.RiskMetrics.Volatility.Float64())
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed", `{"invalid": json}`},
		{"truncated", `{"type":"update","data":{`},
		{"empty", ``},
		{"missing type", `{"data":{"strategies":[]}}`},
		{"unknown type", `{"type":"toggle_strategy","strategyId":7}`},
		{"data not object", `{"type":"update","data":"oops"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			require.Error(t, err)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr), "expected *DecodeError, got %T", err)
			assert.Equal(t, tt.raw, string(decErr.Raw))
		})
	}
}

func TestDecodeError_TruncatesRaw(t *testing.T) {
	raw := make([]byte, 1024)
	for i := range raw {
		raw[i] = '{'
	}

	_, err := Decode(raw)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Len(t, decErr.Raw, maxSnippet)
	assert.Contains(t, decErr.Error(), "decode message")
}

func TestEncode_Toggle(t *testing.T) {
	data, err := Encode(Toggle{StrategyID: 7})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"toggle","data":{"strategyId":7}}`, string(data))

	again, err := Encode(Toggle{StrategyID: 7})
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestToggle_RoundTrip(t *testing.T) {
	for _, id := range []int64{0, 1, 7, 42, -3, 1 << 40} {
		data, err := Encode(Toggle{StrategyID: id})
		require.NoError(t, err)

		msg, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, KindToggle, msg.Type)

		got, ok := msg.StrategyID()
		require.True(t, ok)
		assert.Equal(t, id, got)
	}
}

func TestStrategy_PnLTotals(t *testing.T) {
	s := Strategy{Positions: []Position{
		{DailyPnL: 10, TotalPnL: 100},
		{DailyPnL: -4, TotalPnL: -30},
	}}

	assert.Equal(t, 6.0, s.DailyPnL())
	assert.Equal(t, 70.0, s.TotalPnL())
}

func TestEncode_RelayedMessage(t *testing.T) {
	msg, err := Decode([]byte(initialFrame))
	require.NoError(t, err)

	data, err := Encode(msg)
	require.NoError(t, err)

	again, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, again)
	assert.NotContains(t, string(data), "lastPrice", "absent optional fields stay absent")
}

func TestDecode_LooseStrings(t *testing.T) {
	raw := `{"type":"update","data":{"strategies":[
		{"id":1,"name":42,"selected":1,"positions":[{"instrument":{"internalCode":7,"currency":null,"bloombergTicker":true,"reutersTicker":{"x":1}},"quantity":1}]},
		{"id":2,"name":"Value","selected":"true"},
		{"id":3,"name":null,"selected":0},
		{"id":4,"name":1.5,"selected":"false"},
		{"id":5,"selected":"maybe"}
	]}}`

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, msg.Data.Strategies, 5)

	tests := []struct {
		name     string
		selected bool
	}{
		{"42", true},
		{"Value", true},
		{"", false},
		{"1.5", false},
		{"", false},
	}
	for i, tt := range tests {
		s := msg.Data.Strategies[i]
		assert.Equal(t, tt.name, s.Name.String(), "strategy %d name", s.ID)
		assert.Equal(t, tt.selected, s.Selected.Bool(), "strategy %d selected", s.ID)
	}

	inst := msg.Data.Strategies[0].Positions[0].Instrument
	assert.Equal(t, "7", inst.InternalCode.String())
	assert.Equal(t, "", inst.Currency.String())
	assert.Equal(t, "true", inst.BloombergTicker.String())
	assert.Equal(t, "", inst.ReutersTicker.String())
}

func TestDecode_IDOutOfRange(t *testing.T) {
	for _, raw := range []string{`"1e20"`, `-1e19`, `9.3e18`} {
		var id ID
		require.NoError(t, id.UnmarshalJSON([]byte(raw)))
		assert.Zero(t, id.Int64(), raw)
	}

	var id ID
	require.NoError(t, id.UnmarshalJSON([]byte(`"4.2e3"`)))
	assert.Equal(t, int64(4200), id.Int64())
}

func TestEncode_KeepsEmptyStrategies(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"update","data":{"strategies":[]}}`))
	require.NoError(t, err)
	require.True(t, msg.HasStrategies())

	data, err := Encode(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"update","data":{"strategies":[]}}`, string(data))

	again, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, again.HasStrategies(), "an empty list still clears the collection")
	assert.Empty(t, again.Data.Strategies)

	data, err = Encode(Message{Type: KindUpdate})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"update","data":{}}`, string(data))
}
