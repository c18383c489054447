// Package wire implements the strategy feed wire contract: a small tagged
// union of JSON messages (initial snapshot, incremental update, toggle).
//
// Decoding only validates what is needed to route a message. Nested numeric
// fields are loosely typed and missing optional fields never fail a decode.
package wire

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Payload carries the kind-dependent data of a message. Every field is optional.
type Payload struct {
	Strategies []Strategy        `json:"strategies,omitempty"`
	StrategyID *ID               `json:"strategyId,omitempty"`
	Prices     map[string]Number `json:"prices,omitempty"`
}

// Message is the envelope exchanged with the feed server.
type Message struct {
	Type Kind    `json:"type"`
	Data Payload `json:"data"`
}

// MarshalJSON keeps an explicit empty strategies list, which clears the
// collection on the receiving side; only a nil list is omitted.
func (p Payload) MarshalJSON() ([]byte, error) {
	type plain Payload
	if p.Strategies == nil {
		return json.Marshal(plain(p))
	}
	return json.Marshal(struct {
		Strategies []Strategy        `json:"strategies"`
		StrategyID *ID               `json:"strategyId,omitempty"`
		Prices     map[string]Number `json:"prices,omitempty"`
	}{p.Strategies, p.StrategyID, p.Prices})
}

// HasStrategies reports whether the message carries a strategies list.
// An explicit empty list counts; an absent or null one does not.
func (m Message) HasStrategies() bool {
	return m.Data.Strategies != nil
}

// StrategyID extracts the strategy id echoed on toggle-related messages.
func (m Message) StrategyID() (int64, bool) {
	if m.Data.StrategyID == nil {
		return 0, false
	}
	return m.Data.StrategyID.Int64(), true
}

// PriceMap returns the price ticks as plain floats, or nil when absent.
func (m Message) PriceMap() map[string]float64 {
	if m.Data.Prices == nil {
		return nil
	}
	out := make(map[string]float64, len(m.Data.Prices))
	for k, v := range m.Data.Prices {
		out[k] = v.Float64()
	}
	return out
}

// Decode parses a raw frame into a Message. It fails with *DecodeError when
// the frame is not well-formed JSON, carries no known type tag, or its data
// member is not an object.
func Decode(raw []byte) (Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Message{}, newDecodeError(raw, fmt.Errorf("empty frame"))
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, newDecodeError(raw, err)
	}
	if !msg.Type.Valid() {
		return Message{}, newDecodeError(raw, fmt.Errorf("missing message type"))
	}
	return msg, nil
}

// Command is an outbound request to the feed server.
type Command interface {
	Envelope() Message
}

// Envelope lets a decoded message be encoded again as is, e.g. when it is
// relayed to another client.
func (m Message) Envelope() Message { return m }

// Toggle asks the server to flip the selected flag of one strategy.
// Its canonical form is {"type":"toggle","data":{"strategyId":<id>}}.
type Toggle struct {
	StrategyID int64
}

func (t Toggle) Envelope() Message {
	id := ID(t.StrategyID)
	return Message{Type: KindToggle, Data: Payload{StrategyID: &id}}
}

// Encode serializes a command. The output is deterministic for a given command.
func Encode(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd.Envelope())
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", cmd, err)
	}
	return data, nil
}
