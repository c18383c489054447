package wire

import (
	"bytes"
	"math"
	"strconv"
)

// Number is a float field that tolerates the loose typing of the feed:
// JSON numbers, numeric strings and null all decode. Anything else decodes
// to zero instead of failing the whole message.
type Number float64

func (n Number) Float64() float64 { return float64(n) }

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number(parseLooseFloat(data))
	return nil
}

// ID is a strategy identifier. Like Number it accepts numeric strings.
type ID int64

func (id ID) Int64() int64 { return int64(id) }

func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(unquote(data))
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*id = ID(v)
		return nil
	}
	f := parseLooseFloat(data)
	if f < -maxIDFloat || f >= maxIDFloat {
		f = 0
	}
	*id = ID(f)
	return nil
}

// maxIDFloat is 2^63, the first float64 outside the int64 range.
const maxIDFloat = float64(1 << 63)

// Text is a string field that also accepts numbers and booleans, rendered
// in their JSON form. Null and composite values decode to "".
type Text string

func (t Text) String() string { return string(t) }

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			*t = ""
			return nil
		}
		*t = Text(strconv.FormatBool(b))
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			*t = ""
			return nil
		}
		*t = Text(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return nil
}

// Flag is a bool field that also accepts 0/1 and "true"/"false".
// Anything else decodes to false.
type Flag bool

func (f Flag) Bool() bool { return bool(f) }

func (f *Flag) UnmarshalJSON(data []byte) error {
	s := string(unquote(data))
	if b, err := strconv.ParseBool(s); err == nil {
		*f = Flag(b)
		return nil
	}
	*f = Flag(parseLooseFloat(data) != 0)
	return nil
}

func parseLooseFloat(data []byte) float64 {
	s := unquote(data)
	if len(s) == 0 || bytes.Equal(s, []byte("null")) {
		return 0
	}
	f, err := strconv.ParseFloat(string(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func unquote(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		return bytes.TrimSpace(data[1 : len(data)-1])
	}
	return data
}
