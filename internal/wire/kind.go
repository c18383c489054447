package wire

import (
	"bytes"
	"fmt"
	"strconv"
)

// Kind tags a wire message.
type Kind uint8

const (
	KindInitial Kind = iota + 1
	KindUpdate
	KindToggle

	kindInitialStr = "initial"
	kindUpdateStr  = "update"
	kindToggleStr  = "toggle"
)

var (
	kindInitialByte = []byte(`"initial"`)
	kindUpdateByte  = []byte(`"update"`)
	kindToggleByte  = []byte(`"toggle"`)
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return kindInitialStr
	case KindUpdate:
		return kindUpdateStr
	case KindToggle:
		return kindToggleStr
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is one of the known message kinds.
func (k Kind) Valid() bool {
	return k >= KindInitial && k <= KindToggle
}

func (k Kind) MarshalJSON() ([]byte, error) {
	switch k {
	case KindInitial:
		return kindInitialByte, nil
	case KindUpdate:
		return kindUpdateByte, nil
	case KindToggle:
		return kindToggleByte, nil
	}
	return nil, fmt.Errorf("invalid message kind json conversion: %d", k)
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, kindInitialByte):
		*k = KindInitial
	case bytes.Equal(data, kindUpdateByte):
		*k = KindUpdate
	case bytes.Equal(data, kindToggleByte):
		*k = KindToggle
	default:
		return fmt.Errorf("unknown message kind %s", data)
	}
	return nil
}

// ParseKind converts the textual tag into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case kindInitialStr:
		return KindInitial, nil
	case kindUpdateStr:
		return KindUpdate, nil
	case kindToggleStr:
		return KindToggle, nil
	}
	return 0, fmt.Errorf("unknown message kind %q", s)
}
