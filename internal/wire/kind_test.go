package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKindData struct {
	Type Kind `json:"type"`
}

func TestKind_MarshalJSON(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInitial, `{"type":"initial"}`},
		{KindUpdate, `{"type":"update"}`},
		{KindToggle, `{"type":"toggle"}`},
	}

	for _, tt := range tests {
		val, err := json.Marshal(&testKindData{tt.kind})
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(val))
	}

	_, err := json.Marshal(&testKindData{Kind(8)})
	assert.ErrorContains(t, err, "invalid message kind json conversion: 8")
}

func TestKind_UnmarshalJSON(t *testing.T) {
	var obj testKindData

	require.NoError(t, json.Unmarshal([]byte(`{"type":"update"}`), &obj))
	assert.Equal(t, KindUpdate, obj.Type)

	err := json.Unmarshal([]byte(`{"type":"delete"}`), &obj)
	assert.Error(t, err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "initial", KindInitial.String())
	assert.Equal(t, "toggle", KindToggle.String())
	assert.Equal(t, "kind(0)", Kind(0).String())
	assert.False(t, Kind(0).Valid())
	assert.True(t, KindUpdate.Valid())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("initial")
	require.NoError(t, err)
	assert.Equal(t, KindInitial, k)

	_, err = ParseKind("toggle_strategy")
	assert.Error(t, err)
}
