package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataScan(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  Metadata
	}{
		{name: "null column", value: nil, want: Metadata{}},
		{name: "bytes", value: []byte(`{"last_intent_id":"pi_1"}`), want: Metadata{"last_intent_id": "pi_1"}},
		{name: "text", value: `{"fully_discounted":"true"}`, want: Metadata{"fully_discounted": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Metadata
			require.NoError(t, m.Scan(tt.value))
			assert.Equal(t, tt.want, m)
		})
	}

	var m Metadata
	assert.Error(t, m.Scan(42))
	assert.Error(t, m.Scan([]byte("not json")))
}

func TestMetadataWithAndValue(t *testing.T) {
	var m Metadata
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	m = m.With("last_intent_id", "pi_2")
	assert.Equal(t, "pi_2", m["last_intent_id"])

	v, err = m.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_intent_id":"pi_2"}`, string(v.([]byte)))
}
