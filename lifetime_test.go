package inject_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/inject"
)

func TestLifetime(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		tests := []struct {
			lifetime inject.Lifetime
			expected string
		}{
			{inject.Singleton, "Singleton"},
			{inject.Scoped, "Scoped"},
			{inject.Transient, "Transient"},
			{inject.Lifetime(999), "Unknown(999)"},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, tt.lifetime.String())
		}
	})

	t.Run("IsValid", func(t *testing.T) {
		assert.True(t, inject.Singleton.IsValid())
		assert.True(t, inject.Scoped.IsValid())
		assert.True(t, inject.Transient.IsValid())
		assert.False(t, inject.Lifetime(-1).IsValid())
		assert.False(t, inject.Lifetime(3).IsValid())
	})

	t.Run("text round trip", func(t *testing.T) {
		for _, l := range []inject.Lifetime{inject.Singleton, inject.Scoped, inject.Transient} {
			text, err := l.MarshalText()
			require.NoError(t, err)

			var parsed inject.Lifetime
			require.NoError(t, parsed.UnmarshalText(text))
			assert.Equal(t, l, parsed)
		}
	})

	t.Run("parsing is case insensitive", func(t *testing.T) {
		var l inject.Lifetime
		require.NoError(t, l.UnmarshalText([]byte("SCOPED")))
		assert.Equal(t, inject.Scoped, l)
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := json.Marshal(struct {
			Lifetime inject.Lifetime `json:"lifetime"`
		}{inject.Transient})
		require.NoError(t, err)
		assert.JSONEq(t, `{"lifetime":"Transient"}`, string(data))

		var decoded struct {
			Lifetime inject.Lifetime `json:"lifetime"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"lifetime":"singleton"}`), &decoded))
		assert.Equal(t, inject.Singleton, decoded.Lifetime)
	})

	t.Run("invalid values", func(t *testing.T) {
		var lifetimeErr *inject.LifetimeError

		_, err := inject.Lifetime(42).MarshalText()
		require.True(t, errors.As(err, &lifetimeErr))
		assert.Equal(t, 42, lifetimeErr.Value)

		var l inject.Lifetime
		err = l.UnmarshalText([]byte("forever"))
		require.True(t, errors.As(err, &lifetimeErr))
		assert.Equal(t, "forever", lifetimeErr.Value)

		_, err = json.Marshal(inject.Lifetime(42))
		assert.Error(t, err)
	})
}
