package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	env, err := Seal([]byte(`{"access_token":"a"}`), "hunter2")
	require.NoError(t, err)
	assert.Equal(t, envelopeVersion, env.Version)

	plain, err := Open(env, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"a"}`, string(plain))
}

func TestOpenWrongPassphrase(t *testing.T) {
	env, err := Seal([]byte("payload"), "right")
	require.NoError(t, err)

	_, err = Open(env, "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassphrase)
}

func TestMarshalRoundTrip(t *testing.T) {
	env, err := Seal([]byte("payload"), "pw")
	require.NoError(t, err)

	raw, err := Marshal(env)
	require.NoError(t, err)

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)

	plain, err := Open(decoded, "pw")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))
}

func TestUnmarshalRejectsBrokenInput(t *testing.T) {
	tests := map[string]string{
		"not json":       "{",
		"missing fields": `{"version":1}`,
		"zero version":   `{"salt":"a","nonce":"b","ciphertext":"c"}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(input))
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestOpenRejectsUnknownVersion(t *testing.T) {
	env, err := Seal([]byte("x"), "pw")
	require.NoError(t, err)
	env.Version = 7

	_, err = Open(env, "pw")
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = Open(nil, "pw")
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}
