package creatorup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignRawRoundTrip(t *testing.T) {
	payload := []byte(`{"event_type":"usage_update","digiup_user_id":7}`)

	sig := SignRaw(payload, "shared-secret")

	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature(payload, sig, "shared-secret"))
}

func TestSignPayloadMatchesSignRaw(t *testing.T) {
	data := map[string]interface{}{"a": "b"}

	sig, err := SignPayload(data, "s")
	require.NoError(t, err)
	assert.Equal(t, SignRaw([]byte(`{"a":"b"}`), "s"), sig)
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event_type":"usage_update"}`)
	valid := SignRaw(payload, "secret")

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		want      bool
	}{
		{"valid signature", payload, valid, "secret", true},
		{"uppercase hex accepted", payload, strings.ToUpper(valid), "secret", true},
		{"surrounding whitespace trimmed", payload, " " + valid + " ", "secret", true},
		{"wrong secret", payload, valid, "other", false},
		{"tampered payload", []byte(`{"event_type":"usage_update" }`), valid, "secret", false},
		{"empty signature", payload, "", "secret", false},
		{"empty secret", payload, valid, "", false},
		{"non-hex signature", payload, "not-hex!", "secret", false},
		{"truncated signature", payload, valid[:32], "secret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.payload, tt.signature, tt.secret))
		})
	}
}
