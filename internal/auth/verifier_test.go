package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testOrigin = "http://localhost:3000"
)

func newTestVerifier(t *testing.T, logs *bytes.Buffer) *Verifier {
	t.Helper()
	if logs == nil {
		logs = &bytes.Buffer{}
	}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	v, err := NewVerifier([]string{testOrigin, "https://app.example"}, testKey, logger)
	require.NoError(t, err)
	return v
}

func sampleParams() Params {
	return Params{}.
		Add("email", "a@x.com").
		Add("name", "A").
		Add("svg_data", `<svg viewBox="0 0 10 10"><line x1="0" y1="0" x2="10" y2="10"/></svg>`)
}

func TestNewVerifier_EmptyKey(t *testing.T) {
	_, err := NewVerifier([]string{testOrigin}, "", slog.Default())
	assert.Error(t, err)
}

func TestSign_MatchesPlainHMAC(t *testing.T) {
	params := sampleParams()

	mac := hmac.New(sha256.New, []byte(testKey))
	mac.Write(Canonicalize(params))
	want := hex.EncodeToString(mac.Sum(nil))

	got, err := Sign([]byte(testKey), params)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSign_EmptyKey(t *testing.T) {
	_, err := Sign(nil, sampleParams())
	assert.Error(t, err)
}

func TestVerify_ValidSignature(t *testing.T) {
	v := newTestVerifier(t, nil)
	params := sampleParams()

	sig, err := v.Sign(params)
	require.NoError(t, err)

	assert.True(t, v.Verify(params, sig, testOrigin))
	// signature inside the params is ignored by canonicalization
	assert.True(t, v.Verify(params.Add(SignatureField, sig), sig, testOrigin))
}

func TestVerify_SignatureFieldNeverSigned(t *testing.T) {
	v := newTestVerifier(t, nil)

	// a signer that left a placeholder signature in its payload while signing
	withPlaceholder := sampleParams().Add(SignatureField, "")
	sig, err := v.Sign(withPlaceholder)
	require.NoError(t, err)

	tests := map[string]Params{
		"field removed":       sampleParams(),
		"field holds the sig": sampleParams().Add(SignatureField, sig),
		"field holds junk":    sampleParams().Add(SignatureField, "junk"),
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			assert.True(t, v.Verify(params, sig, testOrigin))
		})
	}
}

func TestVerify_AnySingleBitFlipFails(t *testing.T) {
	v := newTestVerifier(t, nil)
	params := sampleParams()

	sig, err := v.Sign(params)
	require.NoError(t, err)
	raw, err := hex.DecodeString(sig)
	require.NoError(t, err)

	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), raw...)
			flipped[i] ^= 1 << bit
			if v.Verify(params, hex.EncodeToString(flipped), testOrigin) {
				t.Fatalf("flipping bit %d of byte %d still verified", bit, i)
			}
		}
	}
}

func TestVerify_TamperedPayloadFails(t *testing.T) {
	v := newTestVerifier(t, nil)
	params := sampleParams()
	sig, err := v.Sign(params)
	require.NoError(t, err)

	tampered := Params{}.Add("email", "b@x.com").Add("name", "A").Add("svg_data", params[2].Value)
	assert.False(t, v.Verify(tampered, sig, testOrigin))
}

func TestVerify_UntrustedOrigin(t *testing.T) {
	var logs bytes.Buffer
	v := newTestVerifier(t, &logs)
	params := sampleParams()
	sig, err := v.Sign(params)
	require.NoError(t, err)

	for _, origin := range []string{"", "http://evil.example", "http://localhost:3000/", "HTTP://LOCALHOST:3000"} {
		assert.False(t, v.Verify(params, sig, origin), "origin %q", origin)
	}
	assert.Contains(t, logs.String(), "untrusted origin")
	assert.Contains(t, logs.String(), "http://evil.example")
}

func TestVerify_MalformedSignature(t *testing.T) {
	v := newTestVerifier(t, nil)
	params := sampleParams()
	sig, err := v.Sign(params)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":     "",
		"short":     sig[:62],
		"long":      sig + "00",
		"uppercase": strings.ToUpper(sig),
		"not hex":   "zz" + sig[2:],
	}
	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			assert.False(t, v.Verify(params, s, testOrigin))
		})
	}
}

func TestVerify_NeverLogsSecrets(t *testing.T) {
	var logs bytes.Buffer
	v := newTestVerifier(t, &logs)
	params := sampleParams()
	sig, err := v.Sign(params)
	require.NoError(t, err)

	v.Verify(params, strings.Repeat("0", 64), testOrigin)
	v.Verify(params, sig, "http://evil.example")

	assert.NotContains(t, logs.String(), testKey)
	assert.NotContains(t, logs.String(), sig)
}

func TestVerifyMap(t *testing.T) {
	v := newTestVerifier(t, nil)
	payload := map[string]any{
		"email":      "a@x.com",
		"name":       "A",
		"department": nil,
		"attempt":    2,
	}

	canonical, err := CanonicalizeMap(payload)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte(testKey))
	mac.Write(canonical)
	sig := hex.EncodeToString(mac.Sum(nil))

	payload[SignatureField] = sig
	assert.True(t, v.VerifyMap(payload, sig, testOrigin))
	assert.False(t, v.VerifyMap(map[string]any{"bad": make(chan int)}, sig, testOrigin))
}

func TestKeyFingerprint(t *testing.T) {
	v := newTestVerifier(t, nil)

	fp := v.KeyFingerprint()
	assert.Len(t, fp, 16)
	assert.NotContains(t, fp, testKey)
	assert.Equal(t, fp, v.KeyFingerprint())

	other, err := NewVerifier(nil, "another-key", slog.Default())
	require.NoError(t, err)
	assert.NotEqual(t, fp, other.KeyFingerprint())
}
