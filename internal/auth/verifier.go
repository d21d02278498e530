package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// signatureHexLen is the length of a hex-encoded HMAC-SHA256 digest.
const signatureHexLen = 64

// Verifier checks the origin and HMAC signature of signed requests.
//
// The allow-list and key are fixed at construction; a Verifier is safe for
// concurrent use.
type Verifier struct {
	origins map[string]struct{}
	key     []byte
	logger  *slog.Logger
}

// NewVerifier creates a Verifier. key must already be normalized
// (see config.NormalizeSecret) and must not be empty.
func NewVerifier(trustedOrigins []string, key string, logger *slog.Logger) (*Verifier, error) {
	if key == "" {
		return nil, errors.New("auth: signing key is empty")
	}
	origins := make(map[string]struct{}, len(trustedOrigins))
	for _, o := range trustedOrigins {
		origins[o] = struct{}{}
	}
	return &Verifier{
		origins: origins,
		key:     []byte(key),
		logger:  logger,
	}, nil
}

// OriginAllowed reports whether origin is on the allow-list (exact match).
func (v *Verifier) OriginAllowed(origin string) bool {
	_, ok := v.origins[origin]
	return ok
}

// Sign returns the hex HMAC-SHA256 of the canonical form of params.
func (v *Verifier) Sign(params Params) (string, error) {
	return Sign(v.key, params)
}

// Sign computes a request signature with key. Frontends and the signreq
// CLI use it; the server only ever verifies.
func Sign(key []byte, params Params) (string, error) {
	if len(key) == 0 {
		return "", errors.New("auth: signing key is empty")
	}
	sig, err := jwt.SigningMethodHS256.Sign(string(Canonicalize(params)), key)
	if err != nil {
		return "", fmt.Errorf("auth: signing: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether the request comes from a trusted origin and
// carries a valid signature over params.
//
// The origin is checked first; untrusted origins are rejected without
// computing the HMAC. The digest comparison is constant time.
func (v *Verifier) Verify(params Params, signature, origin string) bool {
	if !v.OriginAllowed(origin) {
		v.logger.Warn("signed request from untrusted origin", slog.String("origin", origin))
		return false
	}

	sig, ok := decodeSignature(signature)
	if !ok {
		v.logger.Warn("malformed request signature", slog.String("origin", origin))
		return false
	}

	// SigningMethodHMAC.Verify recomputes the MAC and compares with hmac.Equal.
	if err := jwt.SigningMethodHS256.Verify(string(Canonicalize(params)), sig, v.key); err != nil {
		v.logger.Warn("invalid request signature", slog.String("origin", origin))
		return false
	}
	return true
}

// VerifyMap verifies a loosely-typed payload. A payload that cannot be
// canonicalized is rejected.
func (v *Verifier) VerifyMap(payload map[string]any, signature, origin string) bool {
	params, err := ParamsFromMap(payload)
	if err != nil {
		v.logger.Warn("unsignable payload", slog.String("origin", origin), slog.String("error", err.Error()))
		return false
	}
	return v.Verify(params, signature, origin)
}

// KeyFingerprint returns a short BLAKE2b digest of the key. It identifies
// which key is loaded without revealing it.
func (v *Verifier) KeyFingerprint() string {
	sum := blake2b.Sum256(v.key)
	return hex.EncodeToString(sum[:8])
}

// decodeSignature accepts only lowercase hex of the right length. Accepting
// uppercase would make two different strings verify as the same signature.
func decodeSignature(s string) ([]byte, bool) {
	if len(s) != signatureHexLen {
		return nil, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, false
		}
	}
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return sig, true
}
