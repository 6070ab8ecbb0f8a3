package oauth1

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/vitalvas/restkit/rest"
)

// Signature method names per RFC 5849 Section 3.4.
const (
	MethodHMACSHA1  = "HMAC-SHA1"
	MethodRSASHA1   = "RSA-SHA1"
	MethodPlainText = "PLAINTEXT"
)

// Minimum RSA key size in bits. OAuth 1.0a deployments still commonly use
// 1024-bit keys.
const minRSAKeyBits = 1024

// SignatureProvider signs OAuth1 signature base strings.
type SignatureProvider interface {
	// Method returns the oauth_signature_method value.
	Method() string

	// Sign returns the oauth_signature value for base. Providers that do
	// not use shared secrets ignore consumerSecret and tokenSecret.
	Sign(base []byte, consumerSecret, tokenSecret string) (string, error)
}

// SignatureVerifier checks oauth_signature values.
type SignatureVerifier interface {
	// Method returns the oauth_signature_method value.
	Method() string

	// Verify returns nil when signature is valid for base.
	Verify(base []byte, signature, consumerSecret, tokenSecret string) error
}

// signingKey returns the HMAC-SHA1 key and PLAINTEXT signature.
func signingKey(consumerSecret, tokenSecret string) string {
	return Escape(consumerSecret) + "&" + Escape(tokenSecret)
}

// --- HMAC-SHA1 ---

// HMACSHA1 signs with HMAC-SHA1 keyed by the consumer and token secrets
// (RFC 5849 Section 3.4.2). It is both a provider and a verifier.
type HMACSHA1 struct{}

// Method returns "HMAC-SHA1".
func (HMACSHA1) Method() string { return MethodHMACSHA1 }

// Sign returns base64(HMAC-SHA1(key, base)).
func (HMACSHA1) Sign(base []byte, consumerSecret, tokenSecret string) (string, error) {
	mac := hmac.New(sha1.New, []byte(signingKey(consumerSecret, tokenSecret)))
	mac.Write(base)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time.
func (h HMACSHA1) Verify(base []byte, signature, consumerSecret, tokenSecret string) error {
	expected, _ := h.Sign(base, consumerSecret, tokenSecret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return rest.ErrSignatureInvalid
	}

	return nil
}

// --- PLAINTEXT ---

// PlainText sends the signing key itself as the signature (RFC 5849
// Section 3.4.4). It must only be used over TLS.
type PlainText struct{}

// Method returns "PLAINTEXT".
func (PlainText) Method() string { return MethodPlainText }

// Sign returns the encoded consumer and token secrets joined by '&'.
func (PlainText) Sign(_ []byte, consumerSecret, tokenSecret string) (string, error) {
	return signingKey(consumerSecret, tokenSecret), nil
}

// Verify compares signature with the expected key in constant time.
func (PlainText) Verify(_ []byte, signature, consumerSecret, tokenSecret string) error {
	expected := signingKey(consumerSecret, tokenSecret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return rest.ErrSignatureInvalid
	}

	return nil
}

// --- RSA-SHA1 ---

type rsaSHA1Signer struct {
	key *rsa.PrivateKey
}

// NewRSASHA1 returns a provider signing with RSASSA-PKCS1-v1_5 over SHA-1
// (RFC 5849 Section 3.4.3). The consumer secret is not used.
func NewRSASHA1(key *rsa.PrivateKey) (SignatureProvider, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa private key must not be nil", rest.ErrInvalidKey)
	}

	if key.N == nil || key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", rest.ErrInvalidKey, minRSAKeyBits)
	}

	return &rsaSHA1Signer{key: key}, nil
}

func (s *rsaSHA1Signer) Method() string { return MethodRSASHA1 }

func (s *rsaSHA1Signer) Sign(base []byte, _, _ string) (string, error) {
	digest := sha1.Sum(base)

	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %w", rest.ErrCrypto, err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

type rsaSHA1Verifier struct {
	key *rsa.PublicKey
}

// NewRSASHA1Verifier returns a verifier for RSA-SHA1 signatures.
func NewRSASHA1Verifier(key *rsa.PublicKey) (SignatureVerifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa public key must not be nil", rest.ErrInvalidKey)
	}

	if key.N == nil || key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", rest.ErrInvalidKey, minRSAKeyBits)
	}

	return &rsaSHA1Verifier{key: key}, nil
}

func (v *rsaSHA1Verifier) Method() string { return MethodRSASHA1 }

func (v *rsaSHA1Verifier) Verify(base []byte, signature, _, _ string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return rest.ErrSignatureInvalid
	}

	digest := sha1.Sum(base)
	if err := rsa.VerifyPKCS1v15(v.key, crypto.SHA1, digest[:], sig); err != nil {
		return rest.ErrSignatureInvalid
	}

	return nil
}
