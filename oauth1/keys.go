package oauth1

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/vitalvas/restkit/rest"
)

// ParseRSAPrivateKeyPEM decodes a PEM encoded RSA private key in PKCS#1
// ("RSA PRIVATE KEY") or PKCS#8 ("PRIVATE KEY") form.
func ParseRSAPrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", rest.ErrInvalidKey)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rest.ErrInvalidKey, err)
		}

		return key, nil

	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rest.ErrInvalidKey, err)
		}

		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: PKCS#8 key is %T, not RSA", rest.ErrInvalidKey, parsed)
		}

		return key, nil

	default:
		return nil, fmt.Errorf("%w: unsupported PEM block %q", rest.ErrInvalidKey, block.Type)
	}
}

// ParseRSAPublicKeyPEM decodes a PEM encoded RSA public key in PKIX
// ("PUBLIC KEY") or PKCS#1 ("RSA PUBLIC KEY") form, or takes it from a
// certificate.
func ParseRSAPublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", rest.ErrInvalidKey)
	}

	var parsed any

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rest.ErrInvalidKey, err)
		}

		return key, nil

	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rest.ErrInvalidKey, err)
		}

		parsed = key

	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rest.ErrInvalidKey, err)
		}

		parsed = cert.PublicKey

	default:
		return nil, fmt.Errorf("%w: unsupported PEM block %q", rest.ErrInvalidKey, block.Type)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is %T, not RSA", rest.ErrInvalidKey, parsed)
	}

	return key, nil
}
