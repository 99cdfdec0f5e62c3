package token

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
)

const thumbprintHash = crypto.SHA256

// Keys holds the process-lifetime RSA signing key for access tokens. The
// private half never leaves this service; the public half is published as
// a JWKS so other services verify tokens without trusting this process.
type Keys struct {
	private *rsa.PrivateKey
	kid     string
}

// LoadKeys reads and parses the RSA private key PEM at path. Missing or
// malformed key material is a hard error: the service must not start
// without the ability to sign access tokens.
func LoadKeys(path string) (*Keys, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParseKeys(raw)
}

// ParseKeys parses PEM-encoded RSA private key material (PKCS#1 or PKCS#8).
func ParseKeys(pemBytes []byte) (*Keys, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("private key: no PEM block found")
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pkcs1 private key: %w", err)
		}
		key = parsed
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse pkcs8 private key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key: expected RSA, got %T", parsed)
		}
		key = rsaKey
	default:
		return nil, fmt.Errorf("private key: unsupported PEM block %q", block.Type)
	}

	kid, err := thumbprint(key)
	if err != nil {
		return nil, fmt.Errorf("derive kid: %w", err)
	}

	return &Keys{private: key, kid: kid}, nil
}

// KID is the stable identifier of the active signing key. Derived from
// the public key thumbprint so it survives restarts.
func (k *Keys) KID() string { return k.kid }

// JWKS returns the public key set for /.well-known/jwks.json.
func (k *Keys) JWKS() jose.JSONWebKeySet {
	public := jose.JSONWebKey{
		Key:       &k.private.PublicKey,
		KeyID:     k.kid,
		Use:       "sig",
		Algorithm: string(jose.RS256),
	}
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{public}}
}

func thumbprint(key *rsa.PrivateKey) (string, error) {
	jwk := jose.JSONWebKey{Key: &key.PublicKey}
	sum, err := jwk.Thumbprint(thumbprintHash)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
