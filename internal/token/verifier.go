package token

import (
	"context"
	"fmt"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// KeySetSource supplies the current public key set. Verification goes
// through the published set rather than a pinned key so the signing key
// can rotate without changing the verifier; tokens signed by a kid that
// has left the set become unverifiable, which is the intended tradeoff.
type KeySetSource interface {
	KeySet(ctx context.Context) (gojose.JSONWebKeySet, error)
}

// KeySet implements KeySetSource from the local key material. Out-of-
// process verifiers would substitute a JWKS HTTP fetcher here.
func (k *Keys) KeySet(ctx context.Context) (gojose.JSONWebKeySet, error) {
	return k.JWKS(), nil
}

// Verifier checks RS256 access tokens against a published key set.
type Verifier struct {
	source KeySetSource
	issuer string
}

func NewVerifier(source KeySetSource, issuer string) *Verifier {
	return &Verifier{source: source, issuer: issuer}
}

// VerifyAccessToken validates signature, issuer and expiry, and returns
// the decoded identity claims.
func (v *Verifier) VerifyAccessToken(ctx context.Context, raw string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.RS256})
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}
	if len(parsed.Headers) != 1 {
		return Claims{}, ErrTokenMalformed
	}

	keySet, err := v.source.KeySet(ctx)
	if err != nil {
		return Claims{}, fmt.Errorf("fetch key set: %w", err)
	}
	matches := keySet.Key(parsed.Headers[0].KeyID)
	if len(matches) == 0 {
		return Claims{}, ErrTokenInvalidSignature
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(matches[0].Key, &std, &custom); err != nil {
		return Claims{}, ErrTokenInvalidSignature
	}

	if err := validateTime(std, v.issuer); err != nil {
		return Claims{}, err
	}
	return decodeClaims(std, custom)
}
