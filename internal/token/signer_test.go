package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/domain"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/token"
)

const testIssuer = "auth-service-test"

var (
	keysOnce  sync.Once
	testKeys  *token.Keys
	otherKeys *token.Keys
)

func loadTestKeys(t *testing.T) (*token.Keys, *token.Keys) {
	t.Helper()
	keysOnce.Do(func() {
		testKeys = generateKeys(t)
		otherKeys = generateKeys(t)
	})
	return testKeys, otherKeys
}

func generateKeys(t *testing.T) *token.Keys {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	keys, err := token.ParseKeys(pemBytes)
	require.NoError(t, err)
	return keys
}

func newTestSigner(t *testing.T, keys *token.Keys, accessTTL time.Duration) *token.Signer {
	t.Helper()
	signer, err := token.NewSigner(keys, []byte("refresh-secret-0123456789abcdef0123456789abcdef"), testIssuer, accessTTL, 365*24*time.Hour)
	require.NoError(t, err)
	return signer
}

func TestParseKeysRejectsGarbage(t *testing.T) {
	_, err := token.ParseKeys([]byte("not a pem"))
	require.Error(t, err)

	_, err = token.ParseKeys(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2, 3}}))
	require.Error(t, err)
}

func TestNewSignerRequiresSecret(t *testing.T) {
	keys, _ := loadTestKeys(t)
	_, err := token.NewSigner(keys, nil, testIssuer, time.Hour, time.Hour)
	require.Error(t, err)

	_, err = token.NewSigner(nil, []byte("secret"), testIssuer, time.Hour, time.Hour)
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	keys, _ := loadTestKeys(t)
	signer := newTestSigner(t, keys, time.Hour)
	verifier := token.NewVerifier(keys, testIssuer)

	user := domain.User{ID: 42, Role: domain.RoleCustomer}
	raw, err := signer.SignAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := verifier.VerifyAccessToken(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, domain.RoleCustomer, claims.Role)
	require.Zero(t, claims.SessionID)
}

func TestAccessTokenExpired(t *testing.T) {
	keys, _ := loadTestKeys(t)
	signer := newTestSigner(t, keys, -time.Minute)
	verifier := token.NewVerifier(keys, testIssuer)

	raw, err := signer.SignAccessToken(domain.User{ID: 1, Role: domain.RoleCustomer})
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), raw)
	require.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestAccessTokenWrongKey(t *testing.T) {
	keys, other := loadTestKeys(t)
	signer := newTestSigner(t, other, time.Hour)
	verifier := token.NewVerifier(keys, testIssuer)

	raw, err := signer.SignAccessToken(domain.User{ID: 1, Role: domain.RoleCustomer})
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), raw)
	require.ErrorIs(t, err, token.ErrTokenInvalidSignature)
}

func TestAccessTokenMalformed(t *testing.T) {
	keys, _ := loadTestKeys(t)
	verifier := token.NewVerifier(keys, testIssuer)

	_, err := verifier.VerifyAccessToken(context.Background(), "definitely-not-a-jwt")
	require.ErrorIs(t, err, token.ErrTokenMalformed)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	keys, _ := loadTestKeys(t)
	signer := newTestSigner(t, keys, time.Hour)

	user := domain.User{ID: 42, Role: domain.RoleManager}
	raw, err := signer.SignRefreshToken(user, 777)
	require.NoError(t, err)

	claims, err := signer.VerifyRefreshToken(raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, domain.RoleManager, claims.Role)
	require.Equal(t, int64(777), claims.SessionID)
}

func TestRefreshTokenWrongSecret(t *testing.T) {
	keys, _ := loadTestKeys(t)
	signer := newTestSigner(t, keys, time.Hour)
	other, err := token.NewSigner(keys, []byte("different-secret-0123456789abcdef0123456789abcdef"), testIssuer, time.Hour, time.Hour)
	require.NoError(t, err)

	raw, err := other.SignRefreshToken(domain.User{ID: 1, Role: domain.RoleCustomer}, 5)
	require.NoError(t, err)

	_, err = signer.VerifyRefreshToken(raw)
	require.ErrorIs(t, err, token.ErrTokenInvalidSignature)
}

func TestRefreshTokenRejectsAccessToken(t *testing.T) {
	keys, _ := loadTestKeys(t)
	signer := newTestSigner(t, keys, time.Hour)

	// An RS256 access token is not acceptable in the refresh context.
	raw, err := signer.SignAccessToken(domain.User{ID: 1, Role: domain.RoleCustomer})
	require.NoError(t, err)

	_, err = signer.VerifyRefreshToken(raw)
	require.ErrorIs(t, err, token.ErrTokenMalformed)
}

func TestRefreshTokenRejectsUnknownRole(t *testing.T) {
	keys, _ := loadTestKeys(t)
	signer := newTestSigner(t, keys, time.Hour)

	raw, err := signer.SignRefreshToken(domain.User{ID: 1, Role: domain.Role("superuser")}, 5)
	require.NoError(t, err)

	_, err = signer.VerifyRefreshToken(raw)
	require.ErrorIs(t, err, token.ErrTokenMalformed)
}

func TestJWKSContainsOnlyPublicMaterial(t *testing.T) {
	keys, _ := loadTestKeys(t)
	set := keys.JWKS()
	require.Len(t, set.Keys, 1)

	jwk := set.Keys[0]
	require.True(t, jwk.IsPublic())
	require.Equal(t, keys.KID(), jwk.KeyID)
	require.Equal(t, "sig", jwk.Use)
}
