package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type provider struct {
	server *httptest.Server
	key    jwk.Key
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))
	pub, err := key.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	p := &provider{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	})
	mux.HandleFunc(discoveryPath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(discovery{Issuer: p.server.URL, JWKSURI: p.server.URL + "/jwks"})
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *provider) token(t *testing.T, issuer string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Issuer(issuer).Subject("alice").Expiration(exp).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, p.key))
	require.NoError(t, err)
	return string(signed)
}

func protected(t *testing.T, wellknown string) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log, _ := test.NewNullLogger()
	mw, err := OidcAuth(ctx, wellknown, Options{Logger: log})
	require.NoError(t, err)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func serve(h http.Handler, authorization string) int {
	req := httptest.NewRequest(http.MethodPost, "/encrypt", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestOidcAuthDiscovery(t *testing.T) {
	p := newProvider(t)
	h := protected(t, p.server.URL+discoveryPath)
	future := time.Now().Add(time.Hour)

	require.Equal(t, http.StatusNoContent, serve(h, "Bearer "+p.token(t, p.server.URL, future)))
	require.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+p.token(t, "https://elsewhere", future)))
	require.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+p.token(t, p.server.URL, time.Now().Add(-time.Hour))))
}

func TestOidcAuthJWKS(t *testing.T) {
	p := newProvider(t)
	h := protected(t, p.server.URL+"/jwks")
	// no issuer is pinned without a discovery document
	require.Equal(t, http.StatusNoContent, serve(h, "Bearer "+p.token(t, "https://anyone", time.Now().Add(time.Hour))))
}

func TestOidcAuthRejects(t *testing.T) {
	p := newProvider(t)
	h := protected(t, p.server.URL+discoveryPath)

	require.Equal(t, http.StatusUnauthorized, serve(h, ""))
	require.Equal(t, http.StatusUnauthorized, serve(h, "Basic dXNlcjpwYXNz"))
	require.Equal(t, http.StatusUnauthorized, serve(h, "Bearer"))
	require.Equal(t, http.StatusUnauthorized, serve(h, "Bearer not.a.jwt"))

	other := newProvider(t)
	require.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+other.token(t, p.server.URL, time.Now().Add(time.Hour))))
}

func TestOidcAuthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := OidcAuth(context.Background(), srv.URL+discoveryPath, Options{})
	require.Error(t, err)
}
