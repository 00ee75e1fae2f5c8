package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// HTTPClient fetches the discovery document.
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

func startJWKCache(ctx context.Context, jwksURI string, log logrus.FieldLogger) (*jwk.Cache, error) {
	c := jwk.NewCache(ctx)
	if err := c.Register(jwksURI, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, err
	}
	if _, err := c.Refresh(ctx, jwksURI); err != nil {
		return nil, err
	}
	log.WithField("jwks", jwksURI).Info("jwk cache started")
	return c, nil
}

// OidcAuth rejects requests without a bearer token signed by a key from
// wellknown, which is either an OpenID discovery URL or a JWKS URL. When the
// discovery document names an issuer, tokens must carry it. The key cache
// refreshes until ctx is done.
func OidcAuth(ctx context.Context, wellknown string, op Options) (func(next http.Handler) http.Handler, error) {
	if op.HTTPClient == nil {
		op.HTTPClient = http.DefaultClient
	}
	if op.Logger == nil {
		op.Logger = logrus.StandardLogger()
	}
	log := op.Logger

	d, err := discover(ctx, op.HTTPClient, wellknown)
	if err != nil {
		return nil, err
	}
	c, err := startJWKCache(ctx, d.JWKSURI, log)
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyset, err := c.Get(r.Context(), d.JWKSURI)
			if err != nil {
				log.WithError(err).Error("could not retrieve keyset")
				http.Error(w, "internal server error validating authorization header", http.StatusInternalServerError)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				http.Error(w, "authorization header is not a bearer token", http.StatusUnauthorized)
				return
			}
			opts := []jwt.ParseOption{jwt.WithKeySet(keyset), jwt.WithValidate(true)}
			if d.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(d.Issuer))
			}
			_, err = jwt.ParseString(token, opts...)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if jwt.IsValidationError(err) {
				log.WithError(err).Warn("jwt could not be validated")
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			log.WithError(err).Warn("jwt could not be parsed")
			http.Error(w, err.Error(), http.StatusUnauthorized)
		})
	}, nil
}
