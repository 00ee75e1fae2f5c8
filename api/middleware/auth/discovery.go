package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

const discoveryPath = "/.well-known/openid-configuration"

type discovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// discover resolves an OpenID discovery document to its issuer and key set
// URL. Any other URL is taken to be the key set itself.
func discover(ctx context.Context, client *http.Client, wellknown string) (*discovery, error) {
	if !strings.HasSuffix(wellknown, discoveryPath) {
		return &discovery{JWKSURI: wellknown}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellknown, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned %s", resp.Status)
	}
	d := new(discovery)
	if err := json.NewDecoder(resp.Body).Decode(d); err != nil {
		return nil, fmt.Errorf("could not decode discovery document: %w", err)
	}
	if d.JWKSURI == "" {
		return nil, fmt.Errorf("discovery document has no jwks_uri")
	}
	return d, nil
}
