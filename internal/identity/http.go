package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPResolver queries the external identity provider's lookup endpoint:
// GET {base}/users/{id} returning {"uid": ..., "email": ..., "displayName": ...}.
type HTTPResolver struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPResolver builds a resolver against the provider at baseURL.
func NewHTTPResolver(baseURL, apiKey string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, id string) (*Identity, error) {
	endpoint := fmt.Sprintf("%s/users/%s", r.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: lookup %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity: lookup %s: unexpected status %d", id, resp.StatusCode)
	}

	var body struct {
		UID         string `json:"uid"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("identity: decode response for %s: %w", id, err)
	}

	return &Identity{ID: body.UID, Email: body.Email, DisplayName: body.DisplayName}, nil
}
