package featureflag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
)

// Source loads the flag set of a tenant.
type Source interface {
	Name() string
	Load(ctx context.Context, tenantID string) (Set, error)
}

// StaticSource serves the same set to every tenant.
type StaticSource struct {
	Flags Set
}

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Load(context.Context, string) (Set, error) {
	return s.Flags.Normalized(), nil
}

// HTTPSource fetches flags from a remote configuration endpoint. The
// endpoint receives ?tenant=<id> and answers with a JSON object of flag
// keys to booleans.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource creates an HTTPSource with its own client timeout.
func NewHTTPSource(rawURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		URL:    rawURL,
		Client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Load(ctx context.Context, tenantID string) (Set, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid flag source URL: %w", err)
	}
	q := u.Query()
	q.Set("tenant", tenantID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch flags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch flags: unexpected status %d", resp.StatusCode)
	}

	var flags Set
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&flags); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	return flags.Normalized(), nil
}

// StoreSource reads flags from the persistence engine under flags/<tenant>.
// A tenant without a stored document gets an empty set, so every lookup
// goes through Defaults.
type StoreSource struct {
	Engine persistence.Engine
}

func (s *StoreSource) Name() string { return "store" }

func (s *StoreSource) Load(_ context.Context, tenantID string) (Set, error) {
	raw, err := s.Engine.Get(storeKey(tenantID))
	if errors.Is(err, persistence.ErrNotFound) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	var flags Set
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	return flags.Normalized(), nil
}

// Save replaces the stored flags of a tenant.
func (s *StoreSource) Save(tenantID string, flags Set) error {
	raw, err := json.Marshal(flags.Normalized())
	if err != nil {
		return err
	}
	return s.Engine.Set(storeKey(tenantID), raw)
}

func storeKey(tenantID string) string {
	return "flags/" + tenantID
}
