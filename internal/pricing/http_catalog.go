package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avask/shopflow/internal/domain"
)

// HTTPCatalogStore talks to the external catalog service. The catalog is
// an external collaborator: this client is the only thing the core knows
// about it.
type HTTPCatalogStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCatalogStore(baseURL string) *HTTPCatalogStore {
	return &HTTPCatalogStore{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *HTTPCatalogStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product
	if err := s.get(ctx, fmt.Sprintf("/products/%s", url.PathEscape(productID)), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *HTTPCatalogStore) GetCustomizationOptions(ctx context.Context, productID string) ([]domain.Option, error) {
	var options []domain.Option
	if err := s.get(ctx, fmt.Sprintf("/products/%s/options", url.PathEscape(productID)), &options); err != nil {
		return nil, err
	}
	return options, nil
}

func (s *HTTPCatalogStore) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrProductNotFound
	default:
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
