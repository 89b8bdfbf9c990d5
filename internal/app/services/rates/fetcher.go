package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/takshakmudgal/tippit/pkg/logger"
)

// WrappedSOLMint is the mint address the price API keys SOL quotes under.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// DefaultEndpoint is the Jupiter price API.
const DefaultEndpoint = "https://api.jup.ag/price/v2"

// Fetcher retrieves the current SOL/USD rate.
type Fetcher interface {
	Fetch(ctx context.Context) (float64, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (float64, error)

func (f FetcherFunc) Fetch(ctx context.Context) (float64, error) {
	if f == nil {
		return 0, fmt.Errorf("no fetcher configured")
	}
	return f(ctx)
}

// JupiterFetcher queries the Jupiter price API. The response is a JSON object
// keyed by mint address, so the price is extracted by path rather than by
// unmarshalling into a struct.
type JupiterFetcher struct {
	client   *http.Client
	endpoint *url.URL
	mint     string
	log      *logger.Logger
}

// NewJupiterFetcher constructs a fetcher for the given endpoint and mint.
func NewJupiterFetcher(client *http.Client, endpoint, mint string, log *logger.Logger) (*JupiterFetcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse price endpoint: %w", err)
	}
	if mint == "" {
		mint = WrappedSOLMint
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("rates-fetcher")
	}
	return &JupiterFetcher{
		client:   client,
		endpoint: parsed,
		mint:     mint,
		log:      log,
	}, nil
}

func (f *JupiterFetcher) Fetch(ctx context.Context) (float64, error) {
	requestURL := *f.endpoint
	q := requestURL.Query()
	q.Set("ids", f.mint)
	requestURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build price request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read price response: %w", err)
	}

	price := gjson.GetBytes(body, "data."+f.mint+".price").Float()
	if price <= 0 {
		return 0, fmt.Errorf("price api returned no usable price for %s", f.mint)
	}
	return price, nil
}
