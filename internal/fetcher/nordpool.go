package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"elspot2mqtt/internal/pricing"
)

const dayAheadPath = "/DayAheadPrices"

// NordpoolOptions parameterise the day-ahead price fetcher.
type NordpoolOptions struct {
	BaseURL        string
	Area           string
	Currency       string
	Timeout        time.Duration
	UserAgent      string
	RequestsPerSec float64
}

// Nordpool fetches day-ahead prices from the Nord Pool data portal.
type Nordpool struct {
	opts    NordpoolOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewNordpool constructs a day-ahead price fetcher.
func NewNordpool(opts NordpoolOptions, logger zerolog.Logger) *Nordpool {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dataportal-api.nordpoolgroup.com/api"
	}

	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}

	return &Nordpool{
		opts:    opts,
		logger:  logger.With().Str("component", "nordpool_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		baseURL: baseURL,
	}
}

type dayAheadResponse struct {
	DeliveryDateCET  string `json:"deliveryDateCET"`
	Currency         string `json:"currency"`
	MultiAreaEntries []struct {
		DeliveryStart time.Time          `json:"deliveryStart"`
		DeliveryEnd   time.Time          `json:"deliveryEnd"`
		EntryPerArea  map[string]float64 `json:"entryPerArea"`
	} `json:"multiAreaEntries"`
}

type errorResponse struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// FetchDay retrieves the hourly prices for one delivery day. Raw values
// arrive per MWh and are converted to per kWh; non-finite entries are
// skipped rather than stored.
func (n *Nordpool) FetchDay(ctx context.Context, day time.Time) (pricing.Series, error) {
	if n.opts.Area == "" {
		return nil, fmt.Errorf("delivery area is required")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	currency := n.opts.Currency
	if currency == "" {
		currency = "SEK"
	}

	query := url.Values{}
	query.Set("date", day.Format("2006-01-02"))
	query.Set("market", "DayAhead")
	query.Set("deliveryArea", n.opts.Area)
	query.Set("currency", currency)

	endpoint := n.baseURL + dayAheadPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(n.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, fmt.Errorf("no prices published for %s", day.Format("2006-01-02"))
	}

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payloadBytes)
	}

	var dayAhead dayAheadResponse
	if err := json.Unmarshal(payloadBytes, &dayAhead); err != nil {
		return nil, fmt.Errorf("decode day-ahead response: %w", err)
	}

	prices := make(map[int64]float64, len(dayAhead.MultiAreaEntries))
	skipped := 0
	for _, entry := range dayAhead.MultiAreaEntries {
		cost, ok := entry.EntryPerArea[n.opts.Area]
		if !ok {
			continue
		}
		if math.IsInf(cost, 0) || math.IsNaN(cost) {
			skipped++
			continue
		}
		prices[entry.DeliveryStart.Unix()] = cost / 1000
	}

	if skipped > 0 {
		n.logger.Warn().Int("skipped", skipped).Str("date", day.Format("2006-01-02")).
			Msg("skipped non-finite price entries")
	}

	n.logger.Debug().Int("points", len(prices)).Str("date", day.Format("2006-01-02")).
		Msg("fetched day-ahead prices")

	return pricing.FromMap(prices), nil
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Detail != "" {
			return fmt.Errorf("nordpool api error (%d): %s", status, apiErr.Detail)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("nordpool api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Title != "" {
			return fmt.Errorf("nordpool api error (%d): %s", status, apiErr.Title)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("nordpool api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("nordpool api error (%d)", status)
}

var _ PriceSource = (*Nordpool)(nil)
