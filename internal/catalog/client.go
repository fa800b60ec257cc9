package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clipgate/clipgate-backend/pkg/config"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
)

// Video is the catalog's view of a sellable video. Prices arrive in dollars;
// the client converts to cents for the ledger.
type Video struct {
	ID                string
	Title             string
	BasePriceCents    int64
	FinalPriceCents   int64
	CreatorName       string
	CreatorTelegramID string
	CreatorURL        string
}

// Bundle is the catalog's view of a sellable bundle.
type Bundle struct {
	ID              string
	Title           string
	BasePriceCents  int64
	FinalPriceCents int64
	CreatorName     string
	VideoIDs        []string
}

// Client fetches item data from the catalog service.
type Client interface {
	Video(ctx context.Context, id string) (*Video, error)
	Bundle(ctx context.Context, id string) (*Bundle, error)
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a catalog client from configuration.
func NewClient(cfg config.CatalogConfig) (Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("catalog base url required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid catalog base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type videoPayload struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Price             *float64 `json:"price"`
	BasePrice         *float64 `json:"basePrice"`
	FinalPrice        *float64 `json:"finalPrice"`
	CreatorName       string   `json:"creatorName"`
	CreatorTelegramID string   `json:"creatorTelegramId"`
	SocialMediaURL    string   `json:"socialMediaUrl"`
	Pay               bool     `json:"pay"`
	FullKey           string   `json:"fullKey"`
}

type bundlePayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Price       *float64 `json:"price"`
	BasePrice   *float64 `json:"basePrice"`
	FinalPrice  *float64 `json:"finalPrice"`
	CreatorName string   `json:"creatorName"`
	VideoIDs    []string `json:"videoIds"`
}

func (c *httpClient) Video(ctx context.Context, id string) (*Video, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "video id required")
	}

	var payload videoPayload
	if err := c.getJSON(ctx, "/api/videos/"+url.PathEscape(id), &payload); err != nil {
		return nil, err
	}

	// Items without the paid flag or a stored full asset cannot be sold.
	if !payload.Pay || payload.FullKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "video is not purchasable")
	}

	base, final, err := resolvePrices(payload.Price, payload.BasePrice, payload.FinalPrice)
	if err != nil {
		return nil, err
	}

	return &Video{
		ID:                payload.ID,
		Title:             payload.Title,
		BasePriceCents:    base,
		FinalPriceCents:   final,
		CreatorName:       payload.CreatorName,
		CreatorTelegramID: payload.CreatorTelegramID,
		CreatorURL:        payload.SocialMediaURL,
	}, nil
}

func (c *httpClient) Bundle(ctx context.Context, id string) (*Bundle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle id required")
	}

	var payload bundlePayload
	if err := c.getJSON(ctx, "/api/bundles/"+url.PathEscape(id), &payload); err != nil {
		return nil, err
	}
	if len(payload.VideoIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle has no videos")
	}

	base, final, err := resolvePrices(payload.Price, payload.BasePrice, payload.FinalPrice)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		ID:              payload.ID,
		Title:           payload.Title,
		BasePriceCents:  base,
		FinalPriceCents: final,
		CreatorName:     payload.CreatorName,
		VideoIDs:        payload.VideoIDs,
	}, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building catalog request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "catalog item not found")
	case resp.StatusCode != http.StatusOK:
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("catalog returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding catalog response")
	}
	return nil
}

// resolvePrices picks the listed and effective prices, preferring the
// explicit base/final pair and falling back to the plain price. Missing
// numeric pricing is a hard precondition failure, never a free unlock.
func resolvePrices(price, basePrice, finalPrice *float64) (int64, int64, error) {
	base := firstPrice(basePrice, price)
	final := firstPrice(finalPrice, basePrice, price)
	if base == nil || final == nil {
		return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "catalog item is missing pricing")
	}

	baseCents := dollarsToCents(*base)
	finalCents := dollarsToCents(*final)
	if baseCents <= 0 || finalCents <= 0 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "catalog item price must be positive")
	}
	return baseCents, finalCents, nil
}

func firstPrice(candidates ...*float64) *float64 {
	for _, candidate := range candidates {
		if candidate != nil {
			return candidate
		}
	}
	return nil
}

func dollarsToCents(dollars float64) int64 {
	return decimal.NewFromFloat(dollars).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
