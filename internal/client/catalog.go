// Package client holds the HTTP clients for the external collaborators:
// catalog, notification service, and the payment gateway.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned when the catalog has no such item.
var ErrItemNotFound = errors.New("catalog item not found")

// Catalog resolves unit prices for catalog items.
type Catalog interface {
	UnitPrice(ctx context.Context, itemID int64) (decimal.Decimal, error)
}

// CatalogClient fetches item prices from the catalog service over HTTP with
// a short per-call timeout, caching successful lookups in Redis.
type CatalogClient struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	rdb      *redis.Client
	cacheTTL time.Duration
}

// NewCatalogClient creates a catalog client. rdb may be nil to disable
// caching.
func NewCatalogClient(baseURL string, timeout time.Duration, rdb *redis.Client, cacheTTL time.Duration) *CatalogClient {
	return &CatalogClient{
		baseURL:  baseURL,
		http:     &http.Client{},
		timeout:  timeout,
		rdb:      rdb,
		cacheTTL: cacheTTL,
	}
}

// UnitPrice returns the current unit price for an item. The call is bounded
// by the configured timeout so a slow catalog cannot hang checkout.
func (c *CatalogClient) UnitPrice(ctx context.Context, itemID int64) (decimal.Decimal, error) {
	key := fmt.Sprintf("orders:catalog:price:%d", itemID)
	if c.rdb != nil {
		if v, err := c.rdb.Get(ctx, key).Result(); err == nil && v != "" {
			if price, perr := decimal.NewFromString(v); perr == nil {
				return price, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/items/%d", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "catalog request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, ErrItemNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errors.Errorf("catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read body")
	}

	price, err := parseItemPrice(body)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse item")
	}

	if c.rdb != nil {
		// Cache failures are ignored; the next lookup simply misses.
		_ = c.rdb.Set(ctx, key, price.String(), c.cacheTTL).Err()
	}
	return price, nil
}

func parseItemPrice(body []byte) (decimal.Decimal, error) {
	price := decimal.Zero
	found := false

	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "item_price" {
			return d.Skip()
		}
		n, err := d.Num()
		if err != nil {
			return err
		}
		p, err := decimal.NewFromString(n.String())
		if err != nil {
			return err
		}
		price = p
		found = true
		return nil
	}); err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, errors.New("item_price missing in response")
	}
	return price, nil
}
