package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Gateway creates payment orders at the external payment gateway.
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (string, error)
}

// GatewayClient talks to the payment gateway's order API using basic auth
// with the merchant key pair. Gateway failures are not degradable: the
// caller surfaces them, since payment must be recorded for the right amount.
type GatewayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	timeout   time.Duration
}

// NewGatewayClient creates a payment gateway client.
func NewGatewayClient(baseURL, keyID, keySecret string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{},
		timeout:   timeout,
	}
}

// CreateOrder registers a payment order for the given amount and returns the
// gateway's order id. The amount is sent in minor units (paise).
func (c *GatewayClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("amount")
	e.Int64(amount.Mul(decimal.NewFromInt(100)).IntPart())
	e.FieldStart("currency")
	e.Str(currency)
	e.FieldStart("receipt")
	e.Str(receipt)
	e.FieldStart("payment_capture")
	e.Int(1)
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(e.Bytes()))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "gateway request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("gateway returned status %d", resp.StatusCode)
	}

	id, err := parseGatewayOrderID(body)
	if err != nil {
		return "", errors.Wrap(err, "parse response")
	}
	return id, nil
}

func parseGatewayOrderID(body []byte) (string, error) {
	var id string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		id = v
		return nil
	}); err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("order id missing in response")
	}
	return id, nil
}
