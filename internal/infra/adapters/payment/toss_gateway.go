package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mealsnap-backend/internal/domain/ports/adapter"
	"mealsnap-backend/internal/infra/metrics"
)

var _ adapter.PaymentProvider = (*TossGateway)(nil)

// TossGateway implements adapter.PaymentProvider against the Toss Payments
// v1 REST API. Every call authenticates with HTTP Basic auth: the secret
// key as username and an empty password.
type TossGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewTossGateway(secretKey, baseURL string) (*TossGateway, error) {
	if secretKey == "" {
		return nil, errors.New("toss secret key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.tosspayments.com"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid toss base url: %w", err)
	}
	return &TossGateway{
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *TossGateway) Name() string { return "toss" }

func (g *TossGateway) authorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(g.secretKey+":"))
}

func (g *TossGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.ProviderPayment, error) {
	body := map[string]interface{}{
		"paymentKey": paymentKey,
		"orderId":    orderID,
		"amount":     amount,
	}
	return g.call(ctx, "confirm", http.MethodPost, "/v1/payments/confirm", body)
}

func (g *TossGateway) Cancel(ctx context.Context, paymentKey, cancelReason string, cancelAmount *int64) (*adapter.ProviderPayment, error) {
	body := map[string]interface{}{
		"cancelReason": cancelReason,
	}
	if cancelAmount != nil && *cancelAmount != 0 {
		body["cancelAmount"] = *cancelAmount
	}
	path := fmt.Sprintf("/v1/payments/%s/cancel", url.PathEscape(paymentKey))
	return g.call(ctx, "cancel", http.MethodPost, path, body)
}

func (g *TossGateway) Get(ctx context.Context, paymentKey string) (*adapter.ProviderPayment, error) {
	path := fmt.Sprintf("/v1/payments/%s", url.PathEscape(paymentKey))
	return g.call(ctx, "get", http.MethodGet, path, nil)
}

func (g *TossGateway) GetByOrderID(ctx context.Context, orderID string) (*adapter.ProviderPayment, error) {
	path := fmt.Sprintf("/v1/payments/orders/%s", url.PathEscape(orderID))
	return g.call(ctx, "get_by_order", http.MethodGet, path, nil)
}

func (g *TossGateway) call(ctx context.Context, op, method, path string, body map[string]interface{}) (*adapter.ProviderPayment, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", g.authorization())
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		metrics.ObserveProviderCall(op, float64(time.Since(start).Milliseconds()), false)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveProviderCall(op, float64(time.Since(start).Milliseconds()), false)
		return nil, err
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	metrics.ObserveProviderCall(op, float64(time.Since(start).Milliseconds()), ok)

	if !ok {
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		return nil, &adapter.ProviderError{
			StatusCode: resp.StatusCode,
			Code:       e.Code,
			Message:    e.Message,
			Raw:        raw,
		}
	}

	return decodePayment(raw)
}

func decodePayment(raw []byte) (*adapter.ProviderPayment, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode provider payment: %w", err)
	}
	p := &adapter.ProviderPayment{
		Raw:    raw,
		Fields: fields,
	}
	if v, ok := fields["paymentKey"].(string); ok {
		p.PaymentKey = v
	}
	if v, ok := fields["orderId"].(string); ok {
		p.OrderID = v
	}
	if v, ok := fields["orderName"].(string); ok {
		p.OrderName = v
	}
	if v, ok := fields["status"].(string); ok {
		p.Status = v
	}
	if v, ok := fields["method"].(string); ok {
		p.Method = v
	}
	if v, ok := fields["totalAmount"].(float64); ok {
		p.TotalAmount = int64(v)
	}
	return p, nil
}
