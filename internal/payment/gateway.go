// Package payment drives the external payment gateway: server-side order
// creation first, then a black-box checkout whose outcome comes back through
// a one-shot callback. The callback payload is treated as untrusted; the
// ticketing service verifies it server-side during confirmation.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
)

// CreateOrderParams describe the server-side order backing one checkout.
type CreateOrderParams struct {
	Amount   int64             `json:"amount"` // minor currency units
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder is the gateway's record of a created order.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type gatewayEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// Gateway creates payment orders over HTTP using a key pair for basic auth.
type Gateway struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	log       *logrus.Logger
}

func NewGateway(baseURL, keyID, keySecret string, timeout time.Duration, log *logrus.Logger) *Gateway {
	return &Gateway{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}
}

// CreateOrder registers an order with the gateway before any checkout opens.
// Nothing about the user-facing flow may start until this succeeds.
func (g *Gateway) CreateOrder(ctx context.Context, p CreateOrderParams) (*GatewayOrder, error) {
	if p.Amount <= 0 {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "order amount must be positive")
	}
	if p.Currency == "" || p.Receipt == "" {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "order currency and receipt are required")
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "encode order: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fault.Transientf(fault.ReasonGatewayError, "build order request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fault.Transientf(fault.ReasonGatewayError, "payment gateway unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	var env gatewayEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fault.Transientf(fault.ReasonGatewayError, "malformed gateway response (status %d)", resp.StatusCode).WithCause(err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated || !env.Success {
		return nil, fault.Transientf(fault.ReasonGatewayError, "gateway returned %d: %s", resp.StatusCode, env.Message)
	}

	var order GatewayOrder
	if err := json.Unmarshal(env.Data, &order); err != nil || order.ID == "" {
		return nil, fault.Transientf(fault.ReasonGatewayError, "unreadable gateway order")
	}

	g.log.WithFields(logrus.Fields{
		"gateway_order": order.ID,
		"amount":        order.Amount,
		"currency":      order.Currency,
		"receipt":       order.Receipt,
	}).Info("Payment order created")

	return &order, nil
}
