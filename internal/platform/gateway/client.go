package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logctx"
)

var ErrNotConfigured = errors.New("payment gateway is not configured")

// InitRequest is what the checkout API needs to open a payment page.
type InitRequest struct {
	TransactionID   string
	Amount          int64
	Currency        string
	Description     string
	NotifyURL       string
	ReturnURL       string
	CustomerName    string
	CustomerSurname string
	CustomerEmail   string
	CustomerPhone   string
}

type InitResponse struct {
	PaymentURL    string
	PaymentToken  string
	APIResponseID string
}

// Client opens hosted checkout sessions.
type Client interface {
	InitPayment(ctx context.Context, req InitRequest) (*InitResponse, error)
}

type initBody struct {
	APIKey          string `json:"apikey"`
	SiteID          string `json:"site_id"`
	TransactionID   string `json:"transaction_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
	NotifyURL       string `json:"notify_url"`
	ReturnURL       string `json:"return_url"`
	Channels        string `json:"channels"`
	CustomerName    string `json:"customer_name,omitempty"`
	CustomerSurname string `json:"customer_surname,omitempty"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	CustomerPhone   string `json:"customer_phone_number,omitempty"`
}

type initReply struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	Description   string `json:"description"`
	APIResponseID string `json:"api_response_id"`
	Data          struct {
		PaymentToken string `json:"payment_token"`
		PaymentURL   string `json:"payment_url"`
	} `json:"data"`
}

// HTTPClient talks to a CinetPay compatible checkout API.
type HTTPClient struct {
	cfg  cfgpkg.GatewayConfig
	http *http.Client
	log  *zap.SugaredLogger
}

func NewHTTPClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) *HTTPClient {
	timeout := cfg.Gateway.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{cfg: cfg.Gateway, http: &http.Client{Timeout: timeout}, log: log}
}

func (c *HTTPClient) InitPayment(ctx context.Context, req InitRequest) (*InitResponse, error) {
	if c.cfg.APIKey == "" || c.cfg.SiteID == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(initBody{
		APIKey:          c.cfg.APIKey,
		SiteID:          c.cfg.SiteID,
		TransactionID:   req.TransactionID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Description:     req.Description,
		NotifyURL:       req.NotifyURL,
		ReturnURL:       req.ReturnURL,
		Channels:        c.cfg.Channels,
		CustomerName:    req.CustomerName,
		CustomerSurname: req.CustomerSurname,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal init body: %w", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/payment"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway init: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway reply: %w", err)
	}

	var reply initReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode gateway reply (http %d): %w", resp.StatusCode, err)
	}
	if reply.Code != "201" || reply.Data.PaymentURL == "" {
		logctx.FromCtx(ctx, c.log).Warnw("gateway_init_rejected", "http_status", resp.StatusCode, "code", reply.Code, "message", reply.Message, "description", reply.Description)
		return nil, fmt.Errorf("gateway rejected payment: code=%s message=%s", reply.Code, reply.Message)
	}
	return &InitResponse{
		PaymentURL:    reply.Data.PaymentURL,
		PaymentToken:  reply.Data.PaymentToken,
		APIResponseID: reply.APIResponseID,
	}, nil
}

var Module = fx.Options(
	fx.Provide(
		NewHTTPClient,
		func(c *HTTPClient) Client { return c },
	),
)
