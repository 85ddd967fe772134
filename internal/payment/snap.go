package payment

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
)

const SandboxBaseURL = "https://app.sandbox.midtrans.com"

var (
	snapTracer = otel.Tracer("payment/snap")
	snapMeter  = otel.Meter("payment/snap")
)

// SnapClient opens Midtrans Snap payment sessions.
type SnapClient struct {
	baseURL   string
	serverKey string
	client    *http.Client
	latency   metric.Float64Histogram
}

func NewSnapClient(baseURL, serverKey string, client *http.Client) *SnapClient {
	latency, _ := snapMeter.Float64Histogram("orderflow.gateway.request.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of payment session requests to the gateway."),
	)

	return &SnapClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		serverKey: serverKey,
		client:    client,
		latency:   latency,
	}
}

type snapTransactionDetails struct {
	OrderID     string  `json:"order_id"`
	GrossAmount float64 `json:"gross_amount"`
}

type snapExpiry struct {
	StartTime string `json:"start_time"`
	Unit      string `json:"unit"`
	Duration  int    `json:"duration"`
}

type snapRequest struct {
	TransactionDetails snapTransactionDetails `json:"transaction_details"`
	Expiry             snapExpiry             `json:"expiry"`
}

type snapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages"`
}

// CreateSession returns a payment token for the attempt. Every failure,
// including timeouts, wraps domain.ErrGateway: the caller cannot tell
// whether the gateway registered the attempt and should simply retry.
func (c *SnapClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body := snapRequest{
		TransactionDetails: snapTransactionDetails{
			OrderID:     req.AttemptID,
			GrossAmount: req.GrossAmount.InexactFloat64(),
		},
		Expiry: snapExpiry{
			StartTime: req.ExpiryStart.UTC().Format(ExpiryTimeLayout),
			Unit:      "minutes",
			Duration:  int(req.ExpiryDuration / time.Minute),
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal snap request: %w", err)
	}

	ctx, span := snapTracer.Start(ctx, "snap.create_transaction",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("order.id", req.OrderID),
			attribute.String("payment.attempt_id", req.AttemptID),
		),
	)
	defer span.End()

	start := time.Now()
	session, err := c.do(ctx, data)
	c.latency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.Bool("error", err != nil)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	session.AttemptID = req.AttemptID
	return session, nil
}

func (c *SnapClient) do(ctx context.Context, data []byte) (*Session, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/snap/v1/transactions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrGateway, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.serverKey, "")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timed out: %v", domain.ErrGateway, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out snapResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode response (status %d): %v", domain.ErrGateway, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: gateway returned status %d: %s", domain.ErrGateway, resp.StatusCode, strings.Join(out.ErrorMessages, "; "))
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: gateway returned no token", domain.ErrGateway)
	}

	return &Session{Token: out.Token, RedirectURL: out.RedirectURL}, nil
}
