package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kosmo-admin/internal/config"
	"kosmo-admin/internal/metrics"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SquareCustomerRequest Square 创建客户请求
type SquareCustomerRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	GivenName      string `json:"given_name"`
	EmailAddress   string `json:"email_address,omitempty"`
	ReferenceID    string `json:"reference_id"`
}

// SquareCustomer Square 客户
type SquareCustomer struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
}

type squareCustomerResponse struct {
	Customer SquareCustomer `json:"customer"`
}

// SquareError Square API 错误
type SquareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type squareErrorResponse struct {
	Errors []SquareError `json:"errors"`
}

func (r *squareErrorResponse) String() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s/%s: %s", e.Category, e.Code, e.Detail))
	}
	return strings.Join(parts, "; ")
}

// SquareGateway 计费服务使用的 Square 能力
type SquareGateway interface {
	// Connected 是否配置了 access token
	Connected() bool
	Environment() string
	CreateCustomer(ctx context.Context, req SquareCustomerRequest) (*SquareCustomer, error)
}

// SquareClient Square REST API 客户端
type SquareClient struct {
	httpClient  *resty.Client
	accessToken string
	environment string
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewSquareClient 创建 Square 客户端
func NewSquareClient(cfg config.SquareConfig, m *metrics.Metrics, logger *zap.Logger) *SquareClient {
	client := resty.New().
		SetBaseURL(cfg.ResolvedBaseURL()).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2). // 带 idempotency_key，可安全重试
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &SquareClient{
		httpClient:  client,
		accessToken: cfg.AccessToken,
		environment: cfg.Environment,
		timeout:     cfg.Timeout,
		metrics:     m,
		logger:      logger,
	}
}

var _ SquareGateway = (*SquareClient)(nil)

func (c *SquareClient) Connected() bool { return c.accessToken != "" }

func (c *SquareClient) Environment() string { return c.environment }

// CreateCustomer POST /v2/customers
func (c *SquareClient) CreateCustomer(ctx context.Context, req SquareCustomerRequest) (*SquareCustomer, error) {
	if !c.Connected() {
		return nil, fmt.Errorf("square access token not configured")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Info("Calling Square API: create customer",
		zap.String("reference_id", req.ReferenceID),
		zap.String("environment", c.environment),
	)

	var (
		out    squareCustomerResponse
		apiErr squareErrorResponse
	)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.accessToken).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v2/customers")
	if err != nil {
		c.count("create_customer", "error")
		return nil, fmt.Errorf("square create customer request failed: %w", err)
	}
	if resp.IsError() {
		c.count("create_customer", "error")
		return nil, fmt.Errorf("square create customer failed: status=%d %s", resp.StatusCode(), apiErr.String())
	}
	if out.Customer.ID == "" {
		c.count("create_customer", "error")
		return nil, fmt.Errorf("square create customer: response missing customer id")
	}
	c.count("create_customer", "ok")
	return &out.Customer, nil
}

func (c *SquareClient) count(op, result string) {
	if c.metrics != nil {
		c.metrics.SquareRequestsTotal.WithLabelValues(op, result).Inc()
	}
}
