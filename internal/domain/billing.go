package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// 计费周期
const (
	CycleMonthly = "monthly"
	CycleYearly  = "yearly"
)

// 订阅状态
const (
	SubscriptionActive    = "active"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
	SubscriptionTrialing  = "trialing"
)

// 发票状态
const (
	InvoicePending  = "pending"
	InvoicePaid     = "paid"
	InvoiceFailed   = "failed"
	InvoiceRefunded = "refunded"
)

// 付款状态
const (
	PaymentCompleted = "completed"
	PaymentPending   = "pending"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// DefaultCurrency 所有金额均以美元计
const DefaultCurrency = "USD"

// IsBillingCycle 检查计费周期
func IsBillingCycle(c string) bool { return c == CycleMonthly || c == CycleYearly }

// Subscription 订阅（对应 billing_subscriptions 表，每租户一条）
type Subscription struct {
	ID                   int64           `json:"id"`
	TenantID             int64           `json:"tenant_id"`
	SquareCustomerID     *string         `json:"square_customer_id"`
	SquareSubscriptionID *string         `json:"square_subscription_id"`
	Plan                 string          `json:"plan"`
	Status               string          `json:"status"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	BillingCycle         string          `json:"billing_cycle"`
	CurrentPeriodStart   *time.Time      `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time      `json:"current_period_end"`
	TrialEndsAt          *time.Time      `json:"trial_ends_at"`
	CancelledAt          *time.Time      `json:"cancelled_at"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	TenantName *string `json:"tenant_name,omitempty"`
}

// MonthlyAmount 月度化金额（年付按 1/12 计）
func (s *Subscription) MonthlyAmount() decimal.Decimal {
	if s.BillingCycle == CycleYearly {
		return s.Amount.Div(decimal.NewFromInt(12))
	}
	return s.Amount
}

// PeriodEnd 根据计费周期计算当期结束时间
func PeriodEnd(start time.Time, cycle string) time.Time {
	if cycle == CycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// Invoice 发票（对应 billing_invoices 表）
type Invoice struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	SubscriptionID  *int64          `json:"subscription_id"`
	SquareInvoiceID *string         `json:"square_invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	Amount          decimal.Decimal `json:"amount"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	Description     *string         `json:"description"`
	DueDate         *time.Time      `json:"due_date"`
	PaidAt          *time.Time      `json:"paid_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Payment 付款记录（对应 billing_payments 表）
type Payment struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	InvoiceID       *int64          `json:"invoice_id"`
	SquarePaymentID *string         `json:"square_payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaymentMethod   *string         `json:"payment_method"`
	LastFour        *string         `json:"last_four"`
	CardBrand       *string         `json:"card_brand"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
