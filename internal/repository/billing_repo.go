package repository

import (
	"context"
	"time"

	"kosmo-admin/internal/domain"
)

// BillingRepository 订阅/发票/付款Repository接口
type BillingRepository interface {
	// ListSubscriptions 所有订阅（附租户名），最新在前
	ListSubscriptions(ctx context.Context) ([]*domain.Subscription, error)
	GetSubscriptionByTenant(ctx context.Context, tenantID int64) (*domain.Subscription, error)

	// UpsertSubscription 按 tenant_id upsert，并在同一事务中把租户 plan 改为订阅 plan
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error

	// SetSquareCustomerID 关联外部客户
	SetSquareCustomerID(ctx context.Context, subscriptionID int64, customerID string) error

	// CancelSubscription 标记取消并把租户降级为 free（同一事务）
	CancelSubscription(ctx context.Context, tenantID int64, at time.Time) (*domain.Subscription, error)

	ListInvoices(ctx context.Context, tenantID int64, limit int) ([]*domain.Invoice, error)
	ListPayments(ctx context.Context, tenantID int64, limit int) ([]*domain.Payment, error)

	// LatestInvoiceNumber 以 prefix 开头的最大发票号，没有时返回空串
	LatestInvoiceNumber(ctx context.Context, prefix string) (string, error)

	// CreateInvoice 发票号冲突返回 domain Conflict
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error

	// RecordPayment 插入付款；InvoiceID 非 nil 时同一事务内将发票标记为 paid
	RecordPayment(ctx context.Context, p *domain.Payment, at time.Time) (*domain.Invoice, error)
}
