package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kosmo-admin/internal/domain"
	"kosmo-admin/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// TenantBillingHistoryLimit 租户计费详情中发票/付款条数
	TenantBillingHistoryLimit = 10

	defaultInvoiceDescription = "FlowKosmo Subscription"
	defaultInvoiceDueDays     = 30
	defaultPaymentMethod      = "manual"
	maxInvoiceNumberAttempts  = 5
)

var (
	minAmount = decimal.RequireFromString("0.01")
	maxAmount = decimal.RequireFromString("99999999.99")
)

// BillingService 订阅计费服务接口
type BillingService interface {
	Status() BillingStatus
	Overview(ctx context.Context) (*BillingOverview, error)
	TenantBilling(ctx context.Context, tenantID int64) (*TenantBilling, error)
	CreateSubscription(ctx context.Context, tenantID int64, req CreateSubscriptionRequest) (*domain.Subscription, error)
	CreateInvoice(ctx context.Context, tenantID int64, req CreateInvoiceRequest) (*domain.Invoice, error)
	RecordPayment(ctx context.Context, tenantID int64, req RecordPaymentRequest) (*domain.Payment, error)
	CancelSubscription(ctx context.Context, tenantID int64) (*domain.Subscription, error)
	// UpdatePlan 只改套餐，与租户编辑走同一条写入路径
	UpdatePlan(ctx context.Context, tenantID int64, plan string) (*PlanUpdateResult, error)
}

type billingService struct {
	billing repository.BillingRepository
	tenants repository.TenantsRepository
	users   repository.UsersRepository
	plans   *domain.PlanCatalog
	square  SquareGateway
	logger  *zap.Logger
	now     func() time.Time
}

// NewBillingService 创建 BillingService 实例
func NewBillingService(
	billing repository.BillingRepository,
	tenants repository.TenantsRepository,
	users repository.UsersRepository,
	plans *domain.PlanCatalog,
	square SquareGateway,
	logger *zap.Logger,
) BillingService {
	return &billingService{
		billing: billing,
		tenants: tenants,
		users:   users,
		plans:   plans,
		square:  square,
		logger:  logger,
		now:     time.Now,
	}
}

// BillingStatus Square 连接状态
type BillingStatus struct {
	Connected   bool   `json:"connected"`
	Environment string `json:"environment"`
}

// BillingStats 订阅汇总
type BillingStats struct {
	TotalSubscriptions int             `json:"total_subscriptions"`
	Active             int             `json:"active"`
	PastDue            int             `json:"past_due"`
	Cancelled          int             `json:"cancelled"`
	MRR                decimal.Decimal `json:"mrr"`
}

// BillingOverview 计费总览
type BillingOverview struct {
	Stats         BillingStats           `json:"stats"`
	Subscriptions []*domain.Subscription `json:"subscriptions"`
}

// TenantBilling 单租户计费详情
type TenantBilling struct {
	Subscription *domain.Subscription `json:"subscription"`
	Invoices     []*domain.Invoice    `json:"invoices"`
	Payments     []*domain.Payment    `json:"payments"`
}

// CreateSubscriptionRequest 创建/更新订阅
type CreateSubscriptionRequest struct {
	Plan         string `json:"plan"`
	BillingCycle string `json:"billing_cycle"`
}

// CreateInvoiceRequest 创建发票
type CreateInvoiceRequest struct {
	Amount      decimal.NullDecimal `json:"amount"`
	Description *string             `json:"description"`
	DueDays     *int                `json:"due_days"`
}

// RecordPaymentRequest 登记线下付款
type RecordPaymentRequest struct {
	InvoiceID     *int64              `json:"invoice_id"`
	Amount        decimal.NullDecimal `json:"amount"`
	PaymentMethod *string             `json:"payment_method"`
	Notes         *string             `json:"notes"`
}

// PlanUpdateResult 套餐变更结果
type PlanUpdateResult struct {
	Message string         `json:"message"`
	Tenant  *domain.Tenant `json:"tenant"`
}

func (s *billingService) Status() BillingStatus {
	return BillingStatus{Connected: s.square.Connected(), Environment: s.square.Environment()}
}

func (s *billingService) Overview(ctx context.Context) (*BillingOverview, error) {
	subs, err := s.billing.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	stats := BillingStats{TotalSubscriptions: len(subs), MRR: decimal.Zero}
	for _, sub := range subs {
		switch sub.Status {
		case domain.SubscriptionActive:
			stats.Active++
			stats.MRR = stats.MRR.Add(sub.MonthlyAmount())
		case domain.SubscriptionPastDue:
			stats.PastDue++
		case domain.SubscriptionCancelled:
			stats.Cancelled++
		}
	}
	stats.MRR = stats.MRR.Round(2)
	return &BillingOverview{Stats: stats, Subscriptions: subs}, nil
}

func (s *billingService) TenantBilling(ctx context.Context, tenantID int64) (*TenantBilling, error) {
	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	sub, err := s.billing.GetSubscriptionByTenant(ctx, tenantID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}
	invoices, err := s.billing.ListInvoices(ctx, tenantID, TenantBillingHistoryLimit)
	if err != nil {
		return nil, err
	}
	payments, err := s.billing.ListPayments(ctx, tenantID, TenantBillingHistoryLimit)
	if err != nil {
		return nil, err
	}
	return &TenantBilling{Subscription: sub, Invoices: invoices, Payments: payments}, nil
}

func (s *billingService) CreateSubscription(ctx context.Context, tenantID int64, req CreateSubscriptionRequest) (*domain.Subscription, error) {
	var v domain.Validation
	if required(&v, req.Plan, "plan") && !s.plans.Has(req.Plan) {
		v.Add("plan", "The selected plan is invalid.")
	}
	if required(&v, req.BillingCycle, "billing_cycle") && !domain.IsBillingCycle(req.BillingCycle) {
		v.Add("billing_cycle", "The selected billing cycle is invalid.")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	amount, err := s.plans.Price(req.Plan, req.BillingCycle)
	if err != nil {
		return nil, err
	}

	start := s.now()
	end := domain.PeriodEnd(start, req.BillingCycle)
	sub := &domain.Subscription{
		TenantID:           tenant.ID,
		Plan:               req.Plan,
		Status:             domain.SubscriptionActive,
		Amount:             amount,
		Currency:           domain.DefaultCurrency,
		BillingCycle:       req.BillingCycle,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
	if err := s.billing.UpsertSubscription(ctx, sub); err != nil {
		return nil, err
	}
	s.logger.Info("Subscription updated",
		zap.Int64("tenant_id", tenant.ID),
		zap.String("plan", sub.Plan),
		zap.String("billing_cycle", sub.BillingCycle),
		zap.String("amount", sub.Amount.StringFixed(2)),
	)

	// 本地记录已提交，外部调用失败只记日志
	if amount.IsPositive() && s.square.Connected() && sub.SquareCustomerID == nil {
		if err := s.ensureSquareCustomer(ctx, tenant, sub); err != nil {
			s.logger.Error("Square customer creation failed",
				zap.Int64("tenant_id", tenant.ID),
				zap.Error(err),
			)
		}
	}
	return sub, nil
}

func (s *billingService) ensureSquareCustomer(ctx context.Context, tenant *domain.Tenant, sub *domain.Subscription) error {
	email, err := s.users.TenantAdminEmail(ctx, tenant.ID)
	if err != nil {
		return domain.ExternalProvider(err, "failed to resolve tenant admin email")
	}
	customer, err := s.square.CreateCustomer(ctx, SquareCustomerRequest{
		IdempotencyKey: fmt.Sprintf("tenant_%d_%d", tenant.ID, s.now().Unix()),
		GivenName:      tenant.Name,
		EmailAddress:   email,
		ReferenceID:    fmt.Sprintf("tenant_%d", tenant.ID),
	})
	if err != nil {
		return domain.ExternalProvider(err, "square customer creation failed")
	}
	if err := s.billing.SetSquareCustomerID(ctx, sub.ID, customer.ID); err != nil {
		return err
	}
	sub.SquareCustomerID = &customer.ID
	return nil
}

func validateAmount(v *domain.Validation, amount decimal.NullDecimal) {
	switch {
	case !amount.Valid:
		v.Add("amount", "The amount field is required.")
	case amount.Decimal.LessThan(minAmount):
		v.Add("amount", "The amount must be at least 0.01.")
	case amount.Decimal.GreaterThan(maxAmount):
		v.Add("amount", "The amount may not be greater than 99999999.99.")
	}
}

func (s *billingService) CreateInvoice(ctx context.Context, tenantID int64, req CreateInvoiceRequest) (*domain.Invoice, error) {
	description := trimmed(req.Description)

	var v domain.Validation
	validateAmount(&v, req.Amount)
	if description != nil {
		maxLen(&v, *description, "description", 500)
	}
	if req.DueDays != nil && (*req.DueDays < 1 || *req.DueDays > 90) {
		v.Add("due_days", "The due days must be between 1 and 90.")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if description == nil {
		d := defaultInvoiceDescription
		description = &d
	}
	dueDays := defaultInvoiceDueDays
	if req.DueDays != nil {
		dueDays = *req.DueDays
	}

	now := s.now()
	due := now.AddDate(0, 0, dueDays)
	amount := req.Amount.Decimal.Round(2)
	inv := &domain.Invoice{
		TenantID:    tenantID,
		Amount:      amount,
		Tax:         decimal.Zero,
		Total:       amount,
		Currency:    domain.DefaultCurrency,
		Status:      domain.InvoicePending,
		Description: description,
		DueDate:     &due,
	}
	if sub, err := s.billing.GetSubscriptionByTenant(ctx, tenantID); err == nil {
		inv.SubscriptionID = &sub.ID
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	// 并发生成同一编号时唯一约束冲突，重新取号
	for attempt := 1; ; attempt++ {
		number, err := s.nextInvoiceNumber(ctx, now)
		if err != nil {
			return nil, err
		}
		inv.InvoiceNumber = number
		err = s.billing.CreateInvoice(ctx, inv)
		if err == nil {
			break
		}
		if domain.KindOf(err) != domain.KindConflict || attempt >= maxInvoiceNumberAttempts {
			return nil, err
		}
		s.logger.Warn("Invoice number collision, retrying", zap.String("invoice_number", number), zap.Int("attempt", attempt))
	}

	s.logger.Info("Invoice created",
		zap.Int64("tenant_id", tenantID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total", inv.Total.StringFixed(2)),
	)
	return inv, nil
}

// nextInvoiceNumber INV-YYYYMM-NNNN，按当月最大编号递增
func (s *billingService) nextInvoiceNumber(ctx context.Context, now time.Time) (string, error) {
	prefix := InvoicePrefix(now)
	latest, err := s.billing.LatestInvoiceNumber(ctx, prefix)
	if err != nil {
		return "", err
	}
	return NextInvoiceNumber(prefix, latest), nil
}

// InvoicePrefix 当月发票号前缀
func InvoicePrefix(now time.Time) string {
	return "INV-" + now.Format("200601") + "-"
}

// NextInvoiceNumber latest 为空或无法解析时从 0001 开始
func NextInvoiceNumber(prefix, latest string) string {
	next := 1
	if seq, ok := strings.CutPrefix(latest, prefix); ok {
		if n, err := strconv.Atoi(seq); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next)
}

func (s *billingService) RecordPayment(ctx context.Context, tenantID int64, req RecordPaymentRequest) (*domain.Payment, error) {
	method := trimmed(req.PaymentMethod)
	notes := trimmed(req.Notes)

	var v domain.Validation
	validateAmount(&v, req.Amount)
	if method != nil {
		maxLen(&v, *method, "payment_method", 50)
	}
	if notes != nil {
		maxLen(&v, *notes, "notes", 500)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if method == nil {
		m := defaultPaymentMethod
		method = &m
	}
	metadata, err := json.Marshal(map[string]*string{"notes": notes})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment metadata: %w", err)
	}

	p := &domain.Payment{
		TenantID:      tenantID,
		InvoiceID:     req.InvoiceID,
		Amount:        req.Amount.Decimal.Round(2),
		Currency:      domain.DefaultCurrency,
		Status:        domain.PaymentCompleted,
		PaymentMethod: method,
		Metadata:      metadata,
	}
	if _, err := s.billing.RecordPayment(ctx, p, s.now()); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Int64("tenant_id", tenantID),
		zap.Int64("payment_id", p.ID),
		zap.String("amount", p.Amount.StringFixed(2)),
	}
	if p.InvoiceID != nil {
		fields = append(fields, zap.Int64("invoice_id", *p.InvoiceID))
	}
	s.logger.Info("Payment recorded", fields...)
	return p, nil
}

func (s *billingService) CancelSubscription(ctx context.Context, tenantID int64) (*domain.Subscription, error) {
	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	sub, err := s.billing.CancelSubscription(ctx, tenantID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Subscription cancelled", zap.Int64("tenant_id", tenantID), zap.Int64("subscription_id", sub.ID))
	return sub, nil
}

func (s *billingService) UpdatePlan(ctx context.Context, tenantID int64, plan string) (*PlanUpdateResult, error) {
	var v domain.Validation
	if required(&v, plan, "plan") && !s.plans.Has(plan) {
		v.Add("plan", "The selected plan is invalid.")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	current, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	oldPlan := current.Plan
	tenant, err := s.tenants.ChangePlan(ctx, tenantID, repository.PlanChange{Plan: plan, Price: s.plans.Prices()[plan]})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Tenant plan updated",
		zap.Int64("tenant_id", tenantID),
		zap.String("from", oldPlan),
		zap.String("to", plan),
	)
	return &PlanUpdateResult{
		Message: fmt.Sprintf("Plan updated from %s to %s", oldPlan, plan),
		Tenant:  tenant,
	}, nil
}
