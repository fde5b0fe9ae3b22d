package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kosmo-admin/internal/domain"
)

// PostgresBillingRepository 计费Repository实现
type PostgresBillingRepository struct {
	db *sql.DB
}

func NewPostgresBillingRepository(db *sql.DB) *PostgresBillingRepository {
	return &PostgresBillingRepository{db: db}
}

var _ BillingRepository = (*PostgresBillingRepository)(nil)

const subscriptionColumns = `s.id, s.tenant_id, s.square_customer_id, s.square_subscription_id, s.plan, s.status, s.amount, s.currency,
	s.billing_cycle, s.current_period_start, s.current_period_end, s.trial_ends_at, s.cancelled_at, s.created_at, s.updated_at`

func scanSubscription(row rowScanner, extra ...any) (*domain.Subscription, error) {
	var (
		s                        domain.Subscription
		customerID, squareSubID  sql.NullString
		periodStart, periodEnd   sql.NullTime
		trialEndsAt, cancelledAt sql.NullTime
	)
	dest := append([]any{&s.ID, &s.TenantID, &customerID, &squareSubID, &s.Plan, &s.Status, &s.Amount, &s.Currency,
		&s.BillingCycle, &periodStart, &periodEnd, &trialEndsAt, &cancelledAt, &s.CreatedAt, &s.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.SquareCustomerID = stringPtr(customerID)
	s.SquareSubscriptionID = stringPtr(squareSubID)
	s.CurrentPeriodStart = timePtr(periodStart)
	s.CurrentPeriodEnd = timePtr(periodEnd)
	s.TrialEndsAt = timePtr(trialEndsAt)
	s.CancelledAt = timePtr(cancelledAt)
	return &s, nil
}

func (r *PostgresBillingRepository) ListSubscriptions(ctx context.Context) ([]*domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+`, t.name FROM billing_subscriptions s
		 JOIN tenants t ON t.id = s.tenant_id
		 ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []*domain.Subscription{}
	for rows.Next() {
		var tenantName sql.NullString
		s, err := scanSubscription(rows, &tenantName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		s.TenantName = stringPtr(tenantName)
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

func (r *PostgresBillingRepository) GetSubscriptionByTenant(ctx context.Context, tenantID int64) (*domain.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM billing_subscriptions s WHERE s.tenant_id = $1`, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("No subscription found")
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return s, nil
}

func (r *PostgresBillingRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var customerID sql.NullString
		err := tx.QueryRowContext(ctx,
			`INSERT INTO billing_subscriptions
				(tenant_id, plan, status, amount, currency, billing_cycle, current_period_start, current_period_end, cancelled_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)
			 ON CONFLICT (tenant_id) DO UPDATE SET
				plan = EXCLUDED.plan,
				status = EXCLUDED.status,
				amount = EXCLUDED.amount,
				currency = EXCLUDED.currency,
				billing_cycle = EXCLUDED.billing_cycle,
				current_period_start = EXCLUDED.current_period_start,
				current_period_end = EXCLUDED.current_period_end,
				cancelled_at = NULL,
				updated_at = NOW()
			 RETURNING id, square_customer_id, created_at, updated_at`,
			sub.TenantID, sub.Plan, sub.Status, sub.Amount, sub.Currency, sub.BillingCycle,
			sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		).Scan(&sub.ID, &customerID, &sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}
		sub.SquareCustomerID = stringPtr(customerID)
		sub.CancelledAt = nil

		res, err := tx.ExecContext(ctx, `UPDATE tenants SET plan = $1, updated_at = NOW() WHERE id = $2`, sub.Plan, sub.TenantID)
		if err != nil {
			return fmt.Errorf("failed to update tenant plan: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("Tenant not found")
		}
		return nil
	})
}

func (r *PostgresBillingRepository) SetSquareCustomerID(ctx context.Context, subscriptionID int64, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE billing_subscriptions SET square_customer_id = $1, updated_at = NOW() WHERE id = $2`,
		customerID, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to store square customer id: %w", err)
	}
	return nil
}

func (r *PostgresBillingRepository) CancelSubscription(ctx context.Context, tenantID int64, at time.Time) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		sub, err = scanSubscription(tx.QueryRowContext(ctx,
			`UPDATE billing_subscriptions s SET status = $1, cancelled_at = $2, updated_at = NOW()
			 WHERE s.tenant_id = $3
			 RETURNING `+subscriptionColumns,
			domain.SubscriptionCancelled, at, tenantID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NotFound("No subscription found")
			}
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tenants SET plan = $1, updated_at = NOW() WHERE id = $2`, domain.PlanFree, tenantID); err != nil {
			return fmt.Errorf("failed to downgrade tenant plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

const invoiceColumns = `id, tenant_id, subscription_id, square_invoice_id, invoice_number, amount, tax, total, currency,
	status, description, due_date, paid_at, created_at, updated_at`

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var (
		inv                   domain.Invoice
		subscriptionID        sql.NullInt64
		squareID, description sql.NullString
		dueDate, paidAt       sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.TenantID, &subscriptionID, &squareID, &inv.InvoiceNumber, &inv.Amount, &inv.Tax,
		&inv.Total, &inv.Currency, &inv.Status, &description, &dueDate, &paidAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	inv.SubscriptionID = int64Ptr(subscriptionID)
	inv.SquareInvoiceID = stringPtr(squareID)
	inv.Description = stringPtr(description)
	inv.DueDate = timePtr(dueDate)
	inv.PaidAt = timePtr(paidAt)
	return &inv, nil
}

func (r *PostgresBillingRepository) ListInvoices(ctx context.Context, tenantID int64, limit int) ([]*domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM billing_invoices WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	items := []*domain.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	return items, nil
}

const paymentColumns = `id, tenant_id, invoice_id, square_payment_id, amount, currency, status, payment_method,
	last_four, card_brand, metadata, created_at, updated_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p                                 domain.Payment
		invoiceID                         sql.NullInt64
		squareID, method, lastFour, brand sql.NullString
		metadata                          []byte
	)
	if err := row.Scan(&p.ID, &p.TenantID, &invoiceID, &squareID, &p.Amount, &p.Currency, &p.Status, &method,
		&lastFour, &brand, &metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.InvoiceID = int64Ptr(invoiceID)
	p.SquarePaymentID = stringPtr(squareID)
	p.PaymentMethod = stringPtr(method)
	p.LastFour = stringPtr(lastFour)
	p.CardBrand = stringPtr(brand)
	if len(metadata) > 0 {
		p.Metadata = json.RawMessage(metadata)
	}
	return &p, nil
}

func (r *PostgresBillingRepository) ListPayments(ctx context.Context, tenantID int64, limit int) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM billing_payments WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	items := []*domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return items, nil
}

func (r *PostgresBillingRepository) LatestInvoiceNumber(ctx context.Context, prefix string) (string, error) {
	var number sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(invoice_number) FROM billing_invoices WHERE invoice_number LIKE $1`, prefix+"%").Scan(&number)
	if err != nil {
		return "", fmt.Errorf("failed to get latest invoice number: %w", err)
	}
	return number.String, nil
}

func (r *PostgresBillingRepository) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO billing_invoices
			(tenant_id, subscription_id, invoice_number, amount, tax, total, currency, status, description, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		inv.TenantID, nullInt64(inv.SubscriptionID), inv.InvoiceNumber, inv.Amount, inv.Tax, inv.Total, inv.Currency,
		inv.Status, nullString(inv.Description), inv.DueDate,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return domain.Conflict("Invoice number %s already exists", inv.InvoiceNumber)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *PostgresBillingRepository) RecordPayment(ctx context.Context, p *domain.Payment, at time.Time) (*domain.Invoice, error) {
	var paid *domain.Invoice
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if p.InvoiceID != nil {
			inv, err := scanInvoice(tx.QueryRowContext(ctx,
				`UPDATE billing_invoices SET status = $1, paid_at = $2, updated_at = NOW()
				 WHERE id = $3 AND tenant_id = $4
				 RETURNING `+invoiceColumns,
				domain.InvoicePaid, at, *p.InvoiceID, p.TenantID))
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return domain.FieldError("invoice_id", "The selected invoice id is invalid.")
				}
				return fmt.Errorf("failed to mark invoice paid: %w", err)
			}
			paid = inv
		}

		var metadata any
		if len(p.Metadata) > 0 {
			metadata = []byte(p.Metadata)
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO billing_payments (tenant_id, invoice_id, amount, currency, status, payment_method, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at, updated_at`,
			p.TenantID, nullInt64(p.InvoiceID), p.Amount, p.Currency, p.Status, nullString(p.PaymentMethod), metadata,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}
