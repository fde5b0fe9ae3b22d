package domain

import "time"

// Invitation 邀请码（对应 invitations 表）
type Invitation struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Email     *string    `json:"email"`
	IsUsed    bool       `json:"is_used"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedBy *int64     `json:"created_by"`
	UsedBy    *int64     `json:"used_by"`
	TenantID  *int64     `json:"tenant_id"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Creator    *UserSummary `json:"creator,omitempty"`
	UsedByUser *UserSummary `json:"used_by_user,omitempty"`
	TenantName *string      `json:"tenant_name,omitempty"`
}

// Invitation status filter values
const (
	InvitationStatusUsed    = "used"
	InvitationStatusUnused  = "unused"
	InvitationStatusExpired = "expired"
)

// IsExpired 未使用且已过期
func (i *Invitation) IsExpired(now time.Time) bool {
	return !i.IsUsed && i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// IsRedeemable 未使用且未过期
func (i *Invitation) IsRedeemable(now time.Time) bool {
	return !i.IsUsed && !i.IsExpired(now)
}
