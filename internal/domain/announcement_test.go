package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnnouncement_IsLive(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Announcement{IsActive: true}).IsLive(now))
	assert.False(t, (&Announcement{IsActive: false}).IsLive(now))
	assert.False(t, (&Announcement{IsActive: true, StartsAt: &future}).IsLive(now))
	assert.False(t, (&Announcement{IsActive: true, EndsAt: &past}).IsLive(now))
	assert.True(t, (&Announcement{IsActive: true, StartsAt: &past, EndsAt: &future}).IsLive(now))
}

func TestAnnouncement_Targets(t *testing.T) {
	pro := &Announcement{Target: "plan:pro"}
	assert.True(t, pro.Targets(PlanPro))
	assert.False(t, pro.Targets(PlanFree))
	assert.True(t, (&Announcement{Target: TargetAll}).Targets(PlanFree))

	plan, ok := ParsePlanTarget("plan:basic")
	assert.True(t, ok)
	assert.Equal(t, PlanBasic, plan)
	_, ok = ParsePlanTarget("plan:")
	assert.False(t, ok)
	_, ok = ParsePlanTarget("everyone")
	assert.False(t, ok)
}

func TestSubscription_MonthlyAmount(t *testing.T) {
	s := &Subscription{BillingCycle: CycleYearly}
	s.Amount = DefaultPlanCatalog().Prices()[PlanPro].Yearly
	assert.Equal(t, "65.83", s.MonthlyAmount().StringFixed(2))

	s.BillingCycle = CycleMonthly
	assert.Equal(t, "790", s.MonthlyAmount().String())
}

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), PeriodEnd(start, CycleMonthly))
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), PeriodEnd(start, CycleYearly))
}
