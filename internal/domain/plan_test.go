package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPlanCatalog_Prices(t *testing.T) {
	c := DefaultPlanCatalog()

	cases := []struct {
		plan, cycle string
		want        int64
	}{
		{PlanFree, CycleMonthly, 0},
		{PlanBasic, CycleMonthly, 29},
		{PlanBasic, CycleYearly, 290},
		{PlanPro, CycleMonthly, 79},
		{PlanPro, CycleYearly, 790},
		{PlanWhitelabel, CycleYearly, 1990},
	}
	for _, tc := range cases {
		got, err := c.Price(tc.plan, tc.cycle)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(tc.want).Equal(got), "%s/%s = %s", tc.plan, tc.cycle, got)
	}

	assert.Equal(t, []string{"basic", "free", "pro", "whitelabel"}, c.Names())
}

func TestPlanCatalog_UnknownPlanOrCycle(t *testing.T) {
	c := DefaultPlanCatalog()
	_, err := c.Price("enterprise", CycleMonthly)
	assert.Error(t, err)
	_, err = c.Price(PlanPro, "weekly")
	assert.Error(t, err)
	assert.False(t, c.Has("enterprise"))
}

func TestParsePlanCatalog(t *testing.T) {
	raw := []byte(`
plans:
  free: {monthly: "0", yearly: "0"}
  team: {monthly: "49.50", yearly: "495"}
`)
	c, err := ParsePlanCatalog(raw)
	require.NoError(t, err)
	assert.True(t, c.Has("team"))
	assert.False(t, c.Has(PlanPro))

	p, err := c.Price("team", CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, "49.5", p.String())
}

func TestParsePlanCatalog_Invalid(t *testing.T) {
	_, err := ParsePlanCatalog([]byte(`plans: {}`))
	assert.Error(t, err)

	_, err = ParsePlanCatalog([]byte(`plans: {pro: {monthly: "79", yearly: "790"}}`))
	assert.Error(t, err, "free plan is mandatory")

	_, err = ParsePlanCatalog([]byte(`plans: {free: {monthly: "abc", yearly: "0"}}`))
	assert.Error(t, err)

	_, err = ParsePlanCatalog([]byte(`plans: {free: {monthly: "-1", yearly: "0"}}`))
	assert.Error(t, err)
}

func TestLoadPlanCatalog_EmptyPathUsesDefaults(t *testing.T) {
	c, err := LoadPlanCatalog("")
	require.NoError(t, err)
	assert.True(t, c.Has(PlanWhitelabel))
}

func TestLoadPlanCatalog_ShippedFileMatchesDefaults(t *testing.T) {
	c, err := LoadPlanCatalog("../../config/plans.yaml")
	require.NoError(t, err)

	defaults := DefaultPlanCatalog().Prices()
	for name, price := range c.Prices() {
		want, ok := defaults[name]
		require.True(t, ok, name)
		assert.True(t, want.Monthly.Equal(price.Monthly), name)
		assert.True(t, want.Yearly.Equal(price.Yearly), name)
	}
	assert.Len(t, c.Prices(), len(defaults))
}
