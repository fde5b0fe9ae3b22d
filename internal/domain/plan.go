package domain

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// 套餐
const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanWhitelabel = "whitelabel"
)

// PlanPrice 套餐在两个计费周期下的价格（USD）
type PlanPrice struct {
	Monthly decimal.Decimal `yaml:"monthly" json:"monthly"`
	Yearly  decimal.Decimal `yaml:"yearly" json:"yearly"`
}

// PlanCatalog 套餐目录：租户套餐校验和订阅定价共用同一份数据
type PlanCatalog struct {
	plans map[string]PlanPrice
}

type planCatalogFile struct {
	Plans map[string]struct {
		Monthly string `yaml:"monthly"`
		Yearly  string `yaml:"yearly"`
	} `yaml:"plans"`
}

// DefaultPlanCatalog 内置价格表
func DefaultPlanCatalog() *PlanCatalog {
	return &PlanCatalog{plans: map[string]PlanPrice{
		PlanFree:       {Monthly: decimal.Zero, Yearly: decimal.Zero},
		PlanBasic:      {Monthly: decimal.NewFromInt(29), Yearly: decimal.NewFromInt(290)},
		PlanPro:        {Monthly: decimal.NewFromInt(79), Yearly: decimal.NewFromInt(790)},
		PlanWhitelabel: {Monthly: decimal.NewFromInt(199), Yearly: decimal.NewFromInt(1990)},
	}}
}

// LoadPlanCatalog 从 YAML 文件加载套餐目录；path 为空时返回内置价格表
func LoadPlanCatalog(path string) (*PlanCatalog, error) {
	if path == "" {
		return DefaultPlanCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}
	return ParsePlanCatalog(raw)
}

// ParsePlanCatalog 解析 YAML 套餐目录
//
//	plans:
//	  free:  {monthly: "0", yearly: "0"}
//	  basic: {monthly: "29.00", yearly: "290.00"}
func ParsePlanCatalog(raw []byte) (*PlanCatalog, error) {
	var file planCatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog defines no plans")
	}
	if _, ok := file.Plans[PlanFree]; !ok {
		return nil, fmt.Errorf("plan catalog must define the %q plan", PlanFree)
	}

	c := &PlanCatalog{plans: make(map[string]PlanPrice, len(file.Plans))}
	for name, p := range file.Plans {
		monthly, err := decimal.NewFromString(p.Monthly)
		if err != nil {
			return nil, fmt.Errorf("plan %s: invalid monthly price %q: %w", name, p.Monthly, err)
		}
		yearly, err := decimal.NewFromString(p.Yearly)
		if err != nil {
			return nil, fmt.Errorf("plan %s: invalid yearly price %q: %w", name, p.Yearly, err)
		}
		if monthly.IsNegative() || yearly.IsNegative() {
			return nil, fmt.Errorf("plan %s: prices must not be negative", name)
		}
		c.plans[name] = PlanPrice{Monthly: monthly, Yearly: yearly}
	}
	return c, nil
}

// Has 套餐是否存在
func (c *PlanCatalog) Has(plan string) bool {
	_, ok := c.plans[plan]
	return ok
}

// Price 返回套餐在某计费周期下的价格
func (c *PlanCatalog) Price(plan, cycle string) (decimal.Decimal, error) {
	p, ok := c.plans[plan]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown plan %q", plan)
	}
	switch cycle {
	case CycleMonthly:
		return p.Monthly, nil
	case CycleYearly:
		return p.Yearly, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown billing cycle %q", cycle)
	}
}

// Names 按字母排序的套餐名
func (c *PlanCatalog) Names() []string {
	names := make([]string, 0, len(c.plans))
	for n := range c.plans {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Prices 全部价格（只读副本）
func (c *PlanCatalog) Prices() map[string]PlanPrice {
	out := make(map[string]PlanPrice, len(c.plans))
	for k, v := range c.plans {
		out[k] = v
	}
	return out
}
