package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickflow/internal/core/domain"
)

func samplePayload() domain.ConversionPayload {
	return domain.ConversionPayload{
		OrderID:        "order-1",
		ClickID:        "click-1",
		StoreID:        "store-7",
		OrderValue:     100,
		Currency:       "USD",
		CommissionRate: 5,
		Commission:     5,
		Products: []domain.Product{
			{ID: "p1", Category: "electronics", Price: 60, Quantity: 1},
			{ID: "p2", Category: "books", Price: 40, Quantity: 1},
		},
		CustomerInfo: map[string]any{"country": "DE", "tier": "gold"},
		Metadata:     map[string]any{"tags": []any{"promo", "summer"}, "coupon": "SUMMER10"},
	}
}

func TestEvaluateOperators(t *testing.T) {
	e := NewEngine()
	p := samplePayload()

	cases := []struct {
		name string
		cond domain.RuleCondition
		want bool
	}{
		{"equals string", domain.RuleCondition{Field: "storeId", Operator: domain.OpEquals, Value: "store-7"}, true},
		{"equals number", domain.RuleCondition{Field: "orderValue", Operator: domain.OpEquals, Value: 100.0}, true},
		{"equals numeric string", domain.RuleCondition{Field: "orderValue", Operator: domain.OpEquals, Value: "100"}, true},
		{"not equals", domain.RuleCondition{Field: "currency", Operator: domain.OpNotEquals, Value: "EUR"}, true},
		{"greater than", domain.RuleCondition{Field: "orderValue", Operator: domain.OpGreaterThan, Value: 50}, true},
		{"greater than false", domain.RuleCondition{Field: "orderValue", Operator: domain.OpGreaterThan, Value: 100}, false},
		{"less than", domain.RuleCondition{Field: "orderValue", Operator: domain.OpLessThan, Value: 150.5}, true},
		{"greater than on string", domain.RuleCondition{Field: "currency", Operator: domain.OpGreaterThan, Value: 1}, false},
		{"contains substring", domain.RuleCondition{Field: "metadata.coupon", Operator: domain.OpContains, Value: "SUMMER"}, true},
		{"contains element", domain.RuleCondition{Field: "metadata.tags", Operator: domain.OpContains, Value: "promo"}, true},
		{"contains missing element", domain.RuleCondition{Field: "metadata.tags", Operator: domain.OpContains, Value: "winter"}, false},
		{"in list", domain.RuleCondition{Field: "customerInfo.country", Operator: domain.OpIn, Value: []any{"DE", "AT"}}, true},
		{"in non list", domain.RuleCondition{Field: "customerInfo.country", Operator: domain.OpIn, Value: "DE"}, false},
		{"nested array path", domain.RuleCondition{Field: "products.1.category", Operator: domain.OpEquals, Value: "books"}, true},
		{"array index out of range", domain.RuleCondition{Field: "products.5.category", Operator: domain.OpEquals, Value: "books"}, false},
		{"missing field", domain.RuleCondition{Field: "metadata.nope", Operator: domain.OpEquals, Value: "x"}, false},
		{"unknown operator fails closed", domain.RuleCondition{Field: "orderValue", Operator: "regex", Value: ".*"}, false},
		{"empty field", domain.RuleCondition{Field: "", Operator: domain.OpEquals, Value: nil}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Evaluate([]domain.RuleCondition{tc.cond}, p))
		})
	}
}

func TestEvaluateIsConjunction(t *testing.T) {
	e := NewEngine()
	p := samplePayload()
	conds := []domain.RuleCondition{
		{Field: "orderValue", Operator: domain.OpGreaterThan, Value: 50},
		{Field: "currency", Operator: domain.OpEquals, Value: "EUR"},
	}
	assert.False(t, e.Evaluate(conds, p))
	assert.True(t, e.Evaluate(nil, p))
}

func TestApplyActions(t *testing.T) {
	e := NewEngine()
	p := samplePayload()

	out, eff := e.Apply([]domain.RuleAction{
		{Type: domain.ActionSetCommissionRate, Rate: 7.5},
		{Type: domain.ActionAddBonus, Amount: 2},
		{Type: domain.ActionMultiplyCommission, Factor: 2},
		{Type: domain.ActionSetAttributionModel, Model: domain.ModelLinear},
		{Type: domain.ActionFlagForReview, Reason: "manual check"},
		{Type: "teleport"},
	}, p)

	assert.Equal(t, 7.5, out.CommissionRate)
	assert.InDelta(t, 19.0, out.Commission, 1e-9)
	assert.Equal(t, domain.ModelLinear, out.AttributionModel)
	assert.True(t, eff.FlagForReview)
	assert.Equal(t, []string{"manual check"}, eff.ReviewReasons)
	assert.Equal(t, 5.0, p.Commission, "input payload must not change")
}

func TestRunAppliesMatchingRulesInOrder(t *testing.T) {
	e := NewEngine()
	rules := []domain.ConversionRule{
		{
			ID:         "rule-rate",
			IsActive:   true,
			Priority:   1,
			Conditions: []domain.RuleCondition{{Field: "orderValue", Operator: domain.OpGreaterThan, Value: 50}},
			Actions:    []domain.RuleAction{{Type: domain.ActionSetCommissionRate, Rate: 7.5}},
		},
		{
			ID:         "rule-skip",
			IsActive:   true,
			Priority:   2,
			Conditions: []domain.RuleCondition{{Field: "currency", Operator: domain.OpEquals, Value: "JPY"}},
			Actions:    []domain.RuleAction{{Type: domain.ActionAddBonus, Amount: 100}},
		},
		{
			ID:         "rule-inactive",
			IsActive:   false,
			Actions:    []domain.RuleAction{{Type: domain.ActionAddBonus, Amount: 100}},
		},
		{
			ID:         "rule-flag",
			IsActive:   true,
			Priority:   3,
			Conditions: []domain.RuleCondition{{Field: "commissionRate", Operator: domain.OpEquals, Value: 7.5}},
			Actions:    []domain.RuleAction{{Type: domain.ActionFlagForReview}},
		},
	}

	out := e.Run(rules, samplePayload())

	require.Equal(t, []string{"rule-rate", "rule-flag"}, out.AppliedRules)
	assert.InDelta(t, 7.5, out.Payload.Commission, 1e-9)
	assert.True(t, out.FlagForReview)
	assert.Equal(t, []string{"rule:rule-flag"}, out.ReviewReasons)
}

func TestRunWithoutRules(t *testing.T) {
	out := NewEngine().Run(nil, samplePayload())
	assert.Empty(t, out.AppliedRules)
	assert.Equal(t, 5.0, out.Payload.Commission)
}
