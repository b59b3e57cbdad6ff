package domain

import (
	"fmt"
	"time"
)

// Operator is the comparison applied by a rule condition.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpIn          Operator = "in"
)

// ActionType selects which variant of RuleAction is populated.
type ActionType string

const (
	ActionSetCommissionRate   ActionType = "set_commission_rate"
	ActionAddBonus            ActionType = "add_bonus"
	ActionMultiplyCommission  ActionType = "multiply_commission"
	ActionSetAttributionModel ActionType = "set_attribution_model"
	ActionFlagForReview       ActionType = "flag_for_review"
)

// RuleCondition compares the payload field at the dotted path Field with
// Value. Value holds JSON-decoded data: float64, string, bool or []any.
type RuleCondition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// RuleAction is a tagged variant. Type decides which parameter is read:
// Rate for set_commission_rate, Amount for add_bonus, Factor for
// multiply_commission, Model for set_attribution_model and Reason for
// flag_for_review.
type RuleAction struct {
	Type   ActionType       `json:"type" yaml:"type"`
	Rate   float64          `json:"rate,omitempty" yaml:"rate,omitempty"`
	Amount float64          `json:"amount,omitempty" yaml:"amount,omitempty"`
	Factor float64          `json:"factor,omitempty" yaml:"factor,omitempty"`
	Model  AttributionModel `json:"model,omitempty" yaml:"model,omitempty"`
	Reason string           `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Validate checks that the variant named by Type carries usable parameters.
func (a RuleAction) Validate() error {
	switch a.Type {
	case ActionSetCommissionRate:
		if a.Rate < 0 || a.Rate > 100 {
			return fmt.Errorf("%w: commission rate %v out of range", ErrValidation, a.Rate)
		}
	case ActionAddBonus:
		if a.Amount < 0 {
			return fmt.Errorf("%w: negative bonus %v", ErrValidation, a.Amount)
		}
	case ActionMultiplyCommission:
		if a.Factor < 0 {
			return fmt.Errorf("%w: negative factor %v", ErrValidation, a.Factor)
		}
	case ActionSetAttributionModel:
		if !a.Model.Valid() {
			return fmt.Errorf("%w: unknown attribution model %q", ErrValidation, a.Model)
		}
	case ActionFlagForReview:
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrValidation, a.Type)
	}
	return nil
}

// ConversionRule adjusts commission terms of conversions whose payload
// satisfies every condition. Rules run in ascending Priority.
type ConversionRule struct {
	ID         string          `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Conditions []RuleCondition `json:"conditions" yaml:"conditions"`
	Actions    []RuleAction    `json:"actions" yaml:"actions"`
	Priority   int             `json:"priority" yaml:"priority"`
	IsActive   bool            `json:"isActive" yaml:"active"`
	UsageCount int64           `json:"usageCount" yaml:"-"`
	CreatedAt  time.Time       `json:"createdAt" yaml:"-"`
	UpdatedAt  time.Time       `json:"updatedAt" yaml:"-"`
}
