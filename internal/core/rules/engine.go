// Package rules evaluates conversion rules against webhook payloads. The
// engine is stateless: it never errors, and conditions it cannot evaluate
// (unknown operator, missing field, mismatched types) are false.
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"clickflow/internal/core/domain"
)

// Effects are side results of actions that do not live on the payload.
type Effects struct {
	FlagForReview bool
	ReviewReasons []string
}

// Outcome is the result of running a rule set over one payload.
type Outcome struct {
	Payload      domain.ConversionPayload
	AppliedRules []string
	Effects
}

// Engine evaluates AND-combined conditions and applies typed actions.
type Engine struct{}

// NewEngine returns a rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Run evaluates rules in the given order (callers pass them sorted by
// priority). Each rule sees the payload as left by the rules before it.
func (e *Engine) Run(rules []domain.ConversionRule, payload domain.ConversionPayload) Outcome {
	out := Outcome{Payload: payload, AppliedRules: []string{}}
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if !e.Evaluate(rule.Conditions, out.Payload) {
			continue
		}
		var eff Effects
		out.Payload, eff = e.Apply(rule.Actions, out.Payload)
		if eff.FlagForReview {
			out.FlagForReview = true
			for _, r := range eff.ReviewReasons {
				if r == "" {
					r = "rule:" + rule.ID
				}
				out.ReviewReasons = append(out.ReviewReasons, r)
			}
		}
		out.AppliedRules = append(out.AppliedRules, rule.ID)
	}
	return out
}

// Evaluate reports whether every condition holds for payload. An empty
// condition list matches.
func (e *Engine) Evaluate(conditions []domain.RuleCondition, payload domain.ConversionPayload) bool {
	doc, ok := document(payload)
	if !ok {
		return false
	}
	for _, c := range conditions {
		if !evaluate(c, doc) {
			return false
		}
	}
	return true
}

// Apply runs actions in order on a copy of payload. Unknown action types
// are skipped.
func (e *Engine) Apply(actions []domain.RuleAction, payload domain.ConversionPayload) (domain.ConversionPayload, Effects) {
	var eff Effects
	for _, a := range actions {
		switch a.Type {
		case domain.ActionSetCommissionRate:
			payload.CommissionRate = a.Rate
			payload.Commission = domain.RoundMoney(payload.OrderValue * a.Rate / 100)
		case domain.ActionAddBonus:
			payload.Commission = domain.RoundMoney(payload.Commission + a.Amount)
		case domain.ActionMultiplyCommission:
			payload.Commission = domain.RoundMoney(payload.Commission * a.Factor)
		case domain.ActionSetAttributionModel:
			if a.Model.Valid() {
				payload.AttributionModel = a.Model
			}
		case domain.ActionFlagForReview:
			eff.FlagForReview = true
			eff.ReviewReasons = append(eff.ReviewReasons, a.Reason)
		}
	}
	return payload, eff
}

// document converts the payload into the generic form addressed by dotted
// field paths, using the payload's JSON field names.
func document(payload domain.ConversionPayload) (map[string]any, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	var doc map[string]any
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	return doc, true
}

// lookup resolves a dotted path such as "customerInfo.country" or
// "products.0.category".
func lookup(doc any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

func evaluate(c domain.RuleCondition, doc map[string]any) bool {
	field, ok := lookup(doc, c.Field)
	if !ok {
		return false
	}
	switch c.Operator {
	case domain.OpEquals:
		return equal(field, c.Value)
	case domain.OpNotEquals:
		return !equal(field, c.Value)
	case domain.OpGreaterThan:
		a, okA := number(field)
		b, okB := number(c.Value)
		return okA && okB && a > b
	case domain.OpLessThan:
		a, okA := number(field)
		b, okB := number(c.Value)
		return okA && okB && a < b
	case domain.OpContains:
		return contains(field, c.Value)
	case domain.OpIn:
		list, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if equal(field, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func contains(field, value any) bool {
	switch f := field.(type) {
	case string:
		s, ok := value.(string)
		return ok && strings.Contains(f, s)
	case []any:
		for _, v := range f {
			if equal(v, value) {
				return true
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	if x, ok := a.(bool); ok {
		y, ok := b.(bool)
		return ok && x == y
	}
	switch a.(type) {
	case map[string]any, []any:
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// number converts JSON or YAML scalars to float64. Numeric strings count.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
