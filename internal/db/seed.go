package db

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
)

// PixelSink receives the store pixels read from a seed file.
type PixelSink interface {
	Add(p domain.StorePixel)
}

type seedFile struct {
	Rules  []seedRule          `yaml:"rules"`
	Pixels []domain.StorePixel `yaml:"pixels"`
}

type seedRule struct {
	ID         string                 `yaml:"id"`
	Name       string                 `yaml:"name"`
	Priority   int                    `yaml:"priority"`
	Active     *bool                  `yaml:"active"`
	Conditions []domain.RuleCondition `yaml:"conditions"`
	Actions    []domain.RuleAction    `yaml:"actions"`
}

// SeedResult counts what Seed loaded.
type SeedResult struct {
	Rules  int
	Pixels int
}

// Seed loads conversion rules and store pixels from the YAML file at path.
// Rules are upserted, so reseeding keeps their usage counters. A rule
// without an active key is active.
func Seed(ctx context.Context, path string, rules port.RuleRepository, pixels PixelSink) (SeedResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("read seed file: %w", err)
	}
	return SeedBytes(ctx, raw, rules, pixels)
}

// SeedBytes is Seed for an in-memory document.
func SeedBytes(ctx context.Context, raw []byte, rules port.RuleRepository, pixels PixelSink) (SeedResult, error) {
	var doc seedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return SeedResult{}, fmt.Errorf("parse seed file: %w", err)
	}

	now := time.Now().UTC()
	converted := make([]domain.ConversionRule, 0, len(doc.Rules))
	for i, sr := range doc.Rules {
		rule, err := sr.rule(now)
		if err != nil {
			return SeedResult{}, fmt.Errorf("rule #%d: %w", i+1, err)
		}
		converted = append(converted, rule)
	}
	for i, p := range doc.Pixels {
		if strings.TrimSpace(p.StoreID) == "" || strings.TrimSpace(p.URLTemplate) == "" {
			return SeedResult{}, fmt.Errorf("pixel #%d: %w: store and url are required", i+1, domain.ErrValidation)
		}
	}

	for i := range converted {
		if err := rules.UpsertRule(ctx, &converted[i]); err != nil {
			return SeedResult{}, fmt.Errorf("upsert rule %s: %w", converted[i].ID, err)
		}
	}
	for _, p := range doc.Pixels {
		pixels.Add(p)
	}
	return SeedResult{Rules: len(converted), Pixels: len(doc.Pixels)}, nil
}

func (sr seedRule) rule(now time.Time) (domain.ConversionRule, error) {
	if strings.TrimSpace(sr.ID) == "" {
		return domain.ConversionRule{}, fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	for _, a := range sr.Actions {
		if err := a.Validate(); err != nil {
			return domain.ConversionRule{}, fmt.Errorf("rule %s: %w", sr.ID, err)
		}
	}
	active := true
	if sr.Active != nil {
		active = *sr.Active
	}
	name := sr.Name
	if name == "" {
		name = sr.ID
	}
	return domain.ConversionRule{
		ID:         sr.ID,
		Name:       name,
		Conditions: sr.Conditions,
		Actions:    sr.Actions,
		Priority:   sr.Priority,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
