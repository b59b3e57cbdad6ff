package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"clickflow/internal/core/attribution"
	"clickflow/internal/core/domain"
	"clickflow/internal/core/fraud"
	"clickflow/internal/core/port"
	"clickflow/internal/core/rules"
	"clickflow/internal/core/session"
	"clickflow/internal/metrics"
	"clickflow/internal/pkg/keylock"
)

var _ port.ConversionUseCase = (*ConversionUseCase)(nil)

const reasonFraudDetected = "fraud_detected"

// ConversionDeps are the collaborators of the conversion processor.
type ConversionDeps struct {
	Repo        port.Repository
	Sessions    *session.Store
	Rules       *rules.Engine
	Attribution *attribution.Engine
	Fraud       *fraud.Detector
	Notifier    port.Notifier
	Pixels      port.PixelRegistry
	Logger      *slog.Logger
	// StoreTimeout bounds each repository call.
	StoreTimeout time.Duration
}

// ConversionUseCase reconciles merchant conversions against clicks and
// manages their status afterwards.
type ConversionUseCase struct {
	ConversionDeps

	orders  singleflight.Group
	tickets atomic.Uint64
	// serializes status changes per conversion id
	locks *keylock.Locker
	now   func() time.Time
}

// NewConversionUseCase returns the conversion processor.
func NewConversionUseCase(deps ConversionDeps) *ConversionUseCase {
	return &ConversionUseCase{
		ConversionDeps: deps,
		locks:          keylock.New(),
		now:            time.Now,
	}
}

// flight is the shared result of one singleflight call. owner identifies the
// caller whose function ran; joiners see Created=false.
type flight struct {
	owner  uint64
	result *port.ConversionResult
}

// HandleConversionWebhook validates the payload, resolves its click and
// creates the conversion unless one exists for the order.
func (u *ConversionUseCase) HandleConversionWebhook(ctx context.Context, p domain.ConversionPayload) (*port.ConversionResult, error) {
	start := time.Now()
	defer func() { metrics.ConversionDuration.Observe(time.Since(start).Seconds()) }()

	if err := normalizePayload(&p); err != nil {
		metrics.ConversionsProcessed.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var click *domain.ClickEvent
	if err := u.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		click, err = u.Repo.GetClick(ctx, p.ClickID)
		return err
	}); err != nil {
		metrics.ConversionsProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load click %s: %w", p.ClickID, err)
	}
	if click == nil {
		metrics.ConversionsProcessed.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: click event not found: %s", domain.ErrNotFound, p.ClickID)
	}
	switch p.UserID {
	case "":
		p.UserID = click.UserID
	case click.UserID:
	default:
		metrics.ConversionsProcessed.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: userId %s does not match the user of click %s", domain.ErrValidation, p.UserID, p.ClickID)
	}
	if p.StoreID == "" {
		p.StoreID = click.StoreID
	}

	ticket := u.tickets.Add(1)
	v, err, _ := u.orders.Do(p.OrderID, func() (any, error) {
		// joiners must not fail because the leader's request was cancelled
		res, err := u.process(context.WithoutCancel(ctx), p, click)
		if err != nil {
			return nil, err
		}
		return flight{owner: ticket, result: res}, nil
	})
	if err != nil {
		metrics.ConversionsProcessed.WithLabelValues("error").Inc()
		return nil, err
	}
	f := v.(flight)
	res := *f.result
	if f.owner != ticket {
		res.Created = false
	}
	if res.Created {
		metrics.ConversionsProcessed.WithLabelValues("created").Inc()
	} else {
		metrics.ConversionsProcessed.WithLabelValues("replay").Inc()
	}
	return &res, nil
}

func (u *ConversionUseCase) process(ctx context.Context, p domain.ConversionPayload, click *domain.ClickEvent) (*port.ConversionResult, error) {
	existing, err := u.conversionByOrder(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &port.ConversionResult{Conversion: existing}, nil
	}

	now := u.now().UTC()
	convertedAt := now
	if p.ConvertedAt != nil {
		convertedAt = p.ConvertedAt.UTC()
	}

	p.Commission = p.BaseCommission()
	var active []domain.ConversionRule
	if err = u.withTimeout(ctx, func(ctx context.Context) error {
		active, err = u.Repo.ListActiveRules(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	outcome := u.Rules.Run(active, p)
	p = outcome.Payload

	conv := &domain.ConversionEvent{
		ID:               uuid.NewString(),
		ClickID:          p.ClickID,
		UserID:           p.UserID,
		StoreID:          p.StoreID,
		OrderID:          p.OrderID,
		OrderValue:       p.OrderValue,
		Currency:         p.Currency,
		Commission:       p.Commission,
		CommissionRate:   p.CommissionRate,
		Products:         p.Products,
		CustomerInfo:     p.CustomerInfo,
		Metadata:         p.Metadata,
		ConversionType:   p.ConversionType,
		AttributionModel: u.Attribution.Model(p.AttributionModel),
		Status:           domain.StatusPending,
		AppliedRules:     outcome.AppliedRules,
		FlaggedForReview: outcome.FlagForReview,
		ReviewReasons:    outcome.ReviewReasons,
		ConvertedAt:      convertedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	recent, history, err := u.history(ctx, conv, click, now)
	if err != nil {
		return nil, err
	}

	verdict := u.Fraud.Detect(fraud.Input{Conversion: *conv, Click: click, RecentConversions: recent})
	metrics.FraudScore.Observe(float64(verdict.RiskScore))
	for _, ind := range verdict.Indicators {
		metrics.FraudIndicators.WithLabelValues(ind).Inc()
	}
	if verdict.IsFraud {
		switch u.Fraud.Policy() {
		case domain.PolicyHardBlock:
			conv.Status = domain.StatusCancelled
			conv.StatusReason = reasonFraudDetected
			conv.Commission = 0
		default:
			conv.FlaggedForReview = true
			conv.ReviewReasons = append(conv.ReviewReasons, reasonFraudDetected)
		}
	}

	if err = u.withTimeout(ctx, func(ctx context.Context) error {
		return u.Repo.CreateConversion(ctx, conv)
	}); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// lost the race on the order unique index to another instance
			existing, lookupErr := u.conversionByOrder(ctx, p.OrderID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return &port.ConversionResult{Conversion: existing}, nil
			}
		}
		return nil, fmt.Errorf("store conversion: %w", err)
	}

	logger := u.Logger.With(
		slog.String("conversion_id", conv.ID),
		slog.String("order_id", conv.OrderID))

	for _, ruleID := range conv.AppliedRules {
		metrics.RulesApplied.WithLabelValues(ruleID).Inc()
		if err := u.withTimeout(ctx, func(ctx context.Context) error {
			return u.Repo.IncrementRuleUsage(ctx, ruleID)
		}); err != nil {
			logger.Warn("rule usage not incremented", slog.String("rule_id", ruleID), slog.Any("error", err))
		}
	}
	u.audit(ctx, logger, conv, "created", "", conv.StatusReason, nil)

	res := &port.ConversionResult{Conversion: conv, Created: true}
	if len(verdict.Indicators) > 0 {
		a := &domain.FraudAssessment{
			ID:           uuid.NewString(),
			ConversionID: conv.ID,
			RiskScore:    verdict.RiskScore,
			Indicators:   verdict.Indicators,
			IsFraud:      verdict.IsFraud,
			Policy:       u.Fraud.Policy(),
			EvaluatedAt:  now,
		}
		if err := u.withTimeout(ctx, func(ctx context.Context) error {
			return u.Repo.CreateAssessment(ctx, a)
		}); err != nil {
			logger.Error("fraud assessment not stored", slog.Any("error", err))
		} else {
			res.Assessment = a
		}
		if verdict.IsFraud {
			logger.Warn("conversion scored as fraud",
				slog.Int("risk_score", verdict.RiskScore),
				slog.Any("indicators", verdict.Indicators),
				slog.String("policy", string(u.Fraud.Policy())))
		}
	}

	if conv.Status != domain.StatusCancelled {
		u.addToSession(ctx, logger, click, conv)
	}

	rec, err := u.Attribution.Calculate(*conv, history)
	if err != nil {
		logger.Error("attribution not calculated", slog.Any("error", err))
	} else {
		rec.ID = uuid.NewString()
		rec.CreatedAt = now
		if err := u.withTimeout(ctx, func(ctx context.Context) error {
			return u.Repo.CreateAttribution(ctx, &rec)
		}); err != nil {
			logger.Error("attribution not stored", slog.Any("error", err))
		} else {
			res.Attribution = &rec
		}
	}

	u.publish(ctx, logger, domain.TriggerConversionCreated, conv, "")
	if conv.Status != domain.StatusCancelled && u.Pixels != nil {
		for _, px := range u.Pixels.PixelsForStore(conv.StoreID) {
			u.publish(ctx, logger, domain.TriggerPixelFire, conv, px.Render(*conv))
		}
	}

	logger.Info("conversion created",
		slog.String("click_id", conv.ClickID),
		slog.Float64("commission", conv.Commission),
		slog.String("status", string(conv.Status)),
		slog.Any("applied_rules", conv.AppliedRules))
	return res, nil
}

// history loads the velocity count and the user's click history
// concurrently. The count excludes conv, which is not stored yet. The
// originating click is always part of the history, even when it lies
// outside the attribution window.
func (u *ConversionUseCase) history(ctx context.Context, conv *domain.ConversionEvent, origin *domain.ClickEvent, now time.Time) (int, []domain.ClickEvent, error) {
	var (
		recent int
		clicks []domain.ClickEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return u.withTimeout(gctx, func(ctx context.Context) error {
			var err error
			recent, err = u.Repo.CountConversionsByUserSince(ctx, conv.UserID, now.Add(-u.Fraud.VelocityWindow()))
			if err != nil {
				return fmt.Errorf("count recent conversions: %w", err)
			}
			return nil
		})
	})
	g.Go(func() error {
		from, to := u.Attribution.Window(*conv)
		return u.withTimeout(gctx, func(ctx context.Context) error {
			var err error
			clicks, err = u.Repo.ListClicksByUser(ctx, conv.UserID, from, to)
			if err != nil {
				return fmt.Errorf("list clicks: %w", err)
			}
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}
	if !containsClick(clicks, origin.ClickID) {
		clicks = append(clicks, *origin)
	}
	return recent, clicks, nil
}

func containsClick(clicks []domain.ClickEvent, clickID string) bool {
	for i := range clicks {
		if clicks[i].ClickID == clickID {
			return true
		}
	}
	return false
}

// addToSession adds the conversion to the session of its click: the
// in-memory copy when that session is still active, and always the stored
// row.
func (u *ConversionUseCase) addToSession(ctx context.Context, logger *slog.Logger, click *domain.ClickEvent, conv *domain.ConversionEvent) {
	if click.SessionID == "" {
		return
	}
	unlock := u.Sessions.Lock(click.UserID)
	defer unlock()

	u.Sessions.AddConversion(click.UserID, click.SessionID, conv.OrderValue, conv.Commission)
	if err := u.withTimeout(ctx, func(ctx context.Context) error {
		return u.Repo.AddSessionConversion(ctx, click.SessionID, conv.OrderValue, conv.Commission)
	}); err != nil {
		logger.Error("session aggregates not stored",
			slog.String("session_id", click.SessionID),
			slog.Any("error", err))
	}
}

// GetConversion returns a conversion by id.
func (u *ConversionUseCase) GetConversion(ctx context.Context, id string) (*domain.ConversionEvent, error) {
	var conv *domain.ConversionEvent
	if err := u.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		conv, err = u.Repo.GetConversion(ctx, id)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load conversion %s: %w", id, err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: conversion %s", domain.ErrNotFound, id)
	}
	return conv, nil
}

// ConfirmConversion marks a pending conversion confirmed. Confirming a
// confirmed conversion returns it unchanged.
func (u *ConversionUseCase) ConfirmConversion(ctx context.Context, id string) (*domain.ConversionEvent, error) {
	return u.transition(ctx, id, func(c *domain.ConversionEvent) (change, error) {
		if c.Status == domain.StatusConfirmed {
			return change{}, nil
		}
		c.Status = domain.StatusConfirmed
		return change{action: "confirmed", trigger: domain.TriggerConversionConfirmed}, nil
	})
}

// CancelConversion cancels a conversion with reason.
func (u *ConversionUseCase) CancelConversion(ctx context.Context, id, reason string) (*domain.ConversionEvent, error) {
	reason = strings.TrimSpace(reason)
	return u.transition(ctx, id, func(c *domain.ConversionEvent) (change, error) {
		c.Status = domain.StatusCancelled
		c.StatusReason = reason
		return change{action: "cancelled", reason: reason, trigger: domain.TriggerConversionCancelled}, nil
	})
}

// RefundConversion refunds a conversion. A nil percent or 100 is a full
// refund: the conversion becomes refunded with zero commission. A percent
// in (0, 100) reduces the commission and keeps the status.
func (u *ConversionUseCase) RefundConversion(ctx context.Context, id string, percent *float64) (*domain.ConversionEvent, error) {
	if percent != nil && (*percent <= 0 || *percent > 100) {
		return nil, fmt.Errorf("%w: refund percent %v out of range (0, 100]", domain.ErrValidation, *percent)
	}
	return u.transition(ctx, id, func(c *domain.ConversionEvent) (change, error) {
		before := c.Commission
		details := map[string]string{"commission_before": formatMoney(before)}
		if percent == nil || *percent == 100 {
			c.Status = domain.StatusRefunded
			c.Commission = 0
			details["commission_after"] = formatMoney(0)
			return change{action: "refunded", details: details, trigger: domain.TriggerConversionCancelled}, nil
		}
		c.Commission = domain.RoundMoney(before * (1 - *percent/100))
		details["percent"] = strconv.FormatFloat(*percent, 'f', -1, 64)
		details["commission_after"] = formatMoney(c.Commission)
		return change{action: "partially_refunded", details: details, trigger: domain.TriggerPartialRefund}, nil
	})
}

// change describes a status operation applied by transition. An empty
// action means nothing changed.
type change struct {
	action  string
	reason  string
	details map[string]string
	trigger domain.TriggerType
}

// transition loads the conversion under its lock, rejects terminal ones,
// applies fn, stores the result and records audit and trigger.
func (u *ConversionUseCase) transition(ctx context.Context, id string, fn func(c *domain.ConversionEvent) (change, error)) (*domain.ConversionEvent, error) {
	unlock := u.locks.Lock(id)
	defer unlock()

	conv, err := u.GetConversion(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Status.Terminal() {
		return nil, fmt.Errorf("%w: conversion %s is %s", domain.ErrInvalidTransition, id, conv.Status)
	}
	from := conv.Status
	ch, err := fn(conv)
	if err != nil {
		return nil, err
	}
	if ch.action == "" {
		return conv, nil
	}
	conv.UpdatedAt = u.now().UTC()
	if err = u.withTimeout(ctx, func(ctx context.Context) error {
		return u.Repo.UpdateConversion(ctx, conv)
	}); err != nil {
		return nil, fmt.Errorf("update conversion %s: %w", id, err)
	}

	logger := u.Logger.With(
		slog.String("conversion_id", conv.ID),
		slog.String("order_id", conv.OrderID))
	u.audit(ctx, logger, conv, ch.action, from, ch.reason, ch.details)
	u.publish(ctx, logger, ch.trigger, conv, "")
	logger.Info("conversion status changed",
		slog.String("action", ch.action),
		slog.String("from", string(from)),
		slog.String("to", string(conv.Status)),
		slog.Float64("commission", conv.Commission))
	return conv, nil
}

// ReevaluateFraud scores the conversion again and appends a new assessment.
// A soft-flag verdict of fraud marks a live conversion for review.
func (u *ConversionUseCase) ReevaluateFraud(ctx context.Context, id string) (*domain.FraudAssessment, error) {
	unlock := u.locks.Lock(id)
	defer unlock()

	conv, err := u.GetConversion(ctx, id)
	if err != nil {
		return nil, err
	}
	var click *domain.ClickEvent
	if err = u.withTimeout(ctx, func(ctx context.Context) error {
		click, err = u.Repo.GetClick(ctx, conv.ClickID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load click %s: %w", conv.ClickID, err)
	}

	now := u.now().UTC()
	since := now.Add(-u.Fraud.VelocityWindow())
	var recent int
	if err = u.withTimeout(ctx, func(ctx context.Context) error {
		recent, err = u.Repo.CountConversionsByUserSince(ctx, conv.UserID, since)
		return err
	}); err != nil {
		return nil, fmt.Errorf("count recent conversions: %w", err)
	}
	if !conv.CreatedAt.Before(since) && recent > 0 {
		recent--
	}

	verdict := u.Fraud.Detect(fraud.Input{Conversion: *conv, Click: click, RecentConversions: recent})
	a := &domain.FraudAssessment{
		ID:           uuid.NewString(),
		ConversionID: conv.ID,
		RiskScore:    verdict.RiskScore,
		Indicators:   verdict.Indicators,
		IsFraud:      verdict.IsFraud,
		Policy:       u.Fraud.Policy(),
		EvaluatedAt:  now,
	}
	if err = u.withTimeout(ctx, func(ctx context.Context) error {
		return u.Repo.CreateAssessment(ctx, a)
	}); err != nil {
		return nil, fmt.Errorf("store assessment: %w", err)
	}
	metrics.FraudScore.Observe(float64(a.RiskScore))

	if verdict.IsFraud && !conv.FlaggedForReview && !conv.Status.Terminal() {
		conv.FlaggedForReview = true
		conv.ReviewReasons = append(conv.ReviewReasons, reasonFraudDetected)
		conv.UpdatedAt = now
		if err = u.withTimeout(ctx, func(ctx context.Context) error {
			return u.Repo.UpdateConversion(ctx, conv)
		}); err != nil {
			return nil, fmt.Errorf("flag conversion %s: %w", id, err)
		}
		u.audit(ctx, u.Logger, conv, "flagged_for_review", conv.Status, reasonFraudDetected,
			map[string]string{"risk_score": strconv.Itoa(a.RiskScore)})
	}
	return a, nil
}

// GetAttribution returns the attribution record of a conversion.
func (u *ConversionUseCase) GetAttribution(ctx context.Context, conversionID string) (*domain.AttributionRecord, error) {
	var rec *domain.AttributionRecord
	if err := u.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		rec, err = u.Repo.GetAttributionByConversion(ctx, conversionID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load attribution of %s: %w", conversionID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: attribution of conversion %s", domain.ErrNotFound, conversionID)
	}
	return rec, nil
}

func (u *ConversionUseCase) conversionByOrder(ctx context.Context, orderID string) (*domain.ConversionEvent, error) {
	var conv *domain.ConversionEvent
	if err := u.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		conv, err = u.Repo.GetConversionByOrderID(ctx, orderID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load conversion of order %s: %w", orderID, err)
	}
	return conv, nil
}

func (u *ConversionUseCase) audit(ctx context.Context, logger *slog.Logger, conv *domain.ConversionEvent, action string, from domain.ConversionStatus, reason string, details map[string]string) {
	entry := &domain.AuditEntry{
		ID:           uuid.NewString(),
		ConversionID: conv.ID,
		Action:       action,
		FromStatus:   from,
		ToStatus:     conv.Status,
		Reason:       reason,
		Details:      details,
		CreatedAt:    u.now().UTC(),
	}
	if err := u.withTimeout(ctx, func(ctx context.Context) error {
		return u.Repo.AppendAudit(ctx, entry)
	}); err != nil {
		logger.Error("audit entry not stored", slog.String("action", action), slog.Any("error", err))
	}
}

// publish hands a trigger to the notifier. Failures are logged only.
func (u *ConversionUseCase) publish(ctx context.Context, logger *slog.Logger, typ domain.TriggerType, conv *domain.ConversionEvent, url string) {
	if u.Notifier == nil {
		return
	}
	ev := domain.TriggerEvent{
		EventID:      uuid.NewString(),
		Type:         typ,
		StoreID:      conv.StoreID,
		ConversionID: conv.ID,
		OrderID:      conv.OrderID,
		ClickID:      conv.ClickID,
		OrderValue:   conv.OrderValue,
		Commission:   conv.Commission,
		Currency:     conv.Currency,
		Status:       conv.Status,
		URL:          url,
		OccurredAt:   u.now().UTC(),
	}
	if err := u.Notifier.Notify(ctx, ev); err != nil {
		logger.Warn("trigger not published", slog.String("type", string(typ)), slog.Any("error", err))
	}
}

func (u *ConversionUseCase) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, u.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

// normalizePayload validates p and fills defaults.
func normalizePayload(p *domain.ConversionPayload) error {
	p.OrderID = strings.TrimSpace(p.OrderID)
	p.ClickID = strings.TrimSpace(p.ClickID)
	p.UserID = strings.TrimSpace(p.UserID)
	p.StoreID = strings.TrimSpace(p.StoreID)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))

	var problems []string
	if p.OrderID == "" {
		problems = append(problems, "orderId is required")
	}
	if p.ClickID == "" {
		problems = append(problems, "clickId is required")
	}
	if p.OrderValue < 0 {
		problems = append(problems, "orderValue must not be negative")
	}
	if p.Commission < 0 {
		problems = append(problems, "commission must not be negative")
	}
	if p.CommissionRate < 0 || p.CommissionRate > 100 {
		problems = append(problems, "commissionRate must be within [0, 100]")
	}
	if p.AttributionModel != "" && !p.AttributionModel.Valid() {
		problems = append(problems, fmt.Sprintf("unknown attributionModel %q", p.AttributionModel))
	}
	for i, pr := range p.Products {
		if pr.Quantity < 0 || pr.Price < 0 {
			problems = append(problems, fmt.Sprintf("products[%d] has negative price or quantity", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(problems, "; "))
	}

	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.ConversionType == "" {
		p.ConversionType = domain.ConversionPurchase
	}
	return nil
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
