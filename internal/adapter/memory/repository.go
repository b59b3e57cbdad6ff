// Package memory implements the persistence ports in process memory. It
// backs STORAGE_DRIVER=memory and the use case tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
)

var _ port.Repository = (*Repository)(nil)

// Repository keeps every entity in maps guarded by one RWMutex. Records are
// copied on the way in and out so callers never share memory with it.
type Repository struct {
	mu sync.RWMutex

	clicks       map[string]domain.ClickEvent
	clickOrder   []string
	sessions     map[string]domain.ClickSession
	conversions  map[string]domain.ConversionEvent
	byOrderID    map[string]string
	audit        []domain.AuditEntry
	rules        map[string]domain.ConversionRule
	attributions map[string]domain.AttributionRecord
	assessments  map[string][]domain.FraudAssessment
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{
		clicks:       make(map[string]domain.ClickEvent),
		sessions:     make(map[string]domain.ClickSession),
		conversions:  make(map[string]domain.ConversionEvent),
		byOrderID:    make(map[string]string),
		rules:        make(map[string]domain.ConversionRule),
		attributions: make(map[string]domain.AttributionRecord),
		assessments:  make(map[string][]domain.FraudAssessment),
	}
}

// CreateClick stores a click event.
func (r *Repository) CreateClick(ctx context.Context, click *domain.ClickEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clicks[click.ClickID]; ok {
		return domain.ErrDuplicate
	}
	r.clicks[click.ClickID] = cloneClick(*click)
	r.clickOrder = append(r.clickOrder, click.ClickID)
	return nil
}

// GetClick returns a click by id.
func (r *Repository) GetClick(ctx context.Context, clickID string) (*domain.ClickEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clicks[clickID]
	if !ok {
		return nil, nil
	}
	c = cloneClick(c)
	return &c, nil
}

// ListClicksByUser returns the user's clicks within [from, to] ordered by
// click time, ties in insertion order.
func (r *Repository) ListClicksByUser(ctx context.Context, userID string, from, to time.Time) ([]domain.ClickEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ClickEvent
	for _, id := range r.clickOrder {
		c := r.clicks[id]
		if c.UserID != userID || c.ClickedAt.Before(from) || c.ClickedAt.After(to) {
			continue
		}
		out = append(out, cloneClick(c))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClickedAt.Before(out[j].ClickedAt) })
	return out, nil
}

// ClickCount returns the number of stored clicks.
func (r *Repository) ClickCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clicks)
}

// CreateSession stores a new session.
func (r *Repository) CreateSession(ctx context.Context, s *domain.ClickSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.SessionID]; ok {
		return domain.ErrDuplicate
	}
	r.sessions[s.SessionID] = *s
	return nil
}

// UpdateSession overwrites activity, click and end fields of a session.
func (r *Repository) UpdateSession(ctx context.Context, s *domain.ClickSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[s.SessionID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.LastActivityAt = s.LastActivityAt
	cur.ClickCount = s.ClickCount
	cur.UniqueLinksClicked = s.UniqueLinksClicked
	cur.EndedAt = s.EndedAt
	cur.Duration = s.Duration
	cur.IsActive = s.IsActive
	r.sessions[s.SessionID] = cur
	return nil
}

// GetSession returns a session by id.
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*domain.ClickSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// AddSessionConversion increments the conversion aggregates of a session.
func (r *Repository) AddSessionConversion(ctx context.Context, sessionID string, revenue, commission float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	s.ConversionCount++
	s.TotalRevenue += revenue
	s.TotalCommission += commission
	r.sessions[sessionID] = s
	return nil
}

// CreateConversion inserts a conversion unless its order id is taken.
func (r *Repository) CreateConversion(ctx context.Context, c *domain.ConversionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOrderID[c.OrderID]; ok {
		return domain.ErrDuplicate
	}
	r.conversions[c.ID] = cloneConversion(*c)
	r.byOrderID[c.OrderID] = c.ID
	return nil
}

// GetConversion returns a conversion by id.
func (r *Repository) GetConversion(ctx context.Context, id string) (*domain.ConversionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversions[id]
	if !ok {
		return nil, nil
	}
	c = cloneConversion(c)
	return &c, nil
}

// GetConversionByOrderID returns the conversion of an order.
func (r *Repository) GetConversionByOrderID(ctx context.Context, orderID string) (*domain.ConversionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	id, ok := r.byOrderID[orderID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetConversion(ctx, id)
}

// UpdateConversion overwrites a stored conversion.
func (r *Repository) UpdateConversion(ctx context.Context, c *domain.ConversionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversions[c.ID]; !ok {
		return domain.ErrNotFound
	}
	r.conversions[c.ID] = cloneConversion(*c)
	return nil
}

// CountConversionsByUserSince counts the user's conversions created at or
// after since.
func (r *Repository) CountConversionsByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.conversions {
		if c.UserID == userID && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ConversionCount returns the number of stored conversions.
func (r *Repository) ConversionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversions)
}

// AppendAudit stores an audit entry.
func (r *Repository) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, *entry)
	return nil
}

// AuditTrail returns the audit entries of a conversion in order.
func (r *Repository) AuditTrail(conversionID string) []domain.AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.AuditEntry
	for _, e := range r.audit {
		if e.ConversionID == conversionID {
			out = append(out, e)
		}
	}
	return out
}

// ListActiveRules returns active rules by ascending priority, ties by id.
func (r *Repository) ListActiveRules(ctx context.Context) ([]domain.ConversionRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ConversionRule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].ID < out[j].ID
		}
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

// IncrementRuleUsage bumps the usage counter of a rule.
func (r *Repository) IncrementRuleUsage(ctx context.Context, ruleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[ruleID]
	if !ok {
		return domain.ErrNotFound
	}
	rule.UsageCount++
	r.rules[ruleID] = rule
	return nil
}

// UpsertRule creates or replaces a rule, keeping its usage counter.
func (r *Repository) UpsertRule(ctx context.Context, rule *domain.ConversionRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rules[rule.ID]; ok {
		rule.UsageCount = cur.UsageCount
	}
	r.rules[rule.ID] = *rule
	return nil
}

// Rule returns a rule by id.
func (r *Repository) Rule(id string) (domain.ConversionRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	return rule, ok
}

// CreateAttribution stores the attribution record of a conversion.
func (r *Repository) CreateAttribution(ctx context.Context, rec *domain.AttributionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	cp.Touchpoints = append([]domain.Touchpoint(nil), rec.Touchpoints...)
	r.attributions[rec.ConversionID] = cp
	return nil
}

// GetAttributionByConversion returns the attribution of a conversion.
func (r *Repository) GetAttributionByConversion(ctx context.Context, conversionID string) (*domain.AttributionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.attributions[conversionID]
	if !ok {
		return nil, nil
	}
	rec.Touchpoints = append([]domain.Touchpoint(nil), rec.Touchpoints...)
	return &rec, nil
}

// CreateAssessment appends a fraud assessment.
func (r *Repository) CreateAssessment(ctx context.Context, a *domain.FraudAssessment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	cp.Indicators = append([]string(nil), a.Indicators...)
	r.assessments[a.ConversionID] = append(r.assessments[a.ConversionID], cp)
	return nil
}

// ListAssessments returns the assessments of a conversion, oldest first.
func (r *Repository) ListAssessments(ctx context.Context, conversionID string) ([]domain.FraudAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.FraudAssessment(nil), r.assessments[conversionID]...), nil
}

func cloneClick(c domain.ClickEvent) domain.ClickEvent {
	if c.SourceDetails != nil {
		details := make(map[string]string, len(c.SourceDetails))
		for k, v := range c.SourceDetails {
			details[k] = v
		}
		c.SourceDetails = details
	}
	return c
}

func cloneConversion(c domain.ConversionEvent) domain.ConversionEvent {
	c.Products = append([]domain.Product(nil), c.Products...)
	c.AppliedRules = append([]string{}, c.AppliedRules...)
	c.ReviewReasons = append([]string(nil), c.ReviewReasons...)
	c.CustomerInfo = cloneDocument(c.CustomerInfo)
	c.Metadata = cloneDocument(c.Metadata)
	return c
}

// cloneDocument deep-copies JSON-shaped data.
func cloneDocument(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneDocument(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}
