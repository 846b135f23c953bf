package pricefeed

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Condition selects how an alert threshold is compared.
type Condition string

const (
	ConditionAbove         Condition = "above"
	ConditionBelow         Condition = "below"
	ConditionPercentChange Condition = "percentChange"
)

// Alert is a persistent threshold watch on one candidate's price.
type Alert struct {
	ID              string
	CandidateID     string
	Condition       Condition
	Threshold       decimal.Decimal
	Active          bool
	LastTriggeredAt *time.Time
	TriggeredPrice  decimal.Decimal
}

// AddAlert registers a threshold watch and returns its id.
func (f *Feed) AddAlert(candidateID string, condition Condition, threshold decimal.Decimal) string {
	id := uuid.NewString()
	f.mu.Lock()
	f.alerts[id] = &Alert{
		ID:          id,
		CandidateID: candidateID,
		Condition:   condition,
		Threshold:   threshold,
		Active:      true,
	}
	f.alertIDs = append(f.alertIDs, id)
	f.mu.Unlock()
	return id
}

// RemoveAlert deletes an alert. Returns false for unknown ids.
func (f *Feed) RemoveAlert(alertID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[alertID]; !ok {
		return false
	}
	delete(f.alerts, alertID)
	for i, id := range f.alertIDs {
		if id == alertID {
			f.alertIDs = append(f.alertIDs[:i], f.alertIDs[i+1:]...)
			break
		}
	}
	return true
}

// SetAlertActive toggles an alert without removing it.
func (f *Feed) SetAlertActive(alertID string, active bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[alertID]
	if !ok {
		return false
	}
	a.Active = active
	return true
}

// Alerts returns a snapshot of all alerts in registration order.
func (f *Feed) Alerts() []Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Alert, 0, len(f.alertIDs))
	for _, id := range f.alertIDs {
		if a, ok := f.alerts[id]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// evaluateAlertsLocked fires active alerts matching a significant move.
// Callers hold f.mu. A fired alert records its trigger time; refiring within
// the configured cooldown is suppressed.
func (f *Feed) evaluateAlertsLocked(candidateID string, previous, price, changePct decimal.Decimal, now time.Time) []Alert {
	var fired []Alert
	for _, id := range f.alertIDs {
		a, ok := f.alerts[id]
		if !ok || !a.Active || a.CandidateID != candidateID {
			continue
		}
		if a.LastTriggeredAt != nil && f.cfg.AlertCooldown > 0 && now.Sub(*a.LastTriggeredAt) < f.cfg.AlertCooldown {
			continue
		}

		triggered := false
		switch a.Condition {
		case ConditionAbove:
			triggered = price.GreaterThan(a.Threshold)
		case ConditionBelow:
			triggered = price.LessThan(a.Threshold)
		case ConditionPercentChange:
			triggered = changePct.Abs().GreaterThanOrEqual(a.Threshold)
		}
		if !triggered {
			continue
		}

		ts := now
		a.LastTriggeredAt = &ts
		a.TriggeredPrice = price
		fired = append(fired, *a)
	}
	return fired
}
