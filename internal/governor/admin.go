package governor

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pause stops all further authorizations for a principal until Unpause.
// Pausing is never automatic and never reverts on its own.
func (g *Governor) Pause(principalID string) error {
	p, err := g.get(principalID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	g.logger.Warn().Str("principal", principalID).Msg("principal paused")
	return nil
}

// Unpause re-enables authorizations.
func (g *Governor) Unpause(principalID string) error {
	p, err := g.get(principalID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	g.logger.Info().Str("principal", principalID).Msg("principal unpaused")
	return nil
}

// UpdateLimits replaces a principal's limits. The new values apply to
// subsequent authorizations only; the current window budget shrinks or grows
// with the window cap but prior reservations stand.
func (g *Governor) UpdateLimits(principalID string, limits Limits) error {
	p, err := g.get(principalID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	delta := limits.MaxPerWindow.Sub(p.limits.MaxPerWindow)
	p.limits = limits
	p.windowBudget = p.windowBudget.Add(delta)
	p.mu.Unlock()
	return nil
}

// AllowPayee adds a destination to the allow-list.
func (g *Governor) AllowPayee(principalID, payee string) error {
	p, err := g.get(principalID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if !p.payees[payee] {
		p.payees[payee] = true
		p.payeeOrder = append(p.payeeOrder, payee)
	}
	p.mu.Unlock()
	return nil
}

// DisallowPayee removes a destination from the allow-list.
func (g *Governor) DisallowPayee(principalID, payee string) error {
	p, err := g.get(principalID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.payees[payee] {
		delete(p.payees, payee)
		for i, existing := range p.payeeOrder {
			if existing == payee {
				p.payeeOrder = append(p.payeeOrder[:i], p.payeeOrder[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()
	return nil
}

// Credit adds funds to a principal's balance outside of the auto top-up path.
func (g *Governor) Credit(principalID string, amount decimal.Decimal) error {
	p, err := g.get(principalID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.balance = p.balance.Add(amount)
	p.mu.Unlock()
	return nil
}

// Snapshot returns a copy of a principal's ledger state.
func (g *Governor) Snapshot(principalID string) (Snapshot, error) {
	p, err := g.get(principalID)
	if err != nil {
		return Snapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	txs := make([]Transaction, 0, len(p.transactions))
	for _, tx := range p.transactions {
		cp := *tx
		if tx.SettledAt != nil {
			ts := *tx.SettledAt
			cp.SettledAt = &ts
		}
		txs = append(txs, cp)
	}

	return Snapshot{
		PrincipalID:  p.id,
		Balance:      p.balance,
		WindowStart:  p.windowStart,
		WindowSpend:  p.windowSpend,
		WindowBudget: p.windowBudget,
		Limits:       p.limits,
		Paused:       p.paused,
		Payees:       append([]string{}, p.payeeOrder...),
		Transactions: txs,
	}, nil
}

// WindowRemaining reports how much of the window budget is still spendable.
func (s Snapshot) WindowRemaining() decimal.Decimal {
	return s.WindowBudget.Sub(s.WindowSpend)
}

// WindowEnd is the instant the current window closes, given its duration.
func (s Snapshot) WindowEnd(window time.Duration) time.Time {
	return s.WindowStart.Add(window)
}
