// Package governor authorizes payments from autonomous principals before an
// external adapter moves funds, and keeps the per-principal spend ledger.
package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrUnknownPrincipal is returned for operations on unregistered principals.
var ErrUnknownPrincipal = errors.New("governor: unknown principal")

// ErrUnknownTransaction is returned when settling an id never authorized.
var ErrUnknownTransaction = errors.New("governor: unknown transaction")

// Status tracks a transaction through its lifecycle.
type Status string

const (
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
	StatusSettled    Status = "settled"
	StatusFailed     Status = "failed"
)

// RejectReason names the terminal rejection outcomes. These are ordinary
// returned values, never errors, and the core never retries them.
type RejectReason string

const (
	ReasonPaused                   RejectReason = "Paused"
	ReasonPayeeNotAllowed          RejectReason = "PayeeNotAllowed"
	ReasonTransactionLimitExceeded RejectReason = "TransactionLimitExceeded"
	ReasonWindowLimitExceeded      RejectReason = "WindowLimitExceeded"
	ReasonInsufficientFunds        RejectReason = "InsufficientFunds"
)

// Limits bound a principal's spending.
type Limits struct {
	MaxPerTransaction decimal.Decimal
	MaxPerWindow      decimal.Decimal
}

// TopUpPolicy configures auto-replenishment. A successful top-up credits the
// balance and extends the current window's budget by the funded amount.
type TopUpPolicy struct {
	Enabled   bool
	Threshold decimal.Decimal
	Amount    decimal.Decimal
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID          string
	PrincipalID string
	Amount      decimal.Decimal
	Payee       string
	ServiceType string
	Status      Status
	Reason      string
	CreatedAt   time.Time
	SettledAt   *time.Time
}

// Decision is the outcome of an authorization request.
type Decision struct {
	Authorized    bool
	TransactionID string
	Reason        RejectReason
	Detail        string
}

// FundingSource replenishes a principal's balance from external funds.
// Implementations own their constraints; an error means top-up is unavailable.
type FundingSource interface {
	Fund(ctx context.Context, principalID string, amount decimal.Decimal) error
}

// TransactionStore persists ledger entries. Persistence is best-effort: a
// store failure is logged, never surfaced to the authorization path.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx Transaction) error
	UpdateTransactionStatus(ctx context.Context, id string, status Status, reason string, settledAt time.Time) error
}

// Snapshot is a read-only view of a principal's ledger.
type Snapshot struct {
	PrincipalID  string
	Balance      decimal.Decimal
	WindowStart  time.Time
	WindowSpend  decimal.Decimal
	WindowBudget decimal.Decimal
	Limits       Limits
	Paused       bool
	Payees       []string
	Transactions []Transaction
}

// principal holds one ledger. All mutation happens under its own mutex, so
// authorizations for the same principal serialize while distinct principals
// proceed concurrently.
type principal struct {
	mu           sync.Mutex
	id           string
	balance      decimal.Decimal
	limits       Limits
	payees       map[string]bool
	payeeOrder   []string
	topUp        TopUpPolicy
	paused       bool
	windowStart  time.Time
	windowSpend  decimal.Decimal
	windowBudget decimal.Decimal
	transactions []*Transaction
}

// Governor gates spending for a set of principals.
type Governor struct {
	mu         sync.RWMutex
	principals map[string]*principal
	byTx       map[string]*principal
	window     time.Duration
	clock      func() time.Time
	funding    FundingSource
	store      TransactionStore
	logger     zerolog.Logger
}

// Options configure a Governor.
type Options struct {
	WindowDuration time.Duration
	Funding        FundingSource
	Store          TransactionStore
}

// New constructs a governor. The window defaults to 24h in UTC.
func New(opts Options, logger zerolog.Logger) *Governor {
	window := opts.WindowDuration
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Governor{
		principals: make(map[string]*principal),
		byTx:       make(map[string]*principal),
		window:     window,
		clock:      func() time.Time { return time.Now().UTC() },
		funding:    opts.Funding,
		store:      opts.Store,
		logger:     logger.With().Str("component", "governor").Logger(),
	}
}

// Register creates a principal's ledger. Registering an existing id replaces
// its configuration but keeps accumulated state out of scope: it is a setup
// operation, not an administrative mutation.
func (g *Governor) Register(id string, balance decimal.Decimal, limits Limits, payees []string, topUp TopUpPolicy) {
	p := &principal{
		id:           id,
		balance:      balance,
		limits:       limits,
		payees:       make(map[string]bool, len(payees)),
		topUp:        topUp,
		windowStart:  g.clock().Truncate(g.window),
		windowSpend:  decimal.Zero,
		windowBudget: limits.MaxPerWindow,
	}
	for _, payee := range payees {
		if !p.payees[payee] {
			p.payees[payee] = true
			p.payeeOrder = append(p.payeeOrder, payee)
		}
	}

	g.mu.Lock()
	g.principals[id] = p
	g.mu.Unlock()
}

func (g *Governor) get(id string) (*principal, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.principals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPrincipal, id)
	}
	return p, nil
}

// Authorize runs the gating pipeline and, when every check passes, reserves
// the amount and appends an authorized transaction. Rejections are Decision
// values; the error return is for unknown principals only.
func (g *Governor) Authorize(ctx context.Context, principalID string, amount decimal.Decimal, payee, serviceType string) (Decision, error) {
	p, err := g.get(principalID)
	if err != nil {
		return Decision{}, err
	}

	now := g.clock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return g.reject(ctx, p, amount, payee, serviceType, now, ReasonPaused, "principal is paused"), nil
	}
	if !p.payees[payee] {
		return g.reject(ctx, p, amount, payee, serviceType, now, ReasonPayeeNotAllowed, fmt.Sprintf("payee %s not in allow-list", payee)), nil
	}
	if amount.GreaterThan(p.limits.MaxPerTransaction) {
		detail := fmt.Sprintf("amount %s exceeds per-transaction limit %s", amount, p.limits.MaxPerTransaction)
		return g.reject(ctx, p, amount, payee, serviceType, now, ReasonTransactionLimitExceeded, detail), nil
	}

	g.rollWindowLocked(p, now)

	toppedUp := false
	if g.needsTopUpLocked(p, amount) {
		toppedUp = g.tryTopUpLocked(ctx, p)
	}

	if p.windowSpend.Add(amount).GreaterThan(p.windowBudget) {
		detail := fmt.Sprintf("window spend %s + %s exceeds window budget %s", p.windowSpend, amount, p.windowBudget)
		return g.reject(ctx, p, amount, payee, serviceType, now, ReasonWindowLimitExceeded, detail), nil
	}
	if p.balance.LessThan(amount) {
		detail := fmt.Sprintf("balance %s below amount %s", p.balance, amount)
		if toppedUp {
			detail += " after top-up"
		}
		return g.reject(ctx, p, amount, payee, serviceType, now, ReasonInsufficientFunds, detail), nil
	}

	p.balance = p.balance.Sub(amount)
	p.windowSpend = p.windowSpend.Add(amount)

	tx := &Transaction{
		ID:          uuid.NewString(),
		PrincipalID: p.id,
		Amount:      amount,
		Payee:       payee,
		ServiceType: serviceType,
		Status:      StatusAuthorized,
		CreatedAt:   now,
	}
	p.transactions = append(p.transactions, tx)

	g.mu.Lock()
	g.byTx[tx.ID] = p
	g.mu.Unlock()

	g.persist(ctx, *tx)
	g.logger.Info().
		Str("principal", p.id).
		Str("tx", tx.ID).
		Str("amount", amount.String()).
		Str("payee", payee).
		Msg("payment authorized")

	return Decision{Authorized: true, TransactionID: tx.ID}, nil
}

// Settle records the external adapter's outcome for an authorized
// transaction. A failed settlement compensates: the reserved amount returns
// to the balance and the window spend is decremented, so a payment that never
// moved funds never leaves the principal short.
func (g *Governor) Settle(ctx context.Context, transactionID string, success bool, detail string) error {
	g.mu.RLock()
	p, ok := g.byTx[transactionID]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, transactionID)
	}

	now := g.clock()

	p.mu.Lock()
	defer p.mu.Unlock()

	tx := p.findTransactionLocked(transactionID)
	if tx == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, transactionID)
	}
	if tx.Status != StatusAuthorized {
		return fmt.Errorf("transaction %s already settled with status %s", transactionID, tx.Status)
	}

	tx.SettledAt = &now
	if success {
		tx.Status = StatusSettled
	} else {
		tx.Status = StatusFailed
		tx.Reason = detail
		p.balance = p.balance.Add(tx.Amount)
		if !tx.CreatedAt.Before(p.windowStart) {
			p.windowSpend = p.windowSpend.Sub(tx.Amount)
			if p.windowSpend.IsNegative() {
				p.windowSpend = decimal.Zero
			}
		}
	}

	if g.store != nil {
		if err := g.store.UpdateTransactionStatus(ctx, tx.ID, tx.Status, tx.Reason, now); err != nil {
			g.logger.Error().Err(err).Str("tx", tx.ID).Msg("failed to persist settlement")
		}
	}

	g.logger.Info().
		Str("principal", p.id).
		Str("tx", tx.ID).
		Str("status", string(tx.Status)).
		Msg("payment settled")
	return nil
}

// rollWindowLocked resets the spend accumulator when the clock crosses into a
// new fixed-duration UTC window. The reset and the boundary move together.
func (g *Governor) rollWindowLocked(p *principal, now time.Time) {
	if now.Sub(p.windowStart) < g.window {
		return
	}
	p.windowStart = now.Truncate(g.window)
	p.windowSpend = decimal.Zero
	p.windowBudget = p.limits.MaxPerWindow
}

// needsTopUpLocked reports whether the pending amount would breach the window
// budget or the balance, or would leave the balance under the refill threshold.
func (g *Governor) needsTopUpLocked(p *principal, amount decimal.Decimal) bool {
	if !p.topUp.Enabled {
		return false
	}
	if p.windowSpend.Add(amount).GreaterThan(p.windowBudget) {
		return true
	}
	if p.balance.LessThan(amount) {
		return true
	}
	return p.balance.Sub(amount).LessThan(p.topUp.Threshold)
}

// tryTopUpLocked funds the principal once. Funding failure is not an
// authorization failure: the pipeline continues and rejects on its own terms.
func (g *Governor) tryTopUpLocked(ctx context.Context, p *principal) bool {
	if g.funding == nil || p.topUp.Amount.LessThanOrEqual(decimal.Zero) {
		return false
	}
	if err := g.funding.Fund(ctx, p.id, p.topUp.Amount); err != nil {
		g.logger.Warn().Err(err).Str("principal", p.id).Msg("auto top-up unavailable")
		return false
	}
	p.balance = p.balance.Add(p.topUp.Amount)
	p.windowBudget = p.windowBudget.Add(p.topUp.Amount)
	g.logger.Info().Str("principal", p.id).Str("amount", p.topUp.Amount.String()).Msg("auto top-up applied")
	return true
}

// reject appends a rejected transaction for auditing and returns the decision.
func (g *Governor) reject(ctx context.Context, p *principal, amount decimal.Decimal, payee, serviceType string, now time.Time, reason RejectReason, detail string) Decision {
	tx := &Transaction{
		ID:          uuid.NewString(),
		PrincipalID: p.id,
		Amount:      amount,
		Payee:       payee,
		ServiceType: serviceType,
		Status:      StatusRejected,
		Reason:      string(reason),
		CreatedAt:   now,
	}
	p.transactions = append(p.transactions, tx)

	g.mu.Lock()
	g.byTx[tx.ID] = p
	g.mu.Unlock()

	g.persist(ctx, *tx)
	g.logger.Info().
		Str("principal", p.id).
		Str("reason", string(reason)).
		Str("amount", amount.String()).
		Msg("payment rejected")

	return Decision{TransactionID: tx.ID, Reason: reason, Detail: detail}
}

func (g *Governor) persist(ctx context.Context, tx Transaction) {
	if g.store == nil {
		return
	}
	if err := g.store.InsertTransaction(ctx, tx); err != nil {
		g.logger.Error().Err(err).Str("tx", tx.ID).Msg("failed to persist transaction")
	}
}

func (p *principal) findTransactionLocked(id string) *Transaction {
	for _, tx := range p.transactions {
		if tx.ID == id {
			return tx
		}
	}
	return nil
}
