package governor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakeFunding struct {
	err   error
	calls int
}

func (f *fakeFunding) Fund(ctx context.Context, principalID string, amount decimal.Decimal) error {
	f.calls++
	return f.err
}

type failingStore struct {
	inserts int
	updates int
}

func (f *failingStore) InsertTransaction(ctx context.Context, tx Transaction) error {
	f.inserts++
	return errors.New("db unavailable")
}

func (f *failingStore) UpdateTransactionStatus(ctx context.Context, id string, status Status, reason string, settledAt time.Time) error {
	f.updates++
	return errors.New("db unavailable")
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func newTestGovernor(opts Options) *Governor {
	return New(opts, zerolog.Nop())
}

func registerDefault(g *Governor, balance float64, limits Limits) {
	g.Register("agent-1", dec(balance), limits, []string{"api.example.com"}, TopUpPolicy{})
}

func TestAuthorizeUnknownPrincipal(t *testing.T) {
	g := newTestGovernor(Options{})

	_, err := g.Authorize(context.Background(), "ghost", dec(1), "api.example.com", "inference")
	if !errors.Is(err, ErrUnknownPrincipal) {
		t.Fatalf("expected ErrUnknownPrincipal, got %v", err)
	}
}

func TestAuthorizeTransactionLimitBoundary(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 100, Limits{MaxPerTransaction: dec(2), MaxPerWindow: dec(100)})

	// Exactly at the limit passes.
	decision, err := g.Authorize(context.Background(), "agent-1", dec(2), "api.example.com", "inference")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !decision.Authorized {
		t.Fatalf("amount equal to the limit should authorize, got %s: %s", decision.Reason, decision.Detail)
	}

	// The smallest step above is rejected.
	decision, err = g.Authorize(context.Background(), "agent-1", dec(2.000001), "api.example.com", "inference")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Authorized || decision.Reason != ReasonTransactionLimitExceeded {
		t.Fatalf("expected TransactionLimitExceeded, got %+v", decision)
	}
}

func TestAuthorizePayeeAllowList(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 100, Limits{MaxPerTransaction: dec(10), MaxPerWindow: dec(100)})

	decision, err := g.Authorize(context.Background(), "agent-1", dec(1), "rogue.example.com", "inference")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Authorized || decision.Reason != ReasonPayeeNotAllowed {
		t.Fatalf("expected PayeeNotAllowed, got %+v", decision)
	}

	if err := g.AllowPayee("agent-1", "rogue.example.com"); err != nil {
		t.Fatalf("allow payee: %v", err)
	}
	decision, _ = g.Authorize(context.Background(), "agent-1", dec(1), "rogue.example.com", "inference")
	if !decision.Authorized {
		t.Fatalf("payee should be allowed after AllowPayee, got %+v", decision)
	}

	if err := g.DisallowPayee("agent-1", "rogue.example.com"); err != nil {
		t.Fatalf("disallow payee: %v", err)
	}
	decision, _ = g.Authorize(context.Background(), "agent-1", dec(1), "rogue.example.com", "inference")
	if decision.Authorized {
		t.Fatal("payee should be rejected after DisallowPayee")
	}
}

func TestAuthorizePausedPrincipal(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 100, Limits{MaxPerTransaction: dec(10), MaxPerWindow: dec(100)})

	if err := g.Pause("agent-1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	decision, _ := g.Authorize(context.Background(), "agent-1", dec(1), "api.example.com", "inference")
	if decision.Authorized || decision.Reason != ReasonPaused {
		t.Fatalf("expected Paused rejection, got %+v", decision)
	}

	if err := g.Unpause("agent-1"); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	decision, _ = g.Authorize(context.Background(), "agent-1", dec(1), "api.example.com", "inference")
	if !decision.Authorized {
		t.Fatalf("unpaused principal should authorize, got %+v", decision)
	}
}

func TestAuthorizeWindowLimit(t *testing.T) {
	g := newTestGovernor(Options{})
	// Ample balance so the window cap is the binding constraint.
	registerDefault(g, 1000, Limits{MaxPerTransaction: dec(2), MaxPerWindow: dec(5)})

	for i := 0; i < 2; i++ {
		decision, _ := g.Authorize(context.Background(), "agent-1", dec(2), "api.example.com", "inference")
		if !decision.Authorized {
			t.Fatalf("authorization %d should pass, got %+v", i+1, decision)
		}
	}

	decision, _ := g.Authorize(context.Background(), "agent-1", dec(2), "api.example.com", "inference")
	if decision.Authorized || decision.Reason != ReasonWindowLimitExceeded {
		t.Fatalf("expected WindowLimitExceeded at spend 4+2 > 5, got %+v", decision)
	}

	// The remaining headroom of 1 is still spendable.
	decision, _ = g.Authorize(context.Background(), "agent-1", dec(1), "api.example.com", "inference")
	if !decision.Authorized {
		t.Fatalf("spend up to the cap should authorize, got %+v", decision)
	}
}

func TestAuthorizeInsufficientFunds(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 3, Limits{MaxPerTransaction: dec(2), MaxPerWindow: dec(100)})

	decision, _ := g.Authorize(context.Background(), "agent-1", dec(2), "api.example.com", "inference")
	if !decision.Authorized {
		t.Fatalf("first authorization should pass, got %+v", decision)
	}

	decision, _ = g.Authorize(context.Background(), "agent-1", dec(2), "api.example.com", "inference")
	if decision.Authorized || decision.Reason != ReasonInsufficientFunds {
		t.Fatalf("expected InsufficientFunds with balance 1, got %+v", decision)
	}
}

func TestSettleSuccessKeepsReservation(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 10, Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(100)})

	decision, _ := g.Authorize(context.Background(), "agent-1", dec(4), "api.example.com", "inference")
	if err := g.Settle(context.Background(), decision.TransactionID, true, "tx confirmed"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	snap, _ := g.Snapshot("agent-1")
	if !snap.Balance.Equal(dec(6)) {
		t.Fatalf("settled balance should stay at 6, got %s", snap.Balance)
	}
	if !snap.WindowSpend.Equal(dec(4)) {
		t.Fatalf("settled window spend should stay at 4, got %s", snap.WindowSpend)
	}
	if snap.Transactions[0].Status != StatusSettled {
		t.Fatalf("transaction should be settled, got %s", snap.Transactions[0].Status)
	}
	if snap.Transactions[0].SettledAt == nil {
		t.Fatal("settlement time should be recorded")
	}
}

func TestSettleFailureCompensates(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 10, Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(100)})

	decision, _ := g.Authorize(context.Background(), "agent-1", dec(4), "api.example.com", "inference")
	if err := g.Settle(context.Background(), decision.TransactionID, false, "rpc timeout"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	snap, _ := g.Snapshot("agent-1")
	if !snap.Balance.Equal(dec(10)) {
		t.Fatalf("failed settlement should restore the balance exactly, got %s", snap.Balance)
	}
	if !snap.WindowSpend.IsZero() {
		t.Fatalf("failed settlement should release the window spend, got %s", snap.WindowSpend)
	}
	if snap.Transactions[0].Status != StatusFailed {
		t.Fatalf("transaction should be failed, got %s", snap.Transactions[0].Status)
	}
	if snap.Transactions[0].Reason != "rpc timeout" {
		t.Fatalf("failure detail should be recorded, got %q", snap.Transactions[0].Reason)
	}
}

func TestSettleUnknownAndDouble(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 10, Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(100)})

	if err := g.Settle(context.Background(), "no-such-tx", true, ""); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}

	decision, _ := g.Authorize(context.Background(), "agent-1", dec(1), "api.example.com", "inference")
	if err := g.Settle(context.Background(), decision.TransactionID, true, ""); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if err := g.Settle(context.Background(), decision.TransactionID, true, ""); err == nil {
		t.Fatal("second settle of the same transaction must fail")
	}
}

func TestWindowRollsAfterDuration(t *testing.T) {
	g := newTestGovernor(Options{WindowDuration: time.Hour})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g.clock = func() time.Time { return now }

	registerDefault(g, 1000, Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(5)})

	decision, _ := g.Authorize(context.Background(), "agent-1", dec(5), "api.example.com", "inference")
	if !decision.Authorized {
		t.Fatalf("first window spend should pass, got %+v", decision)
	}

	decision, _ = g.Authorize(context.Background(), "agent-1", dec(1), "api.example.com", "inference")
	if decision.Reason != ReasonWindowLimitExceeded {
		t.Fatalf("window should be exhausted, got %+v", decision)
	}

	// Crossing the window boundary resets the accumulator.
	now = now.Add(time.Hour + time.Minute)
	decision, _ = g.Authorize(context.Background(), "agent-1", dec(5), "api.example.com", "inference")
	if !decision.Authorized {
		t.Fatalf("new window should allow fresh spend, got %+v", decision)
	}

	snap, _ := g.Snapshot("agent-1")
	if !snap.WindowStart.Equal(now.Truncate(time.Hour)) {
		t.Fatalf("window start should advance to the new boundary, got %s", snap.WindowStart)
	}
}

func TestAutoTopUpCreditsBalance(t *testing.T) {
	funding := &fakeFunding{}
	g := newTestGovernor(Options{Funding: funding})
	g.Register("agent-1", dec(1), Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(100)},
		[]string{"api.example.com"},
		TopUpPolicy{Enabled: true, Threshold: dec(2), Amount: dec(10)})

	decision, _ := g.Authorize(context.Background(), "agent-1", dec(3), "api.example.com", "inference")
	if !decision.Authorized {
		t.Fatalf("top-up should cover the shortfall, got %+v", decision)
	}
	if funding.calls != 1 {
		t.Fatalf("funding source should be called once, got %d", funding.calls)
	}

	snap, _ := g.Snapshot("agent-1")
	if !snap.Balance.Equal(dec(8)) { // 1 + 10 - 3
		t.Fatalf("expected balance 8 after top-up and spend, got %s", snap.Balance)
	}
	if !snap.WindowBudget.Equal(dec(110)) {
		t.Fatalf("top-up should extend the window budget, got %s", snap.WindowBudget)
	}
}

func TestAutoTopUpFailureRejectsInsufficientFunds(t *testing.T) {
	funding := &fakeFunding{err: errors.New("funding offline")}
	g := newTestGovernor(Options{Funding: funding})
	g.Register("agent-1", dec(1), Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(100)},
		[]string{"api.example.com"},
		TopUpPolicy{Enabled: true, Threshold: dec(2), Amount: dec(10)})

	decision, _ := g.Authorize(context.Background(), "agent-1", dec(3), "api.example.com", "inference")
	if decision.Authorized || decision.Reason != ReasonInsufficientFunds {
		t.Fatalf("failed top-up should reject on funds, got %+v", decision)
	}

	snap, _ := g.Snapshot("agent-1")
	if !snap.Balance.Equal(dec(1)) {
		t.Fatalf("failed top-up must not mutate the balance, got %s", snap.Balance)
	}
}

func TestUpdateLimitsAdjustsWindowBudget(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 1000, Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(10)})

	g.Authorize(context.Background(), "agent-1", dec(5), "api.example.com", "inference")

	if err := g.UpdateLimits("agent-1", Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(20)}); err != nil {
		t.Fatalf("update limits: %v", err)
	}

	snap, _ := g.Snapshot("agent-1")
	if !snap.WindowBudget.Equal(dec(20)) {
		t.Fatalf("window budget should grow by the cap delta, got %s", snap.WindowBudget)
	}
	if !snap.WindowSpend.Equal(dec(5)) {
		t.Fatalf("prior reservations stand, got %s", snap.WindowSpend)
	}
	if !snap.WindowRemaining().Equal(dec(15)) {
		t.Fatalf("expected remaining 15, got %s", snap.WindowRemaining())
	}
}

func TestCreditAddsFunds(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 1, Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(100)})

	if err := g.Credit("agent-1", dec(9)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	decision, _ := g.Authorize(context.Background(), "agent-1", dec(5), "api.example.com", "inference")
	if !decision.Authorized {
		t.Fatalf("credited balance should cover the amount, got %+v", decision)
	}
}

func TestRejectionsAppearInLedger(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 100, Limits{MaxPerTransaction: dec(1), MaxPerWindow: dec(100)})

	g.Authorize(context.Background(), "agent-1", dec(5), "api.example.com", "inference")

	snap, _ := g.Snapshot("agent-1")
	if len(snap.Transactions) != 1 {
		t.Fatalf("rejection should be recorded, got %d entries", len(snap.Transactions))
	}
	if snap.Transactions[0].Status != StatusRejected {
		t.Fatalf("entry should be rejected, got %s", snap.Transactions[0].Status)
	}
	if snap.Transactions[0].Reason != string(ReasonTransactionLimitExceeded) {
		t.Fatalf("reason should be recorded, got %q", snap.Transactions[0].Reason)
	}
}

func TestPersistenceFailureDoesNotBlockAuthorization(t *testing.T) {
	store := &failingStore{}
	g := newTestGovernor(Options{Store: store})
	registerDefault(g, 100, Limits{MaxPerTransaction: dec(5), MaxPerWindow: dec(100)})

	decision, err := g.Authorize(context.Background(), "agent-1", dec(1), "api.example.com", "inference")
	if err != nil || !decision.Authorized {
		t.Fatalf("store failure must stay best-effort: %v %+v", err, decision)
	}
	if err := g.Settle(context.Background(), decision.TransactionID, true, ""); err != nil {
		t.Fatalf("settle despite store failure: %v", err)
	}
	if store.inserts == 0 || store.updates == 0 {
		t.Fatal("store should have been attempted")
	}
}

func TestConcurrentAuthorizationsSerializePerPrincipal(t *testing.T) {
	g := newTestGovernor(Options{})
	registerDefault(g, 1000, Limits{MaxPerTransaction: dec(1), MaxPerWindow: dec(1000)})
	g.Register("agent-2", dec(1000), Limits{MaxPerTransaction: dec(1), MaxPerWindow: dec(1000)},
		[]string{"api.example.com"}, TopUpPolicy{})

	const perPrincipal = 50
	var wg sync.WaitGroup
	for _, id := range []string{"agent-1", "agent-2"} {
		for i := 0; i < perPrincipal; i++ {
			wg.Add(1)
			go func(principal string) {
				defer wg.Done()
				g.Authorize(context.Background(), principal, dec(1), "api.example.com", "inference")
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"agent-1", "agent-2"} {
		snap, err := g.Snapshot(id)
		if err != nil {
			t.Fatalf("snapshot %s: %v", id, err)
		}
		if !snap.WindowSpend.Equal(dec(perPrincipal)) {
			t.Fatalf("%s window spend should be %d, got %s", id, perPrincipal, snap.WindowSpend)
		}
		if !snap.Balance.Equal(dec(1000 - perPrincipal)) {
			t.Fatalf("%s balance should be %d, got %s", id, 1000-perPrincipal, snap.Balance)
		}
	}
}
