package app

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// AuthorizeOptions configure a one-shot payment authorization.
type AuthorizeOptions struct {
	PrincipalID string
	Amount      decimal.Decimal
	Payee       string
	ServiceType string
	Execute     bool
}

// Authorize runs a payment through the spend governor and, when requested,
// executes it via the configured adapter and settles the outcome.
func (a *App) Authorize(ctx context.Context, opts AuthorizeOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	gov := a.newGovernor(store)

	decision, err := gov.Authorize(ctx, opts.PrincipalID, opts.Amount, opts.Payee, opts.ServiceType)
	if err != nil {
		return err
	}

	if !decision.Authorized {
		fmt.Fprintf(os.Stdout, "REJECTED (%s): %s\n", decision.Reason, decision.Detail)
		return nil
	}
	fmt.Fprintf(os.Stdout, "AUTHORIZED tx=%s amount=%s payee=%s\n", decision.TransactionID, opts.Amount, opts.Payee)

	if !opts.Execute {
		return nil
	}

	adapter := a.newAdapter()
	outcome, execErr := adapter.Execute(ctx, decision.TransactionID, opts.Amount, opts.Payee)
	if execErr != nil {
		// Adapter failure is terminal for this call; compensate the reservation.
		if settleErr := gov.Settle(ctx, decision.TransactionID, false, execErr.Error()); settleErr != nil {
			a.Logger.Error().Err(settleErr).Str("tx", decision.TransactionID).Msg("failed to settle after adapter error")
		}
		return fmt.Errorf("payment adapter: %w", execErr)
	}

	if err := gov.Settle(ctx, decision.TransactionID, outcome.Success, outcome.Detail); err != nil {
		return err
	}

	if outcome.Success {
		fmt.Fprintf(os.Stdout, "SETTLED hash=%s fee=%s\n", outcome.TxHash, outcome.Fee.String())
	} else {
		fmt.Fprintf(os.Stdout, "FAILED: %s (funds restored)\n", outcome.Detail)
	}

	snapshot, err := gov.Snapshot(opts.PrincipalID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Balance: %s, window spend: %s of %s\n",
		snapshot.Balance.StringFixed(4), snapshot.WindowSpend.StringFixed(4), snapshot.WindowBudget.StringFixed(4))
	return nil
}
