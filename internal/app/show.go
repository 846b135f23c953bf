package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"agent-cost-governor/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	CandidateID  string
	Limit        int
	Transactions bool
}

// Show prints recent price samples, or recent ledger entries with
// --transactions.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Transactions {
		return a.showTransactions(ctx, store, opts.Limit)
	}
	return a.showSamples(ctx, store, opts)
}

func (a *App) showSamples(ctx context.Context, store *storage.Store, opts ShowOptions) error {
	if opts.CandidateID == "" {
		return errors.New("--candidate is required when showing samples")
	}

	samples, err := store.ListRecentSamples(ctx, opts.CandidateID, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Observed (UTC)\tCandidate\tPrice")
	for _, sample := range samples {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			sample.ObservedAt.UTC().Format(time.RFC3339),
			sample.CandidateID,
			sample.Price.String(),
		)
	}
	writer.Flush()
	return nil
}

func (a *App) showTransactions(ctx context.Context, store *storage.Store, limit int) error {
	txs, err := store.ListRecentTransactions(ctx, limit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(os.Stdout, "no transactions found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tID\tPrincipal\tAmount\tPayee\tStatus\tReason")
	for _, tx := range txs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.CreatedAt.UTC().Format(time.RFC3339),
			tx.ID,
			tx.PrincipalID,
			tx.Amount.StringFixed(4),
			tx.Payee,
			tx.Status,
			sanitizeInline(tx.Reason),
		)
	}
	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
