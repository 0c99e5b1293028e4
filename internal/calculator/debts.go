package calculator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/tripsplit/internal/currency"
	"github.com/mmynk/tripsplit/internal/models"
)

// Epsilon is the smallest amount, in home-currency units, treated as owed.
const Epsilon = 0.01

// defaultConcurrency bounds in-flight conversions when Options leaves it unset.
const defaultConcurrency = 4

// SkipReason explains why an expense was left out of a pass.
type SkipReason string

const (
	SkipUnknownPayer    SkipReason = "unknown_payer"
	SkipConversion      SkipReason = "conversion_failed"
	SkipInvalidAmount   SkipReason = "invalid_amount"
	SkipUnknownSplitter SkipReason = "unknown_split_method"
)

// SkippedExpense records an expense excluded from balances and debts.
type SkippedExpense struct {
	ExpenseID string
	Reason    SkipReason
	Err       error
}

// Input is an immutable snapshot of everything one pass needs.
type Input struct {
	Expenses     []models.Expense
	Participants []models.Participant
	HomeCurrency string

	// Settled holds the IDs of expenses whose debts are already in history.
	Settled map[string]bool
}

// Options tunes a calculation pass.
type Options struct {
	// Concurrency is the maximum number of conversions in flight.
	Concurrency int
}

// Result is the output of a pass. Debts are per expense and not yet simplified.
type Result struct {
	Debts    []models.Debt
	Balances map[string]models.Balance
	Skipped  []SkippedExpense
}

// pending is an expense that passed payer resolution and awaits conversion.
type pending struct {
	expense models.Expense
	payer   string
	amount  float64
	convErr error
}

// Calculate turns a snapshot of expenses into per-expense debts and
// per-participant balances in the home currency.
//
// Algorithm:
//   - every participant starts at zero
//   - settled expenses are ignored
//   - an expense whose payer is not a tripmate is skipped
//   - amounts are converted to the home currency; a failed conversion skips
//     only that expense
//   - the payer is credited the full amount and every person sharing the
//     expense is charged one share; a share charged to someone other than the
//     payer becomes a Debt to the payer
//
// Per-expense problems never fail the pass. The only error returned is the
// context's, when the pass was cancelled.
func Calculate(ctx context.Context, conv currency.Converter, in Input, opts Options) (Result, error) {
	home := models.NormalizeCurrency(in.HomeCurrency)
	dir := newDirectory(in.Participants)

	balances := make(map[string]*models.Balance, len(in.Participants))
	for _, p := range in.Participants {
		balances[p.Key()] = &models.Balance{}
	}

	var result Result
	var jobs []*pending
	for _, e := range in.Expenses {
		if in.Settled[e.ID] {
			continue
		}
		if e.Amount <= 0 {
			result.Skipped = append(result.Skipped, SkippedExpense{
				ExpenseID: e.ID,
				Reason:    SkipInvalidAmount,
				Err:       fmt.Errorf("amount %v is not positive", e.Amount),
			})
			continue
		}
		payer, ok := dir.resolve(e.PaidBy)
		if !ok {
			result.Skipped = append(result.Skipped, SkippedExpense{
				ExpenseID: e.ID,
				Reason:    SkipUnknownPayer,
				Err:       fmt.Errorf("payer %q is not a tripmate", e.PaidBy),
			})
			continue
		}
		jobs = append(jobs, &pending{expense: e, payer: payer})
	}

	convertAll(ctx, conv, jobs, home, opts.Concurrency)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	for _, job := range jobs {
		if job.convErr != nil {
			result.Skipped = append(result.Skipped, SkippedExpense{
				ExpenseID: job.expense.ID,
				Reason:    SkipConversion,
				Err:       job.convErr,
			})
			continue
		}
		debts, err := apply(balances, dir, job, home)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedExpense{
				ExpenseID: job.expense.ID,
				Reason:    SkipUnknownSplitter,
				Err:       err,
			})
			continue
		}
		result.Debts = append(result.Debts, debts...)
	}

	result.Balances = make(map[string]models.Balance, len(balances))
	for key, bal := range balances {
		result.Balances[key] = *bal
	}
	return result, nil
}

// convertAll converts every job's amount into home, at most limit at a time.
// Failures are stored on the job rather than aborting the group.
func convertAll(ctx context.Context, conv currency.Converter, jobs []*pending, home string, limit int) {
	if limit <= 0 {
		limit = defaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, job := range jobs {
		g.Go(func() error {
			job.amount, job.convErr = currency.Convert(ctx, conv, job.expense.Amount, job.expense.Currency, home)
			return nil
		})
	}
	_ = g.Wait()
}

// apply accumulates one converted expense into balances and returns its debts.
func apply(balances map[string]*models.Balance, dir *directory, job *pending, home string) ([]models.Debt, error) {
	e := job.expense
	var sharers []string

	switch e.SplitMethod {
	case models.SplitNone, "":
		// no sharers
	case models.SplitEveryone:
		sharers = dir.keys
	case models.SplitIndividuals:
		// Empty selection falls back to no split.
		sharers = dir.resolveAll(e.SplitWith)
	default:
		return nil, fmt.Errorf("unknown split method %q", e.SplitMethod)
	}

	credit(balances, job.payer, job.amount)
	if len(sharers) == 0 {
		return nil, nil
	}

	share := job.amount / float64(len(sharers))

	var debts []models.Debt
	for _, key := range sharers {
		charge(balances, key, share)
		if key == job.payer {
			continue
		}
		debts = append(debts, models.Debt{
			FromUser:         key,
			ToUser:           job.payer,
			Amount:           share,
			Currency:         home,
			Description:      e.Description,
			SourceExpenseID:  e.ID,
			SourceExpenseIDs: []string{e.ID},
		})
	}
	return debts, nil
}

// credit records that key paid amount.
func credit(balances map[string]*models.Balance, key string, amount float64) {
	b := balanceFor(balances, key)
	b.Paid += amount
	b.Balance += amount
}

// charge records that key is responsible for share.
func charge(balances map[string]*models.Balance, key string, share float64) {
	b := balanceFor(balances, key)
	b.Owed += share
	b.Balance -= share
}

// balanceFor returns the balance for key, creating it when the key was not
// part of the initial tripmate snapshot.
func balanceFor(balances map[string]*models.Balance, key string) *models.Balance {
	b, ok := balances[key]
	if !ok {
		b = &models.Balance{}
		balances[key] = b
	}
	return b
}

// directory resolves emails to participant keys.
type directory struct {
	byEmail map[string]string
	keys    []string
}

func newDirectory(participants []models.Participant) *directory {
	d := &directory{byEmail: make(map[string]string, len(participants))}
	for _, p := range participants {
		d.keys = append(d.keys, p.Key())
		if p.Email != "" {
			d.byEmail[models.NormalizeEmail(p.Email)] = p.Key()
		}
	}
	return d
}

// resolve returns the participant key for a tripmate email.
func (d *directory) resolve(email string) (string, bool) {
	key, ok := d.byEmail[models.NormalizeEmail(email)]
	return key, ok
}

// resolveAll maps split targets to keys, dropping blanks and duplicates.
// Emails outside the directory are kept as their own key.
func (d *directory) resolveAll(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	keys := make([]string, 0, len(emails))
	for _, email := range emails {
		email = models.NormalizeEmail(email)
		if email == "" {
			continue
		}
		key, ok := d.byEmail[email]
		if !ok {
			key = email
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}
