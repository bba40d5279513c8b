// Package engine runs confirmed value-moving operations against a community:
// multi-recipient sends, mints, and burns. Recipients are processed
// sequentially with live progress reporting, and a failure on one recipient
// never stops the rest of the batch.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"

	"communibot/internal/community"
	"communibot/internal/onchain"
	"communibot/internal/progress"
	"communibot/internal/resolve"
	"communibot/internal/store"
)

// Kind is the type of value-moving operation.
type Kind int

const (
	Send Kind = iota
	Mint
	Burn
)

func (k Kind) String() string {
	switch k {
	case Send:
		return "transfer"
	case Mint:
		return "mint"
	case Burn:
		return "burn"
	default:
		return "unknown"
	}
}

// Preposition links an operation to its account in user-facing text: burns
// take from an account, sends and mints go to one.
func (k Kind) Preposition() string {
	if k == Burn {
		return "from"
	}
	return "to"
}

// Executor submits operations to the chain and returns transaction hashes.
type Executor interface {
	Transfer(ctx context.Context, com *community.Community, from, to string, amount *big.Int, message string) (string, error)
	Mint(ctx context.Context, com *community.Community, to string, amount *big.Int, message string) (string, error)
	Burn(ctx context.Context, com *community.Community, from string, amount *big.Int, message string) (string, error)
}

// BalanceReader reads token balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, com *community.Community, account string) (*big.Int, error)
}

// Notifier delivers best-effort direct messages to platform users.
type Notifier interface {
	SendDirectMessage(ctx context.Context, userID, text string) error
}

// OperationLog persists attempted operations.
type OperationLog interface {
	RecordOperation(ctx context.Context, op *store.Operation) (string, error)
}

// Engine wires the pieces a batch needs. Notifier and Log may be nil.
type Engine struct {
	Resolver *resolve.Resolver
	Executor Executor
	Balances BalanceReader
	Notifier Notifier
	Log      OperationLog

	// HasSigningKey reports whether the bot can sign bundler operations.
	// When false every recipient fails with its own line instead of the
	// batch aborting up front, so the report shows who was affected.
	HasSigningKey bool
}

// Request is one confirmed batch.
type Request struct {
	Community *community.Community
	// Actor is the platform user who requested the batch.
	Actor string
	// ActorAddress is the actor's account, the source of funds for sends.
	ActorAddress string
	Kind       Kind
	References []string
	Amount     float64
	Message    string
}

// Run executes the batch, narrating progress into rep. It returns an error
// only for conditions that invalidate the whole command; per-recipient
// failures are reported as lines and skipped.
func (e *Engine) Run(ctx context.Context, rep *progress.Report, req Request) error {
	com := req.Community
	unit := onchain.ParseUnits(req.Amount, com.Token.Decimals)
	total := len(req.References)

	// A send spends the actor's own balance, so the whole batch is checked
	// against it before anything is submitted. Mints and burns have no such
	// aggregate precondition.
	if req.Kind == Send {
		needed := new(big.Int).Mul(unit, big.NewInt(int64(total)))
		available, err := e.Balances.BalanceOf(ctx, com, req.ActorAddress)
		if err != nil {
			return fmt.Errorf("balance check: %w", err)
		}
		if available.Cmp(needed) < 0 {
			rep.SetHeader(ctx, "❌ insufficient balance")
			rep.Appendf(ctx, "you need %s %s but only have %s %s",
				onchain.FormatUnits(needed, com.Token.Decimals), com.Token.Symbol,
				onchain.FormatUnits(available, com.Token.Decimals), com.Token.Symbol)
			return nil
		}
	}

	for i, raw := range req.References {
		position := fmt.Sprintf("%d/%d", i+1, total)

		rep.SetHeader(ctx, progress.Steps(1, position))
		ref, err := e.Resolver.Resolve(ctx, raw, com, rep)
		if err != nil {
			return err
		}
		if !ref.Resolved() {
			// The resolver already appended the failure line.
			continue
		}

		rep.SetHeader(ctx, progress.Steps(2, position))
		if !e.HasSigningKey {
			rep.Appendf(ctx, "❌ cannot %s for %s: signing key not configured",
				req.Kind, ref.DisplayName())
			e.logOperation(ctx, req, ref, unit, "", "signing key not configured")
			continue
		}

		hash, err := e.execute(ctx, req, ref, unit)
		if err != nil {
			rep.Appendf(ctx, "❌ %s %s %s failed: %v", req.Kind, req.Kind.Preposition(), ref.DisplayName(), err)
			e.logOperation(ctx, req, ref, unit, "", err.Error())
			continue
		}

		rep.SetHeader(ctx, progress.Steps(3, position))
		amount := onchain.FormatUnits(unit, com.Token.Decimals)
		if link := com.TxURL(hash); link != "" {
			rep.Appendf(ctx, "✅ %s %s %s %s %s (%s)", req.Kind, amount, com.Token.Symbol, req.Kind.Preposition(), ref.DisplayName(), link)
		} else {
			rep.Appendf(ctx, "✅ %s %s %s %s %s", req.Kind, amount, com.Token.Symbol, req.Kind.Preposition(), ref.DisplayName())
		}
		e.logOperation(ctx, req, ref, unit, hash, "")
		e.notify(ctx, req, ref, amount)
	}

	rep.SetHeader(ctx, "✅ done")
	return nil
}

func (e *Engine) execute(ctx context.Context, req Request, ref resolve.Reference, unit *big.Int) (string, error) {
	com := req.Community
	switch req.Kind {
	case Send:
		return e.Executor.Transfer(ctx, com, req.ActorAddress, ref.Address, unit, req.Message)
	case Mint:
		return e.Executor.Mint(ctx, com, ref.Address, unit, req.Message)
	case Burn:
		return e.Executor.Burn(ctx, com, ref.Address, unit, req.Message)
	default:
		return "", fmt.Errorf("unknown operation kind %d", req.Kind)
	}
}

func (e *Engine) logOperation(ctx context.Context, req Request, ref resolve.Reference, unit *big.Int, hash, errMsg string) {
	if e.Log == nil {
		return
	}
	status := store.StatusSubmitted
	if errMsg != "" {
		status = store.StatusFailed
	}
	_, err := e.Log.RecordOperation(ctx, &store.Operation{
		Community: req.Community.Alias,
		Kind:      req.Kind.String(),
		Actor:     req.Actor,
		Recipient: ref.Address,
		Amount:    unit.String(),
		TxHash:    sql.NullString{String: hash},
		Status:    status,
		Error:     sql.NullString{String: errMsg},
	})
	if err != nil {
		slog.Error("failed to log operation", "kind", req.Kind.String(), "error", err)
	}
}

// notify tells a mentioned recipient about the operation in a direct message.
// Failures are logged and otherwise ignored.
func (e *Engine) notify(ctx context.Context, req Request, ref resolve.Reference, amount string) {
	if e.Notifier == nil || ref.UserID == "" {
		return
	}
	var text string
	switch req.Kind {
	case Send:
		text = fmt.Sprintf("you received %s %s from %s", amount, req.Community.Token.Symbol, req.Actor)
	case Mint:
		text = fmt.Sprintf("%s %s was minted to your account", amount, req.Community.Token.Symbol)
	case Burn:
		text = fmt.Sprintf("%s %s was burned from your account", amount, req.Community.Token.Symbol)
	}
	if req.Message != "" {
		text += ": " + req.Message
	}
	if err := e.Notifier.SendDirectMessage(ctx, ref.UserID, text); err != nil {
		slog.Debug("direct message delivery failed", "user", ref.UserID, "error", err)
	}
}
