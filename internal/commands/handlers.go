package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"maunium.net/go/mautrix/event"

	"communibot/internal/community"
	"communibot/internal/confirm"
	"communibot/internal/engine"
	"communibot/internal/onchain"
	"communibot/internal/progress"
	"communibot/internal/resolve"
	"communibot/internal/signup"
	"communibot/internal/store"
	"communibot/internal/task"
)

// Messenger is the outbound side of the room transport.
type Messenger interface {
	SendMessage(ctx context.Context, roomID, message string) (string, error)
	EditMessage(ctx context.Context, roomID, eventID, message string) error
	SendNotice(ctx context.Context, roomID, message string) error
	SendDirectMessage(ctx context.Context, userID, text string) error
}

// Classifier turns free text into a task.
type Classifier interface {
	Classify(ctx context.Context, freeText string, candidates []*community.Community) (task.Args, error)
}

// Confirmer gates value-moving operations on the requester's approval. The
// prompt is registered before post delivers it, so a reply racing the prompt
// still counts.
type Confirmer interface {
	Confirm(ctx context.Context, roomID, requester, summary string, post func(context.Context) error) (confirm.Outcome, error)
}

// Runner executes a confirmed batch.
type Runner interface {
	Run(ctx context.Context, rep *progress.Report, req engine.Request) error
}

// Ledger reads the local operation history.
type Ledger interface {
	RecentOperations(ctx context.Context, communityAlias string, limit int) ([]*store.Operation, error)
}

// History reads chain-side transfer history. The local ledger only knows
// about operations this bot submitted; the chain knows them all.
type History interface {
	Transfers(ctx context.Context, com *community.Community, address string, limit int) ([]onchain.Transfer, error)
}

// SignupNotifier forwards community onboarding requests to the operator.
type SignupNotifier interface {
	Notify(ctx context.Context, req signup.Request) error
}

// OwnershipReader reads the owner set of a card account.
type OwnershipReader interface {
	IsSafeOwner(ctx context.Context, com *community.Community, account, owner string) (bool, error)
}

// OwnershipWriter submits owner additions for card accounts.
type OwnershipWriter interface {
	AddOwner(ctx context.Context, com *community.Community, hashedUserKey, owner string) (string, error)
}

// Handlers holds the dependencies shared by all command handlers.
type Handlers struct {
	Catalog    *community.Catalog
	Classifier Classifier
	Engine     Runner
	Gate       Confirmer
	Cards      resolve.CardDirectory
	Balances   engine.BalanceReader
	Ledger     Ledger
	History    History
	Messenger  Messenger
	Managers   []string

	// Signups is nil when no onboarding webhook is configured.
	Signups SignupNotifier
	// SignupInvite is an optional link included in the signup confirmation.
	SignupInvite string

	Owners        OwnershipReader
	OwnerExec     OwnershipWriter
	HasSigningKey bool
}

// Register wires all handlers into the router.
func (h *Handlers) Register(router *Router) {
	router.Register("help", h.Help)
	router.Register("communities", h.Communities)
	router.Register("transactions", h.Transactions)
	router.Register("send", h.Send)
	router.Register("mint", h.Mint)
	router.Register("burn", h.Burn)
	router.Register("address", h.Address)
	router.Register("balance", h.Balance)
	router.Register("share-address", h.ShareAddress)
	router.Register("share-balance", h.ShareBalance)
	router.Register("signup", h.Signup)
	router.Register("add-owner", h.AddOwner)
	router.SetFallback(h.Do)
}

// Help describes what the bot understands.
func (h *Handlers) Help(_ context.Context, _ *Command, _ *event.Event) (string, error) {
	var b strings.Builder
	b.WriteString("Talk to me in plain language, for example \"send 10 tokens to @someone\". I can:\n")
	for _, spec := range task.Registry() {
		fmt.Fprintf(&b, "• %s\n", spec.Purpose)
	}
	b.WriteString("\nCommands: help, communities, transactions [community], " +
		"send/mint/burn <amount> [community] <recipient...> [message], " +
		"address, balance, share-address, share-balance, " +
		"add-owner <address>, signup")
	return b.String(), nil
}

// Communities lists the communities available in the current room.
func (h *Handlers) Communities(_ context.Context, _ *Command, evt *event.Event) (string, error) {
	coms := h.Catalog.List(evt.RoomID.String())
	if len(coms) == 0 {
		return "no communities are configured for this room", nil
	}
	var b strings.Builder
	for _, c := range coms {
		fmt.Fprintf(&b, "• %s: %s (%s)\n", c.Alias, c.Name, c.Token.Symbol)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Transactions lists recent operations for a community.
func (h *Handlers) Transactions(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	alias := ""
	if len(cmd.Args) > 0 {
		alias = cmd.Args[0]
	}
	com, err := h.communityFor(evt.RoomID.String(), alias)
	if err != nil {
		return "", err
	}

	ops, err := h.Ledger.RecentOperations(ctx, com.Alias, 10)
	if err != nil {
		return "", fmt.Errorf("could not read the transaction log: %w", err)
	}
	if len(ops) == 0 {
		// Nothing submitted through this bot; fall back to the requester's
		// own chain-side history.
		return h.chainHistory(ctx, com, evt.Sender.String())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "recent %s transactions:\n", com.Alias)
	for _, op := range ops {
		amount := op.Amount
		if n, ok := parseBig(op.Amount); ok {
			amount = onchain.FormatUnits(n, com.Token.Decimals)
		}
		switch op.Status {
		case store.StatusSubmitted:
			fmt.Fprintf(&b, "• %s %s %s to %s (%s)\n",
				op.Timestamp.Format("Jan 2 15:04"), op.Kind, amount, shortAddress(op.Recipient), op.TxHash.String)
		default:
			fmt.Fprintf(&b, "• %s %s %s to %s failed: %s\n",
				op.Timestamp.Format("Jan 2 15:04"), op.Kind, amount, shortAddress(op.Recipient), op.Error.String)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// chainHistory lists the sender's recent chain-side transfers.
func (h *Handlers) chainHistory(ctx context.Context, com *community.Community, sender string) (string, error) {
	addr, err := h.actorAccount(ctx, com, sender)
	if err != nil {
		return fmt.Sprintf("no transactions recorded for %s yet", com.Alias), nil
	}
	transfers, err := h.History.Transfers(ctx, com, addr, 10)
	if err != nil || len(transfers) == 0 {
		return fmt.Sprintf("no transactions recorded for %s yet", com.Alias), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "your recent %s transfers:\n", com.Alias)
	for _, tr := range transfers {
		amount := tr.Amount
		if n, ok := parseBig(tr.Amount); ok {
			amount = onchain.FormatUnits(n, com.Token.Decimals)
		}
		direction := "to"
		other := tr.To
		if strings.EqualFold(tr.To, addr) {
			direction = "from"
			other = tr.From
		}
		fmt.Fprintf(&b, "• %s %s %s %s %s\n",
			tr.CreatedAt.Format("Jan 2 15:04"), amount, com.Token.Symbol, direction, shortAddress(other))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// --- shared helpers --------------------------------------------------------

var digitsPattern = regexp.MustCompile(`[0-9]+`)

// platformID extracts the bridged platform user ID from a Matrix user ID.
// Bridge ghosts carry the numeric platform ID in the localpart
// (@bridge_42:example.com); anything else keys on the full Matrix ID.
func platformID(mxid string) string {
	localpart, _, found := strings.Cut(strings.TrimPrefix(mxid, "@"), ":")
	if !found {
		return mxid
	}
	if digits := digitsPattern.FindString(localpart); digits != "" {
		return digits
	}
	return mxid
}

// actorAccount resolves the sender's own account in a community.
func (h *Handlers) actorAccount(ctx context.Context, com *community.Community, sender string) (string, error) {
	addr, err := h.Cards.CardAddress(ctx, com, resolve.HashUserID(platformID(sender)))
	if err != nil {
		return "", fmt.Errorf("could not look up your account: %w", err)
	}
	if addr == "" {
		return "", fmt.Errorf("you don't have an account in %s yet", com.Alias)
	}
	return addr, nil
}

// communityFor picks the community a command applies to, honoring room
// scoping. An empty alias only works when the room has exactly one community.
func (h *Handlers) communityFor(roomID, alias string) (*community.Community, error) {
	scoped := h.Catalog.List(roomID)
	if len(scoped) == 0 {
		return nil, fmt.Errorf("no communities are configured for this room")
	}
	if alias == "" {
		if len(scoped) == 1 {
			return scoped[0], nil
		}
		aliases := make([]string, len(scoped))
		for i, c := range scoped {
			aliases[i] = c.Alias
		}
		return nil, fmt.Errorf("please name a community: %s", strings.Join(aliases, ", "))
	}
	for _, c := range scoped {
		if c.Alias == alias {
			return c, nil
		}
	}
	return nil, fmt.Errorf("community %q is not available in this room", alias)
}

func (h *Handlers) isManager(mxid string) bool {
	for _, m := range h.Managers {
		if m == mxid {
			return true
		}
	}
	return false
}

func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
