package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"communibot/internal/community"
	"communibot/internal/progress"
	"communibot/internal/resolve"
	"communibot/internal/store"
)

type call struct {
	kind   string
	from   string
	to     string
	amount string
}

type fakeExecutor struct {
	calls   []call
	failFor map[string]error // keyed by recipient address
	n       int
}

func (f *fakeExecutor) result(kind, from, to string, amount *big.Int) (string, error) {
	if err := f.failFor[to]; err != nil {
		return "", err
	}
	f.calls = append(f.calls, call{kind, from, to, amount.String()})
	f.n++
	return fmt.Sprintf("0xhash%d", f.n), nil
}

func (f *fakeExecutor) Transfer(_ context.Context, _ *community.Community, from, to string, amount *big.Int, _ string) (string, error) {
	return f.result("transfer", from, to, amount)
}

func (f *fakeExecutor) Mint(_ context.Context, _ *community.Community, to string, amount *big.Int, _ string) (string, error) {
	return f.result("mint", "", to, amount)
}

func (f *fakeExecutor) Burn(_ context.Context, _ *community.Community, from string, amount *big.Int, _ string) (string, error) {
	return f.result("burn", from, "", amount)
}

type fakeBalances struct {
	balance *big.Int
	calls   int
}

func (f *fakeBalances) BalanceOf(context.Context, *community.Community, string) (*big.Int, error) {
	f.calls++
	return f.balance, nil
}

type fakeCards struct {
	accounts map[string]string // hashed user key -> address
}

func (f *fakeCards) CardAddress(_ context.Context, _ *community.Community, hashedUserKey string) (string, error) {
	return f.accounts[hashedUserKey], nil
}

type fakeNotifier struct {
	messages map[string]string
}

func (f *fakeNotifier) SendDirectMessage(_ context.Context, userID, text string) error {
	if f.messages == nil {
		f.messages = make(map[string]string)
	}
	f.messages[userID] = text
	return nil
}

type fakeLog struct {
	ops []*store.Operation
}

func (f *fakeLog) RecordOperation(_ context.Context, op *store.Operation) (string, error) {
	f.ops = append(f.ops, op)
	return "op-id", nil
}

func testCommunity() *community.Community {
	return &community.Community{
		Alias:       "acorn",
		Name:        "Acorn Collective",
		ChainID:     100,
		ExplorerURL: "https://explorer.example.com",
		Token: community.Token{
			Standard: "erc20",
			Address:  "0x00000000000000000000000000000000000000bb",
			Symbol:   "ACORN",
			Decimals: 2,
		},
	}
}

const (
	aliceAddr = "0x1111111111111111111111111111111111111111"
	bobAddr   = "0x2222222222222222222222222222222222222222"
	carolAddr = "0x3333333333333333333333333333333333333333"
)

func testEngine(exec *fakeExecutor, balance int64) (*Engine, *fakeLog, *fakeNotifier) {
	log := &fakeLog{}
	notifier := &fakeNotifier{}
	e := &Engine{
		Resolver: &resolve.Resolver{
			Cards: &fakeCards{accounts: map[string]string{
				resolve.HashUserID("42"): bobAddr,
				resolve.HashUserID("77"): carolAddr,
			}},
		},
		Executor:      exec,
		Balances:      &fakeBalances{balance: big.NewInt(balance)},
		Notifier:      notifier,
		Log:           log,
		HasSigningKey: true,
	}
	return e, log, notifier
}

func newReport() *progress.Report {
	return progress.NewReport(progress.RendererFunc(func(context.Context, string) error { return nil }))
}

func TestRun_SendBatch(t *testing.T) {
	exec := &fakeExecutor{}
	e, log, notifier := testEngine(exec, 10000)
	rep := newReport()

	err := e.Run(context.Background(), rep, Request{
		Community:    testCommunity(),
		Actor:        "@alice:example.com",
		ActorAddress: aliceAddr,
		Kind:         Send,
		References:   []string{"<@42>", "<@77>"},
		Amount:       10,
		Message:      "thanks",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(exec.calls) != 2 {
		t.Fatalf("got %d executor calls, want 2", len(exec.calls))
	}
	for _, c := range exec.calls {
		if c.kind != "transfer" || c.from != aliceAddr || c.amount != "1000" {
			t.Errorf("unexpected call: %+v", c)
		}
	}
	if exec.calls[0].to != bobAddr || exec.calls[1].to != carolAddr {
		t.Errorf("recipients out of order: %+v", exec.calls)
	}

	if rep.Header() != "✅ done" {
		t.Errorf("final header = %q, want done", rep.Header())
	}
	lines := rep.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "✅") || !strings.Contains(line, "10 ACORN") {
			t.Errorf("unexpected success line: %q", line)
		}
		if !strings.Contains(line, "https://explorer.example.com/tx/") {
			t.Errorf("success line missing tx link: %q", line)
		}
	}

	if len(log.ops) != 2 {
		t.Fatalf("got %d logged ops, want 2", len(log.ops))
	}
	if log.ops[0].Status != store.StatusSubmitted || log.ops[0].TxHash.String == "" {
		t.Errorf("logged op missing hash: %+v", log.ops[0])
	}

	// Mentioned recipients get a direct message.
	if len(notifier.messages) != 2 {
		t.Fatalf("got %d direct messages, want 2", len(notifier.messages))
	}
	if msg := notifier.messages["42"]; !strings.Contains(msg, "10 ACORN") || !strings.Contains(msg, "thanks") {
		t.Errorf("unexpected dm: %q", msg)
	}
}

func TestRun_SendInsufficientBalanceAbortsBatch(t *testing.T) {
	exec := &fakeExecutor{}
	e, log, _ := testEngine(exec, 1500) // need 2000 for two sends of 10.00

	rep := newReport()
	err := e.Run(context.Background(), rep, Request{
		Community:    testCommunity(),
		Actor:        "@alice:example.com",
		ActorAddress: aliceAddr,
		Kind:         Send,
		References:   []string{"<@42>", "<@77>"},
		Amount:       10,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(exec.calls) != 0 {
		t.Fatalf("executor called %d times, batch should abort before any submission", len(exec.calls))
	}
	if len(log.ops) != 0 {
		t.Fatalf("no operations should be logged, got %d", len(log.ops))
	}
	lines := rep.Lines()
	if len(lines) != 1 || !strings.Contains(lines[0], "20 ACORN") || !strings.Contains(lines[0], "15 ACORN") {
		t.Fatalf("abort line should state requested and available amounts: %v", lines)
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	exec := &fakeExecutor{failFor: map[string]error{bobAddr: errors.New("nonce too low")}}
	e, log, _ := testEngine(exec, 100000)

	rep := newReport()
	err := e.Run(context.Background(), rep, Request{
		Community:    testCommunity(),
		Actor:        "@alice:example.com",
		ActorAddress: aliceAddr,
		Kind:         Send,
		References:   []string{"<@42>", "<@77>"},
		Amount:       1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(exec.calls) != 1 || exec.calls[0].to != carolAddr {
		t.Fatalf("second recipient should still execute: %+v", exec.calls)
	}
	lines := rep.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want failure + success: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "❌") || !strings.Contains(lines[0], "nonce too low") {
		t.Errorf("unexpected failure line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "✅") {
		t.Errorf("unexpected success line: %q", lines[1])
	}
	if len(log.ops) != 2 || log.ops[0].Status != store.StatusFailed || log.ops[1].Status != store.StatusSubmitted {
		t.Fatalf("unexpected operation log: %+v", log.ops)
	}
}

func TestRun_UnresolvedRecipientSkipped(t *testing.T) {
	exec := &fakeExecutor{}
	e, _, _ := testEngine(exec, 100000)

	rep := newReport()
	err := e.Run(context.Background(), rep, Request{
		Community:    testCommunity(),
		Actor:        "@alice:example.com",
		ActorAddress: aliceAddr,
		Kind:         Send,
		References:   []string{"<@99>", "<@42>"}, // 99 has no bound account
		Amount:       1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(exec.calls) != 1 || exec.calls[0].to != bobAddr {
		t.Fatalf("only the resolvable recipient should execute: %+v", exec.calls)
	}
	lines := rep.Lines()
	if len(lines) != 2 || !strings.Contains(lines[0], "Could not find an account") {
		t.Fatalf("missing resolution failure line: %v", lines)
	}
}

func TestRun_MintWithoutSigningKey(t *testing.T) {
	exec := &fakeExecutor{}
	e, log, _ := testEngine(exec, 0)
	e.HasSigningKey = false

	rep := newReport()
	err := e.Run(context.Background(), rep, Request{
		Community:  testCommunity(),
		Actor:      "@alice:example.com",
		Kind:       Mint,
		References: []string{"<@42>", "<@77>"},
		Amount:     5,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(exec.calls) != 0 {
		t.Fatalf("nothing should be submitted without a signing key: %+v", exec.calls)
	}
	lines := rep.Lines()
	if len(lines) != 2 {
		t.Fatalf("each recipient gets its own failure line: %v", lines)
	}
	for _, line := range lines {
		if !strings.Contains(line, "signing key not configured") {
			t.Errorf("unexpected line: %q", line)
		}
	}
	if len(log.ops) != 2 || log.ops[0].Status != store.StatusFailed {
		t.Fatalf("failed mints should still be logged: %+v", log.ops)
	}
	if rep.Header() != "✅ done" {
		t.Errorf("final header = %q, want done", rep.Header())
	}
}

func TestRun_SendWithoutSigningKey(t *testing.T) {
	exec := &fakeExecutor{}
	e, log, _ := testEngine(exec, 100000)
	e.HasSigningKey = false

	rep := newReport()
	err := e.Run(context.Background(), rep, Request{
		Community:    testCommunity(),
		Actor:        "@alice:example.com",
		ActorAddress: aliceAddr,
		Kind:         Send,
		References:   []string{"<@42>", "<@77>"},
		Amount:       1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Transfers are signed like mints and burns; without a key nothing may
	// reach the bundler.
	if len(exec.calls) != 0 {
		t.Fatalf("nothing should be submitted without a signing key: %+v", exec.calls)
	}
	lines := rep.Lines()
	if len(lines) != 2 {
		t.Fatalf("each recipient gets its own failure line: %v", lines)
	}
	for _, line := range lines {
		if !strings.Contains(line, "signing key not configured") {
			t.Errorf("unexpected line: %q", line)
		}
	}
	if len(log.ops) != 2 || log.ops[0].Status != store.StatusFailed {
		t.Fatalf("failed sends should still be logged: %+v", log.ops)
	}
}

func TestRun_BurnTakesFromRecipient(t *testing.T) {
	exec := &fakeExecutor{}
	e, _, _ := testEngine(exec, 0)

	rep := newReport()
	err := e.Run(context.Background(), rep, Request{
		Community:  testCommunity(),
		Actor:      "@alice:example.com",
		Kind:       Burn,
		References: []string{bobAddr},
		Amount:     2.5,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(exec.calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(exec.calls))
	}
	c := exec.calls[0]
	if c.kind != "burn" || c.from != bobAddr || c.amount != "250" {
		t.Fatalf("unexpected burn call: %+v", c)
	}

	lines := rep.Lines()
	if len(lines) != 1 || !strings.Contains(lines[0], "from "+bobAddr) {
		t.Fatalf("burn line should say the tokens came from the account: %v", lines)
	}
}

func TestRun_DomainWithoutEndpointIsFatal(t *testing.T) {
	exec := &fakeExecutor{}
	e, _, _ := testEngine(exec, 100000)

	rep := newReport()
	err := e.Run(context.Background(), rep, Request{
		Community:    testCommunity(),
		Actor:        "@alice:example.com",
		ActorAddress: aliceAddr,
		Kind:         Send,
		References:   []string{"alice.eth"},
		Amount:       1,
	})
	if !errors.Is(err, resolve.ErrNameServiceNotConfigured) {
		t.Fatalf("err = %v, want ErrNameServiceNotConfigured", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("nothing should execute: %+v", exec.calls)
	}
}
