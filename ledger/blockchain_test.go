package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// stepClock returns a clock that starts at start and advances by one second
// on every call.
func stepClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

// newTestBlockchain creates a blockchain with difficulty 1, a deterministic
// clock and a silent logger. Later options override these.
func newTestBlockchain(t *testing.T, opts ...Option) *Blockchain {
	t.Helper()
	defaults := []Option{
		WithDifficulty(1),
		WithClock(stepClock(time.Unix(1700000000, 0))),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	bc, err := NewBlockchain(append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("failed to create blockchain: %v", err)
	}
	return bc
}

// TestNewBlockchainGenesis verifies that a new blockchain holds exactly one
// mined genesis block with index 0, previous hash "0" and no transactions.
func TestNewBlockchainGenesis(t *testing.T) {
	bc := newTestBlockchain(t, WithDifficulty(2))

	if len(bc.blocks) != 1 {
		t.Fatalf("expected 1 block (genesis), got %d", len(bc.blocks))
	}
	genesis := bc.blocks[0]
	if genesis.Index() != 0 {
		t.Fatalf("genesis index should be 0, got %d", genesis.Index())
	}
	if genesis.PreviousHash() != "0" {
		t.Fatalf("genesis previous hash should be '0', got %s", genesis.PreviousHash())
	}
	if len(genesis.Transactions()) != 0 {
		t.Fatalf("genesis should have no transactions, got %d", len(genesis.Transactions()))
	}
	if !strings.HasPrefix(genesis.Hash(), "00") {
		t.Fatalf("genesis hash should meet difficulty 2, got %s", genesis.Hash())
	}
	if genesis.Hash() != genesis.CalculateHash() {
		t.Fatal("genesis stored hash should equal calculated hash")
	}
	if len(bc.Pending()) != 0 {
		t.Fatalf("new blockchain should have no pending transactions, got %d", len(bc.Pending()))
	}
}

// TestNewBlockchainDefaults verifies the default difficulty and reward.
func TestNewBlockchainDefaults(t *testing.T) {
	bc, err := NewBlockchain(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("failed to create blockchain: %v", err)
	}
	if bc.Difficulty() != 4 {
		t.Fatalf("expected default difficulty 4, got %d", bc.Difficulty())
	}
	if bc.MiningReward() != 10 {
		t.Fatalf("expected default reward 10, got %v", bc.MiningReward())
	}
	if !strings.HasPrefix(bc.GetLatest().Hash(), "0000") {
		t.Fatalf("genesis should meet difficulty 4, got %s", bc.GetLatest().Hash())
	}
}

// TestNewBlockchainInvalidDifficulty verifies that difficulties no hash can
// satisfy are rejected instead of mining forever.
func TestNewBlockchainInvalidDifficulty(t *testing.T) {
	for _, d := range []int{-1, 65} {
		_, err := NewBlockchain(WithDifficulty(d))
		if !errors.Is(err, ErrInvalidDifficulty) {
			t.Fatalf("difficulty %d: expected ErrInvalidDifficulty, got %v", d, err)
		}
	}
}

// TestZeroDifficultyNeedsNoWork verifies that at difficulty 0 every hash is
// accepted, so blocks keep nonce 0.
func TestZeroDifficultyNeedsNoWork(t *testing.T) {
	bc := newTestBlockchain(t, WithDifficulty(0))
	b := bc.Append([]Transaction{{Sender: "a", Recipient: "b", Amount: 1}})

	if bc.GetLatest().Nonce() != 0 || b.Nonce() != 0 {
		t.Fatalf("expected nonce 0 at difficulty 0, got %d", b.Nonce())
	}
	if !bc.IsValid() {
		t.Fatal("chain should be valid")
	}
}

// TestAppendLinksToLatest verifies that appended blocks extend the latest
// block by index and hash, and use the injected clock.
func TestAppendLinksToLatest(t *testing.T) {
	bc := newTestBlockchain(t)

	for i := 1; i <= 3; i++ {
		prior := bc.GetLatest()
		b := bc.Append([]Transaction{{Sender: "a", Recipient: "b", Amount: float64(i)}})

		if b.Index() != prior.Index()+1 {
			t.Fatalf("expected index %d, got %d", prior.Index()+1, b.Index())
		}
		if b.PreviousHash() != prior.Hash() {
			t.Fatal("new block's previous hash should match prior latest hash")
		}
		if bc.GetLatest() != b {
			t.Fatal("appended block should be the latest")
		}
		if !MeetsDifficulty(b.Hash(), bc.Difficulty()) {
			t.Fatalf("appended block should be mined, got %s", b.Hash())
		}
		if want := float64(1700000000 + i); b.Timestamp() != want {
			t.Fatalf("expected timestamp %v, got %v", want, b.Timestamp())
		}
	}
	if bc.Len() != 4 {
		t.Fatalf("expected 4 blocks, got %d", bc.Len())
	}
}

// TestAppendBypassesPending verifies that Append does not touch the pending
// buffer and adds no reward.
func TestAppendBypassesPending(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.QueueTransaction("a", "b", 1)

	b := bc.Append([]Transaction{{Sender: "c", Recipient: "d", Amount: 2}})

	if len(b.Transactions()) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(b.Transactions()))
	}
	if len(bc.Pending()) != 1 {
		t.Fatalf("pending buffer should be untouched, got %d", len(bc.Pending()))
	}
}

// TestAppendContextCancelled verifies that a cancelled append leaves the
// chain unchanged.
func TestAppendContextCancelled(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.difficulty = 20

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := bc.AppendContext(ctx, []Transaction{{Sender: "a", Recipient: "b", Amount: 1}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b != nil {
		t.Fatal("cancelled append should return no block")
	}
	if bc.Len() != 1 {
		t.Fatalf("chain should still have 1 block, got %d", bc.Len())
	}
}

// TestMinePendingIncludesReward verifies that mining puts the queued
// transactions and the reward in the same block, in order, and clears the
// buffer.
func TestMinePendingIncludesReward(t *testing.T) {
	bc := newTestBlockchain(t, WithMiningReward(7))
	bc.QueueTransaction("Alice", "Bob", 50)
	bc.QueueTransaction("Bob", "Charlie", 30)

	bc.MinePending("miner")

	if bc.Len() != 2 {
		t.Fatalf("expected 2 blocks, got %d", bc.Len())
	}
	want := []Transaction{
		{Sender: "Alice", Recipient: "Bob", Amount: 50},
		{Sender: "Bob", Recipient: "Charlie", Amount: 30},
		{Sender: "network", Recipient: "miner", Amount: 7},
	}
	got := bc.GetLatest().Transactions()
	if len(got) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transaction %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if len(bc.Pending()) != 0 {
		t.Fatalf("pending buffer should be empty, got %d", len(bc.Pending()))
	}
}

// TestMinePendingEmptyBuffer verifies that mining with nothing queued still
// produces a block holding only the reward.
func TestMinePendingEmptyBuffer(t *testing.T) {
	bc := newTestBlockchain(t, WithRewardSender("coinbase"))

	bc.MinePending("miner")

	txs := bc.GetLatest().Transactions()
	if len(txs) != 1 || txs[0].Sender != "coinbase" || txs[0].Recipient != "miner" || txs[0].Amount != 10 {
		t.Fatalf("expected a single reward transaction, got %+v", txs)
	}
}

// TestMinePendingContextCancelled verifies that a cancelled mining round
// keeps the pending buffer as it was and records no reward.
func TestMinePendingContextCancelled(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.QueueTransaction("a", "b", 1)
	bc.difficulty = 20

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bc.MinePendingContext(ctx, "miner"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	pending := bc.Pending()
	if len(pending) != 1 || pending[0] != (Transaction{Sender: "a", Recipient: "b", Amount: 1}) {
		t.Fatalf("pending buffer should be unchanged, got %+v", pending)
	}
	if bc.Balance("miner") != 0 {
		t.Fatalf("no reward should be recorded, got %v", bc.Balance("miner"))
	}
}

// TestVerifyValidChain verifies that a chain built only through the public
// operations is valid.
func TestVerifyValidChain(t *testing.T) {
	bc := newTestBlockchain(t)
	if !bc.IsValid() {
		t.Fatal("genesis-only chain should be valid")
	}
	for i := 0; i < 5; i++ {
		bc.QueueTransaction("a", "b", float64(i))
		bc.MinePending("miner")
		bc.Append(nil)
	}
	if err := bc.Verify(); err != nil {
		t.Fatalf("expected valid chain, got %v", err)
	}
	if err := bc.VerifyWork(); err != nil {
		t.Fatalf("expected every block to meet difficulty, got %v", err)
	}
}

// TestVerifyDetectsTamperedTransaction verifies that changing an amount in a
// non-terminal block without re-mining is detected as a hash mismatch.
func TestVerifyDetectsTamperedTransaction(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.QueueTransaction("Alice", "Bob", 50)
	bc.MinePending("miner")
	bc.QueueTransaction("Bob", "Alice", 10)
	bc.MinePending("miner")

	bc.blocks[1].transactions[0].Amount = 5000

	if bc.IsValid() {
		t.Fatal("tampered chain should not be valid")
	}
	err := bc.Verify()
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "block 1") {
		t.Fatalf("error should name block 1, got %v", err)
	}
}

// TestVerifyDetectsBrokenLink verifies that a block whose hash is consistent
// but whose previous hash points elsewhere is detected.
func TestVerifyDetectsBrokenLink(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.Append(nil)
	bc.Append(nil)

	b := bc.blocks[2]
	b.previousHash = strings.Repeat("f", 64)
	b.hash = b.CalculateHash()

	err := bc.Verify()
	if !errors.Is(err, ErrBrokenLink) {
		t.Fatalf("expected ErrBrokenLink, got %v", err)
	}
}

// TestVerifyDetectsReorderedBlocks verifies that swapping two blocks breaks
// the chain linkage.
func TestVerifyDetectsReorderedBlocks(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.Append(nil)
	bc.Append(nil)

	bc.blocks[1], bc.blocks[2] = bc.blocks[2], bc.blocks[1]

	if bc.IsValid() {
		t.Fatal("reordered chain should not be valid")
	}
}

// TestVerifyIgnoresGenesis verifies that the genesis block is trusted and
// that IsValid does not re-check proof of work, while VerifyWork does.
func TestVerifyIgnoresGenesis(t *testing.T) {
	bc := newTestBlockchain(t, WithDifficulty(2))
	bc.Append(nil)

	// A consistent but unmined block: hash recomputed, link intact.
	b := bc.blocks[1]
	for b.nonce = 0; MeetsDifficulty(b.CalculateHash(), 2); b.nonce++ {
	}
	b.hash = b.CalculateHash()

	if !bc.IsValid() {
		t.Fatal("IsValid should not re-check proof of work")
	}
	bc.blocks[0].transactions = []Transaction{{Sender: "x", Recipient: "y", Amount: 1}}
	if !bc.IsValid() {
		t.Fatal("genesis contents are not checked against a predecessor")
	}
	if !MeetsDifficulty(bc.blocks[0].hash, 2) {
		t.Fatal("genesis stored hash should still meet difficulty")
	}
}

// TestVerifyWorkDetectsUnminedBlock verifies that VerifyWork reports a block
// whose hash does not meet the chain difficulty.
func TestVerifyWorkDetectsUnminedBlock(t *testing.T) {
	bc := newTestBlockchain(t, WithDifficulty(2))
	bc.Append(nil)

	b := bc.blocks[1]
	for b.nonce = 0; MeetsDifficulty(b.CalculateHash(), 2); b.nonce++ {
	}
	b.hash = b.CalculateHash()

	err := bc.VerifyWork()
	if !errors.Is(err, ErrInsufficientWork) {
		t.Fatalf("expected ErrInsufficientWork, got %v", err)
	}
}

// TestGetByIndex verifies block lookup and the out of range error.
func TestGetByIndex(t *testing.T) {
	bc := newTestBlockchain(t)
	appended := bc.Append(nil)

	b, err := bc.GetByIndex(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != appended {
		t.Fatal("GetByIndex(1) should return the appended block")
	}
	for _, i := range []int{-1, 2} {
		if _, err := bc.GetByIndex(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("index %d: expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
}

// TestBlocksReturnsCopy verifies that modifying the slice returned by Blocks
// does not change the chain.
func TestBlocksReturnsCopy(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.Append(nil)

	blocks := bc.Blocks()
	blocks[1] = nil

	if bc.blocks[1] == nil {
		t.Fatal("Blocks should return a copy")
	}
}

// TestBalanceConservation verifies that without reward transactions the
// balances of all addresses sum to zero.
func TestBalanceConservation(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.Append([]Transaction{
		{Sender: "a", Recipient: "b", Amount: 12.5},
		{Sender: "b", Recipient: "c", Amount: 3},
		{Sender: "c", Recipient: "a", Amount: -4},
	})
	bc.Append([]Transaction{
		{Sender: "d", Recipient: "a", Amount: 100},
		{Sender: "b", Recipient: "b", Amount: 9},
	})

	var sum float64
	for _, addr := range []string{"a", "b", "c", "d"} {
		sum += bc.Balance(addr)
	}
	if sum != 0 {
		t.Fatalf("balances should sum to 0, got %v", sum)
	}

	var total float64
	for _, v := range bc.Balances() {
		total += v
	}
	if total != 0 {
		t.Fatalf("Balances should sum to 0, got %v", total)
	}
}

// TestBalanceSelfTransferAndUnknownAddress verifies that a transfer to
// oneself nets to zero and an address never seen has balance 0.
func TestBalanceSelfTransferAndUnknownAddress(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.Append([]Transaction{{Sender: "a", Recipient: "a", Amount: 42}})

	if got := bc.Balance("a"); got != 0 {
		t.Fatalf("self transfer should net to 0, got %v", got)
	}
	if got := bc.Balance("nobody"); got != 0 {
		t.Fatalf("unknown address should have balance 0, got %v", got)
	}
}

// TestBalanceIgnoresPending verifies that queued transactions do not count
// until they are mined.
func TestBalanceIgnoresPending(t *testing.T) {
	bc := newTestBlockchain(t)
	bc.QueueTransaction("a", "b", 5)

	if got := bc.Balance("b"); got != 0 {
		t.Fatalf("pending transaction should not count, got %v", got)
	}
	bc.MinePending("miner")
	if got := bc.Balance("b"); got != 5 {
		t.Fatalf("expected balance 5 after mining, got %v", got)
	}
}

// TestLedgerScenario runs two mining rounds over Alice, Bob and Charlie and
// checks every balance and the validity of the chain after each round.
func TestLedgerScenario(t *testing.T) {
	bc := newTestBlockchain(t, WithMiningReward(10))

	bc.QueueTransaction("Alice", "Bob", 50)
	bc.QueueTransaction("Bob", "Charlie", 30)
	bc.MinePending("miner")

	expectBalances(t, bc, map[string]float64{
		"Alice":   -50,
		"Bob":     20,
		"Charlie": 30,
		"miner":   10,
	})
	if !bc.IsValid() {
		t.Fatal("chain should be valid after the first round")
	}

	bc.QueueTransaction("Charlie", "Alice", 20)
	bc.QueueTransaction("Bob", "Alice", 10)
	bc.MinePending("miner")

	expectBalances(t, bc, map[string]float64{
		"Alice":   -20,
		"Bob":     10,
		"Charlie": 10,
		"miner":   20,
	})
	if !bc.IsValid() {
		t.Fatal("chain should be valid after the second round")
	}
	if bc.Len() != 3 {
		t.Fatalf("expected 3 blocks, got %d", bc.Len())
	}
	if got := bc.Balances()["network"]; got != -20 {
		t.Fatalf("expected network balance -20, got %v", got)
	}
}

func expectBalances(t *testing.T, bc *Blockchain, want map[string]float64) {
	t.Helper()
	for addr, balance := range want {
		if got := bc.Balance(addr); got != balance {
			t.Fatalf("%s: expected balance %v, got %v", addr, balance, got)
		}
	}
}
