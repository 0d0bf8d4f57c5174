package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrHashMismatch      = errors.New("stored hash does not match block contents")
	ErrBrokenLink        = errors.New("previous hash does not match predecessor")
	ErrInsufficientWork  = errors.New("hash does not meet difficulty")
	ErrIndexOutOfRange   = errors.New("index out of range")
)

// maxDifficulty is the length of a hex SHA-256 digest.
const maxDifficulty = 64

// Blockchain is an append-only sequence of mined blocks plus the buffer of
// transactions waiting to be mined. It always holds at least the genesis
// block. It is not safe for concurrent mutation.
type Blockchain struct {
	blocks       []*Block
	pending      []Transaction
	difficulty   int
	miningReward float64
	rewardSender string
	now          func() time.Time
	logger       *slog.Logger
}

// NewBlockchain creates a blockchain and mines its genesis block: index 0,
// no transactions and previous hash "0". Options default to difficulty 4
// and a mining reward of 10.
func NewBlockchain(opts ...Option) (*Blockchain, error) {
	bc := Blockchain{
		blocks:       make([]*Block, 0),
		pending:      make([]Transaction, 0),
		difficulty:   DefaultDifficulty,
		miningReward: DefaultMiningReward,
		rewardSender: DefaultRewardSender,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		bc = opt(bc)
	}
	if bc.difficulty < 0 || bc.difficulty > maxDifficulty {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidDifficulty, bc.difficulty, maxDifficulty)
	}

	genesis := NewBlock(0, nil, bc.timestamp(), "0")
	bc.Mine(genesis)
	bc.blocks = append(bc.blocks, genesis)
	bc.logger.Debug("genesis block created", "hash", genesis.hash, "nonce", genesis.nonce)

	return &bc, nil
}

// timestamp is the clock reading in Unix seconds with a fractional part.
func (bc *Blockchain) timestamp() float64 {
	now := bc.now()
	return float64(now.Unix()) + float64(now.Nanosecond())/float64(time.Second)
}

// Mine searches nonces from the block's current nonce until its hash meets
// the chain difficulty. It mutates the block but does not append it.
func (bc *Blockchain) Mine(b *Block) {
	// Background is never cancelled, so mining cannot fail.
	_ = bc.MineContext(context.Background(), b)
}

// MineContext is Mine with cancellation: it returns ctx.Err() if ctx is
// done before a valid nonce is found, leaving the block unmined.
func (bc *Blockchain) MineContext(ctx context.Context, b *Block) error {
	attempts, err := mineBlock(ctx, b, bc.difficulty)
	if err != nil {
		bc.logger.Warn("mining cancelled", "index", b.index, "attempts", attempts, "error", err)
		return err
	}
	bc.logger.Debug("block mined", "index", b.index, "nonce", b.nonce, "hash", b.hash, "attempts", attempts)
	return nil
}

// Append mines a block holding transactions on top of the latest block and
// appends it. It is the only way blocks other than genesis enter the chain.
func (bc *Blockchain) Append(transactions []Transaction) *Block {
	b, _ := bc.AppendContext(context.Background(), transactions)
	return b
}

// AppendContext is Append with cancellation. Nothing is appended when ctx is
// cancelled before mining completes.
func (bc *Blockchain) AppendContext(ctx context.Context, transactions []Transaction) (*Block, error) {
	latest := bc.GetLatest()
	b := NewBlock(latest.index+1, transactions, bc.timestamp(), latest.hash)
	if err := bc.MineContext(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to mine block %d: %w", b.index, err)
	}
	bc.blocks = append(bc.blocks, b)
	return b, nil
}

// QueueTransaction adds a transaction to the pending buffer without any
// validation.
func (bc *Blockchain) QueueTransaction(sender, recipient string, amount float64) {
	bc.pending = append(bc.pending, Transaction{Sender: sender, Recipient: recipient, Amount: amount})
}

// MinePending mines every pending transaction, followed by a reward
// transaction for minerAddress, into one new block and clears the buffer.
func (bc *Blockchain) MinePending(minerAddress string) {
	_ = bc.MinePendingContext(context.Background(), minerAddress)
}

// MinePendingContext is MinePending with cancellation. On cancellation the
// pending buffer is left as it was and no reward is recorded.
func (bc *Blockchain) MinePendingContext(ctx context.Context, minerAddress string) error {
	txs := make([]Transaction, 0, len(bc.pending)+1)
	txs = append(txs, bc.pending...)
	txs = append(txs, Transaction{Sender: bc.rewardSender, Recipient: minerAddress, Amount: bc.miningReward})

	if _, err := bc.AppendContext(ctx, txs); err != nil {
		return err
	}
	bc.pending = make([]Transaction, 0)
	return nil
}

// GetLatest returns the most recently appended block.
func (bc *Blockchain) GetLatest() *Block {
	return bc.blocks[len(bc.blocks)-1]
}

// GetByIndex returns the block at index.
func (bc *Blockchain) GetByIndex(index int) (*Block, error) {
	if index < 0 || index >= len(bc.blocks) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return bc.blocks[index], nil
}

// Blocks returns the blocks in chain order. The slice is a copy.
func (bc *Blockchain) Blocks() []*Block {
	out := make([]*Block, len(bc.blocks))
	copy(out, bc.blocks)
	return out
}

// Len returns the number of blocks, genesis included.
func (bc *Blockchain) Len() int { return len(bc.blocks) }

// Pending returns a copy of the pending buffer.
func (bc *Blockchain) Pending() []Transaction { return copyTransactions(bc.pending) }

// Difficulty returns the leading zero hex digits required of each hash.
func (bc *Blockchain) Difficulty() int { return bc.difficulty }

// MiningReward returns the amount credited to the miner of each block.
func (bc *Blockchain) MiningReward() float64 { return bc.miningReward }

// Verify checks every block after genesis against its predecessor: the
// stored hash must match the recomputed one and the previous hash must
// match the predecessor's hash. It returns the first violation found.
// Proof of work is not re-checked; see VerifyWork.
func (bc *Blockchain) Verify() error {
	for i := 1; i < len(bc.blocks); i++ {
		current := bc.blocks[i]
		previous := bc.blocks[i-1]

		if err := validateBlock(current, previous); err != nil {
			return fmt.Errorf("block %d invalid: %w", i, err)
		}
	}
	return nil
}

// IsValid reports whether Verify finds no violation.
func (bc *Blockchain) IsValid() bool {
	return bc.Verify() == nil
}

func validateBlock(current, previous *Block) error {
	if expected := current.CalculateHash(); current.hash != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, expected, current.hash)
	}
	if current.previousHash != previous.hash {
		return fmt.Errorf("%w: expected %s, got %s", ErrBrokenLink, previous.hash, current.previousHash)
	}
	return nil
}

// VerifyWork checks that every stored hash, genesis included, meets the
// chain difficulty.
func (bc *Blockchain) VerifyWork() error {
	for i, b := range bc.blocks {
		if !MeetsDifficulty(b.hash, bc.difficulty) {
			return fmt.Errorf("block %d invalid: %w: %s, difficulty %d", i, ErrInsufficientWork, b.hash, bc.difficulty)
		}
	}
	return nil
}

// Balance scans every committed transaction, subtracting amounts sent by
// address and adding amounts it received. Unknown addresses have balance 0.
func (bc *Blockchain) Balance(address string) float64 {
	var balance float64
	for _, b := range bc.blocks {
		for _, tx := range b.transactions {
			if tx.Sender == address {
				balance -= tx.Amount
			}
			if tx.Recipient == address {
				balance += tx.Amount
			}
		}
	}
	return balance
}

// Balances computes the balance of every address that appears in a
// committed transaction, in one scan.
func (bc *Blockchain) Balances() map[string]float64 {
	balances := make(map[string]float64)
	for _, b := range bc.blocks {
		for _, tx := range b.transactions {
			balances[tx.Sender] -= tx.Amount
			balances[tx.Recipient] += tx.Amount
		}
	}
	return balances
}
