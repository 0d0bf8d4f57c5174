package ledger

import (
	"log/slog"
	"time"
)

// Defaults used by NewBlockchain when no option overrides them.
const (
	DefaultDifficulty   = 4
	DefaultMiningReward = 10
	// DefaultRewardSender is the sender of the synthesized reward transaction.
	DefaultRewardSender = "network"
)

// Option configures a Blockchain before its genesis block is mined.
type Option func(Blockchain) Blockchain

// WithDifficulty sets the number of leading zero hex digits a block hash
// needs. It must be in [0, 64].
func WithDifficulty(difficulty int) Option {
	return func(bc Blockchain) Blockchain {
		bc.difficulty = difficulty
		return bc
	}
}

// WithMiningReward sets the amount credited to the miner by MinePending.
func WithMiningReward(reward float64) Option {
	return func(bc Blockchain) Blockchain {
		bc.miningReward = reward
		return bc
	}
}

// WithRewardSender sets the sender of the reward transaction.
func WithRewardSender(sender string) Option {
	return func(bc Blockchain) Blockchain {
		bc.rewardSender = sender
		return bc
	}
}

// WithClock replaces time.Now as the source of block timestamps.
func WithClock(now func() time.Time) Option {
	return func(bc Blockchain) Blockchain {
		bc.now = now
		return bc
	}
}

// WithLogger sets the logger used for mining events.
func WithLogger(logger *slog.Logger) Option {
	return func(bc Blockchain) Blockchain {
		bc.logger = logger
		return bc
	}
}
