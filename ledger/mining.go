package ledger

import (
	"context"
	"strings"
)

// cancelCheckInterval is how many nonces are tried between two looks at the
// context.
const cancelCheckInterval = 1 << 12

// MeetsDifficulty reports whether the first difficulty characters of hash
// are all '0'.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty > len(hash) {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

// mineBlock increments the nonce from its current value until the hash meets
// difficulty, returning the number of hashes computed. It returns early with
// the context error if ctx is cancelled.
func mineBlock(ctx context.Context, b *Block, difficulty int) (uint64, error) {
	var attempts uint64
	for !MeetsDifficulty(b.hash, difficulty) {
		if attempts%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return attempts, err
			}
		}
		b.nonce++
		b.hash = b.CalculateHash()
		attempts++
	}
	b.mined = true
	return attempts, nil
}
