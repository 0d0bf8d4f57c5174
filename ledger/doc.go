// Package ledger implements a minimal append-only proof-of-work ledger:
// a chain of blocks, each bound to its predecessor by hash, a buffer of
// pending transactions and a balance query over the full history.
//
// # Core Components
//
// Block: one chain position holding an ordered list of transactions, a
// timestamp, the predecessor hash, a nonce and the content hash. Only the
// miner in this package can change a block's nonce.
//
// Blockchain: the ordered sequence of blocks plus the pending-transaction
// buffer. It mines the genesis block at construction, mines and appends new
// blocks, validates the hash chain and computes balances.
//
// # Hashing
//
// The block hash is the SHA-256 digest of a canonical encoding of index,
// transactions, timestamp, previous hash and nonce. The encoding sorts keys
// and formats numbers and strings deterministically, so two implementations
// given the same field values hash the same bytes.
//
// # Concurrency
//
// A Blockchain is not safe for concurrent use. Reads (IsValid, Balance and
// the getters) may run together, but any mutating call must be serialized
// by the caller. Mining is CPU bound and only stops early when the context
// passed to the *Context variants is cancelled.
package ledger
