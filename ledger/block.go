package ledger

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"go.dedis.ch/kyber/v4/suites"
)

// suite provides the block digest; the Ed25519 suite hashes with SHA-256.
var suite suites.Suite = suites.MustFind("Ed25519")

// Block is one position of the chain. A block is unmined until a mining
// call has found a nonce whose hash meets the difficulty, and is treated as
// read-only from then on. Fields are only reachable through accessors.
type Block struct {
	index        int
	transactions []Transaction
	timestamp    float64
	previousHash string
	nonce        uint64
	hash         string
	mined        bool
}

// NewBlock builds an unmined block with nonce 0 and its hash already
// computed.
func NewBlock(index int, transactions []Transaction, timestamp float64, previousHash string) *Block {
	b := &Block{
		index:        index,
		transactions: copyTransactions(transactions),
		timestamp:    timestamp,
		previousHash: previousHash,
	}
	b.hash = b.CalculateHash()
	return b
}

// Index returns the block's position in the chain, 0 for genesis.
func (b *Block) Index() int { return b.index }

// Transactions returns a copy of the block's transactions in insertion order.
func (b *Block) Transactions() []Transaction { return copyTransactions(b.transactions) }

// Timestamp returns the creation time in Unix seconds.
func (b *Block) Timestamp() float64 { return b.timestamp }

// PreviousHash returns the hash of the predecessor, "0" for genesis.
func (b *Block) PreviousHash() string { return b.previousHash }

// Nonce returns the value found by mining, 0 while unmined.
func (b *Block) Nonce() uint64 { return b.nonce }

// Hash returns the stored hash, which CalculateHash does not update.
func (b *Block) Hash() string { return b.hash }

// Mined reports whether a mining call has completed on the block.
func (b *Block) Mined() bool { return b.mined }

// CalculateHash returns the lowercase hex SHA-256 digest of the canonical
// encoding of index, transactions, timestamp, previous hash and nonce.
// It has no side effects.
func (b *Block) CalculateHash() string {
	h := suite.Hash()
	h.Write(b.canonical())
	return hex.EncodeToString(h.Sum(nil))
}

func (b *Block) canonical() []byte {
	var buf bytes.Buffer
	writeObject(&buf, []member{
		{"index", intValue(int64(b.index))},
		{"transactions", func(buf *bytes.Buffer) { writeTransactions(buf, b.transactions) }},
		{"timestamp", floatValue(b.timestamp)},
		{"previous_hash", stringValue(b.previousHash)},
		{"nonce", uintValue(b.nonce)},
	})
	return buf.Bytes()
}

// blockJSON is the wire form of a block.
type blockJSON struct {
	Index        int           `json:"index"`
	Transactions []Transaction `json:"transactions"`
	Timestamp    float64       `json:"timestamp"`
	PreviousHash string        `json:"previous_hash"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// MarshalJSON encodes the block with its stored hash.
func (b *Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockJSON{
		Index:        b.index,
		Transactions: copyTransactions(b.transactions),
		Timestamp:    b.timestamp,
		PreviousHash: b.previousHash,
		Nonce:        b.nonce,
		Hash:         b.hash,
	})
}
