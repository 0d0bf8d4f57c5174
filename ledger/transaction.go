package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedTransaction is returned when a transaction is missing the
// sender, recipient or amount field, or one of them has the wrong type.
var ErrMalformedTransaction = errors.New("malformed transaction")

// Transaction moves Amount from Sender to Recipient. Amounts are not
// validated: zero, negative and overdrawing transactions are accepted.
type Transaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

// UnmarshalJSON decodes a transaction, requiring all three fields.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	var decoded Transaction
	fields := []struct {
		key string
		dst any
	}{
		{"sender", &decoded.Sender},
		{"recipient", &decoded.Recipient},
		{"amount", &decoded.Amount},
	}
	for _, f := range fields {
		value, ok := raw[f.key]
		if !ok || string(value) == "null" {
			return fmt.Errorf("%w: missing field %q", ErrMalformedTransaction, f.key)
		}
		if err := json.Unmarshal(value, f.dst); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrMalformedTransaction, f.key, err)
		}
	}
	*tx = decoded
	return nil
}

func copyTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}
