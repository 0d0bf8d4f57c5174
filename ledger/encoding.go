package ledger

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// The canonical encoding is JSON with sorted keys, ", " and ": " separators,
// ASCII-only strings and shortest round-trip numbers. Amounts that are whole
// numbers are written as integers; timestamps are always written as reals.
// Any sorted-keys JSON dumper with default separators and ASCII escaping
// emits the same bytes.

type member struct {
	key   string
	value func(*bytes.Buffer)
}

func writeObject(buf *bytes.Buffer, members []member) {
	sort.Slice(members, func(i, j int) bool { return members[i].key < members[j].key })
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeString(buf, m.key)
		buf.WriteString(": ")
		m.value(buf)
	}
	buf.WriteByte('}')
}

func writeTransactions(buf *bytes.Buffer, txs []Transaction) {
	buf.WriteByte('[')
	for i, tx := range txs {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeObject(buf, []member{
			{"sender", stringValue(tx.Sender)},
			{"recipient", stringValue(tx.Recipient)},
			{"amount", numberValue(tx.Amount)},
		})
	}
	buf.WriteByte(']')
}

func stringValue(s string) func(*bytes.Buffer) {
	return func(buf *bytes.Buffer) { writeString(buf, s) }
}

func numberValue(f float64) func(*bytes.Buffer) {
	return func(buf *bytes.Buffer) { buf.WriteString(formatNumber(f)) }
}

func floatValue(f float64) func(*bytes.Buffer) {
	return func(buf *bytes.Buffer) { buf.WriteString(formatFloat(f)) }
}

func intValue(n int64) func(*bytes.Buffer) {
	return func(buf *bytes.Buffer) { buf.WriteString(strconv.FormatInt(n, 10)) }
}

func uintValue(n uint64) func(*bytes.Buffer) {
	return func(buf *bytes.Buffer) { buf.WriteString(strconv.FormatUint(n, 10)) }
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteByte(byte(r))
			case r > 0xffff:
				r1, r2 := utf16.EncodeRune(r)
				writeUnicodeEscape(buf, r1)
				writeUnicodeEscape(buf, r2)
			default:
				writeUnicodeEscape(buf, r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}

// formatNumber renders integral values below 1e16 as integers and everything
// else like formatFloat.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		if f == 0 {
			return "0"
		}
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return formatFloat(f)
}

// formatFloat always renders a real number: the shortest digits that
// round-trip, in fixed notation for decimal exponents in [-4, 16) and
// exponent notation outside it. Integral values keep a ".0" suffix.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	exp := decimalExponent(f)
	if exp < -4 || exp >= 16 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) {
		s += ".0"
	}
	return s
}

func decimalExponent(f float64) int {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.LastIndexByte(s, 'e')
	exp, _ := strconv.Atoi(s[i+1:])
	return exp
}
