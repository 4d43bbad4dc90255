package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"ledgerd/internal/domain"
)

// Canonicalize serializes the decision input to a byte-stable form:
// object keys sorted lexicographically at every nesting level, numbers
// restricted to integers so the same logical input always hashes the
// same regardless of map iteration order or source language.
func Canonicalize(subject, action, resource, context map[string]any) ([]byte, error) {
	input := map[string]any{
		"subject":  emptyIfNil(subject),
		"action":   emptyIfNil(action),
		"resource": emptyIfNil(resource),
		"context":  emptyIfNil(context),
	}
	return CanonicalizeAny(input)
}

// InputHash is the hex SHA-256 over the canonical form of the decision
// input.
func InputHash(subject, action, resource, context map[string]any) (string, error) {
	canonical, err := Canonicalize(subject, action, resource, context)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func CanonicalizeAny(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := writeCanonical(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalizeJSON re-serializes a JSON document canonically. Numbers
// are decoded as json.Number so integer values round-trip exactly.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", domain.ErrNotSerializable, err)
	}
	if err := ensureEOF(dec); err != nil {
		return nil, err
	}
	return CanonicalizeAny(value)
}

func ensureEOF(dec *json.Decoder) error {
	var extra any
	if err := dec.Decode(&extra); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid json: %v", domain.ErrNotSerializable, err)
	}
	return fmt.Errorf("%w: trailing json data", domain.ErrNotSerializable)
}

func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, v)
	case json.Number:
		return writeNumber(buf, v)
	case int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(v, 10))
	case float64:
		return writeFloat(buf, v)
	case float32:
		return writeFloat(buf, float64(v))
	case map[string]any:
		return writeObject(buf, v)
	case []any:
		return writeArray(buf, v)
	case []string:
		arr := make([]any, len(v))
		for i, s := range v {
			arr[i] = s
		}
		return writeArray(buf, arr)
	case json.RawMessage:
		canonical, err := CanonicalizeJSON([]byte(v))
		if err != nil {
			return err
		}
		buf.Write(canonical)
	default:
		return fmt.Errorf("%w: unsupported type %T", domain.ErrNotSerializable, value)
	}
	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

var hexLower = []byte("0123456789abcdef")

func writeNumber(buf *bytes.Buffer, n json.Number) error {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return fmt.Errorf("%w: invalid number %q", domain.ErrNotSerializable, n.String())
	}
	return writeFloat(buf, f)
}

// writeFloat accepts only floats that are exactly representable
// integers. Fractional values must be passed as fixed-precision
// strings so the canonical form never depends on float formatting.
func writeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", domain.ErrNotSerializable)
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return fmt.Errorf("%w: non-integral number %v (encode as string)", domain.ErrNotSerializable, f)
	}
	buf.WriteString(strconv.FormatInt(int64(f), 10))
	return nil
}

func emptyIfNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
