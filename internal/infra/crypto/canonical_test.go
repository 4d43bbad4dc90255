package crypto

import (
	"errors"
	"testing"

	"ledgerd/internal/domain"
)

func TestCanonicalizeSortsKeysAtEveryLevel(t *testing.T) {
	got, err := Canonicalize(
		map[string]any{"zeta": 1, "alpha": map[string]any{"b": 2, "a": 1}},
		map[string]any{"name": "read"},
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"action":{"name":"read"},"context":{},"resource":{},"subject":{"alpha":{"a":1,"b":2},"zeta":1}}`
	if string(got) != want {
		t.Fatalf("canonical form mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestCanonicalizeJSONReordersInput(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`{"b": 2, "a": {"y": [1, "x"], "x": true}}`))
	if err != nil {
		t.Fatalf("canonicalize json: %v", err)
	}
	want := `{"a":{"x":true,"y":[1,"x"]},"b":2}`
	if string(got) != want {
		t.Fatalf("canonical form mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestCanonicalizeJSONKeepsLargeIntegersExact(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`{"n":9007199254740993}`))
	if err != nil {
		t.Fatalf("canonicalize json: %v", err)
	}
	// 2^53+1 is not representable as float64; json.Number must keep it.
	if string(got) != `{"n":9007199254740993}` {
		t.Fatalf("integer mangled: %s", got)
	}
}

func TestCanonicalizeEscapesStrings(t *testing.T) {
	got, err := CanonicalizeAny(map[string]any{"s": "a\"b\\c\n\t\x01"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"s":"a\"b\\c\n\t\u0001"}`
	if string(got) != want {
		t.Fatalf("escaping mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestCanonicalizeRejectsNonIntegralNumbers(t *testing.T) {
	cases := []string{`{"x":1.5}`, `{"x":1e-3}`, `{"x":2.000000001}`}
	for _, input := range cases {
		if _, err := CanonicalizeJSON([]byte(input)); !errors.Is(err, domain.ErrNotSerializable) {
			t.Fatalf("input %s: want ErrNotSerializable, got %v", input, err)
		}
	}
	// Integral floats written with a decimal point are fine.
	got, err := CanonicalizeJSON([]byte(`{"x":3.0}`))
	if err != nil {
		t.Fatalf("integral float rejected: %v", err)
	}
	if string(got) != `{"x":3}` {
		t.Fatalf("integral float form: %s", got)
	}
}

func TestCanonicalizeJSONRejectsInvalidJSON(t *testing.T) {
	for _, input := range []string{`{`, `{"a":1}{"b":2}`, `{"a":1} trailing`} {
		if _, err := CanonicalizeJSON([]byte(input)); !errors.Is(err, domain.ErrNotSerializable) {
			t.Fatalf("input %q: want ErrNotSerializable, got %v", input, err)
		}
	}
}

func TestInputHashIsStable(t *testing.T) {
	subject := map[string]any{"id": "alice", "groups": []string{"ops", "dev"}}
	action := map[string]any{"name": "publish"}
	first, err := InputHash(subject, action, nil, map[string]any{"ip": "10.0.0.1"})
	if err != nil {
		t.Fatalf("input hash: %v", err)
	}
	second, err := InputHash(subject, action, nil, map[string]any{"ip": "10.0.0.1"})
	if err != nil {
		t.Fatalf("input hash: %v", err)
	}
	if first != second {
		t.Fatalf("hash not deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("want 64 hex chars, got %d", len(first))
	}
	different, err := InputHash(subject, action, nil, map[string]any{"ip": "10.0.0.2"})
	if err != nil {
		t.Fatalf("input hash: %v", err)
	}
	if different == first {
		t.Fatalf("different inputs hashed identically")
	}
}
