package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func leaf(payload []byte) []byte {
	sum := sha256.Sum256(payload)
	return sum[:]
}

func node(left, right []byte) []byte {
	hasher := sha256.New()
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

func TestRootEmptyInput(t *testing.T) {
	sum := sha256.Sum256(nil)
	if got := Root(nil); !bytes.Equal(got, sum[:]) {
		t.Fatalf("empty root = %x, want SHA256 of empty input", got)
	}
	if got := RootHex([][]byte{}); got != hex.EncodeToString(sum[:]) {
		t.Fatalf("empty root hex = %s", got)
	}
}

func TestRootSingleLeaf(t *testing.T) {
	payload := []byte("only")
	if got := Root([][]byte{payload}); !bytes.Equal(got, leaf(payload)) {
		t.Fatalf("single-leaf root must equal the leaf hash, got %x", got)
	}
}

func TestRootTwoLeaves(t *testing.T) {
	a, b := []byte{0x00}, []byte{0x01}
	want := node(leaf(a), leaf(b))
	if got := Root([][]byte{a, b}); !bytes.Equal(got, want) {
		t.Fatalf("two-leaf root = %x, want %x", got, want)
	}
}

func TestRootOddCountDuplicatesLast(t *testing.T) {
	a, b, c := []byte("a"), []byte("b"), []byte("c")
	// Bottom level pads to [a b c c]; the root must reflect that exact
	// shape, not a promoted odd node.
	want := node(node(leaf(a), leaf(b)), node(leaf(c), leaf(c)))
	if got := Root([][]byte{a, b, c}); !bytes.Equal(got, want) {
		t.Fatalf("three-leaf root = %x, want %x", got, want)
	}
}

func TestRootOrderSensitive(t *testing.T) {
	a, b := []byte("a"), []byte("b")
	if bytes.Equal(Root([][]byte{a, b}), Root([][]byte{b, a})) {
		t.Fatalf("swapping leaf order must change the root")
	}
}

func TestShortID(t *testing.T) {
	root := Root([][]byte{[]byte("x")})
	id := ShortID(root)
	if len(id) != 16 {
		t.Fatalf("short id length = %d, want 16", len(id))
	}
	if full := hex.EncodeToString(root); full[:16] != id {
		t.Fatalf("short id %s is not a prefix of %s", id, full)
	}
}

func TestPathsVerifyForEveryLeaf(t *testing.T) {
	for size := 1; size <= 9; size++ {
		payloads := make([][]byte, size)
		for i := range payloads {
			payloads[i] = []byte(fmt.Sprintf("payload-%d", i))
		}
		root := Root(payloads)
		paths := Paths(payloads)
		if len(paths) != size {
			t.Fatalf("size %d: got %d paths", size, len(paths))
		}
		for i, path := range paths {
			if !VerifyPath(payloads[i], path, root) {
				t.Fatalf("size %d: path for leaf %d does not verify", size, i)
			}
		}
	}
}

func TestSingleLeafHasEmptyPath(t *testing.T) {
	paths := Paths([][]byte{[]byte("only")})
	if len(paths) != 1 || len(paths[0]) != 0 {
		t.Fatalf("single-leaf path should be empty, got %v", paths)
	}
}

func TestVerifyPathRejectsWrongPayload(t *testing.T) {
	payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	root := Root(payloads)
	paths := Paths(payloads)
	if VerifyPath([]byte("tampered"), paths[0], root) {
		t.Fatalf("tampered payload must not verify")
	}
	if VerifyPath(payloads[0], paths[1], root) {
		t.Fatalf("path of another leaf must not verify")
	}
	if VerifyPath(payloads[0], []PathStep{{Hash: []byte("short"), Left: true}}, root) {
		t.Fatalf("malformed step hash must not verify")
	}
}

func TestDuplicatedLastLeafPathUsesItselfAsSibling(t *testing.T) {
	payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	paths := Paths(payloads)
	last := paths[2]
	if len(last) != 2 {
		t.Fatalf("path length = %d, want 2", len(last))
	}
	if last[0].Left {
		t.Fatalf("duplicated sibling must be recorded as a right-hand step")
	}
	if !bytes.Equal(last[0].Hash, leaf(payloads[2])) {
		t.Fatalf("duplicated leaf must be its own sibling")
	}
}
