package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

const HashSize = sha256.Size

// PathStep is one sibling hash on an inclusion path, bottom-up. Left
// marks the sibling as the left operand of the parent hash. When a
// level had an odd element count the duplicated last element is its own
// sibling, recorded as a right-hand step.
type PathStep struct {
	Hash []byte
	Left bool
}

// Root computes the batch commitment over receipt payloads:
//   - empty input commits to SHA256("") (kept for compatibility with
//     previously written anchors)
//   - each payload is hashed individually to form the leaf level
//   - adjacent elements are paired and hashed as SHA256(left||right)
//   - a level with an odd element count pairs its last element with a
//     copy of itself; promoting it unchanged would produce a different
//     root and silently break every historical anchor
//
// The computation is order-sensitive: callers must submit payloads in a
// stable order for reproducible roots.
func Root(payloads [][]byte) []byte {
	if len(payloads) == 0 {
		sum := sha256.Sum256(nil)
		return sum[:]
	}
	level := leafHashes(payloads)
	for len(level) > 1 {
		level = parentLevel(level)
	}
	return level[0]
}

// RootHex is Root encoded as 64 hex characters.
func RootHex(payloads [][]byte) string {
	return hex.EncodeToString(Root(payloads))
}

// ShortID derives the convenience short id from a root: its first 16
// hex characters. Truncation collisions are accepted at this length;
// integrity checks always resolve the full root.
func ShortID(root []byte) string {
	full := hex.EncodeToString(root)
	if len(full) <= 16 {
		return full
	}
	return full[:16]
}

// Paths returns the inclusion path for every leaf, in leaf order. Empty
// input yields no paths; a single leaf has an empty path.
func Paths(payloads [][]byte) [][]PathStep {
	paths := make([][]PathStep, len(payloads))
	if len(payloads) == 0 {
		return paths
	}
	level := leafHashes(payloads)
	position := make([]int, len(payloads))
	for i := range position {
		position[i] = i
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		for leaf := range paths {
			idx := position[leaf]
			sibling := idx ^ 1
			paths[leaf] = append(paths[leaf], PathStep{
				Hash: cloneHash(level[sibling]),
				Left: sibling < idx,
			})
			position[leaf] = idx / 2
		}
		level = parentLevel(level)
	}
	return paths
}

// VerifyPath recomputes the root from a payload and its inclusion path
// and compares it against the expected root.
func VerifyPath(payload []byte, path []PathStep, expectedRoot []byte) bool {
	sum := sha256.Sum256(payload)
	hash := sum[:]
	for _, step := range path {
		if len(step.Hash) != HashSize {
			return false
		}
		if step.Left {
			hash = nodeHash(step.Hash, hash)
		} else {
			hash = nodeHash(hash, step.Hash)
		}
	}
	return bytes.Equal(hash, expectedRoot)
}

func leafHashes(payloads [][]byte) [][]byte {
	level := make([][]byte, len(payloads))
	for i, payload := range payloads {
		sum := sha256.Sum256(payload)
		level[i] = sum[:]
	}
	return level
}

func parentLevel(level [][]byte) [][]byte {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	parents := make([][]byte, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		parents = append(parents, nodeHash(level[i], level[i+1]))
	}
	return parents
}

func nodeHash(left, right []byte) []byte {
	hasher := sha256.New()
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

func cloneHash(hash []byte) []byte {
	out := make([]byte, len(hash))
	copy(out, hash)
	return out
}
