package db

import (
	"encoding/json"
	"errors"

	"ledgerd/internal/domain"

	"github.com/google/uuid"
)

var errDBUnavailable = errors.New("database unavailable")

func NewUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func stringPtrIfNotEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func copyBytes(in []byte) []byte {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func marshalMerklePath(path []domain.MerkleStep) ([]byte, error) {
	if len(path) == 0 {
		return nil, nil
	}
	return json.Marshal(path)
}

func unmarshalMerklePath(raw []byte) []domain.MerkleStep {
	if len(raw) == 0 {
		return nil
	}
	var path []domain.MerkleStep
	if err := json.Unmarshal(raw, &path); err != nil {
		return nil
	}
	return path
}
