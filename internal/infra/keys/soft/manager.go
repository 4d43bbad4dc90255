package soft

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"ledgerd/internal/config"
	"ledgerd/internal/domain"
)

// Manager holds ed25519 private keys in process memory, either injected
// directly or loaded lazily from environment configuration for the
// configured signer kid. One instance is shared by the signer and the
// verifier across requests, so key access is mutex-guarded.
type Manager struct {
	mu   sync.Mutex
	keys map[string]ed25519.PrivateKey

	configuredKID     string
	privateKeyBase64  string
	privateKeySeedHex string
}

func NewManager(keys map[string]ed25519.PrivateKey) *Manager {
	out := make(map[string]ed25519.PrivateKey, len(keys))
	for kid, key := range keys {
		out[kid] = append(ed25519.PrivateKey(nil), key...)
	}
	return &Manager{keys: out}
}

func NewManagerFromConfig(cfg config.Config) *Manager {
	return &Manager{
		keys:              map[string]ed25519.PrivateKey{},
		configuredKID:     cfg.SignerKID,
		privateKeyBase64:  cfg.SigningPrivateKeyBase64,
		privateKeySeedHex: cfg.SigningPrivateKeySeedHex,
	}
}

func (m *Manager) Sign(_ context.Context, kid string, payload []byte) ([]byte, error) {
	key, err := m.lookup(kid)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(key, payload), nil
}

func (m *Manager) Public(kid string) (ed25519.PublicKey, error) {
	key, err := m.lookup(kid)
	if err != nil {
		return nil, err
	}
	return key.Public().(ed25519.PublicKey), nil
}

func (m *Manager) lookup(kid string) (ed25519.PrivateKey, error) {
	if m == nil {
		return nil, domain.ErrSigningKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.keys[kid]; ok {
		return key, nil
	}
	if kid != "" && kid == m.configuredKID {
		if key := m.loadConfiguredKey(); key != nil {
			m.keys[kid] = key
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: no key material for kid %q", domain.ErrSigningKey, kid)
}

func (m *Manager) loadConfiguredKey() ed25519.PrivateKey {
	if key := readPrivateKeyBase64(m.privateKeyBase64); key != nil {
		return key
	}
	return readPrivateKeySeedHex(m.privateKeySeedHex)
}

func readPrivateKeyBase64(value string) ed25519.PrivateKey {
	if value == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		return nil
	}
	return ed25519.PrivateKey(raw)
}

func readPrivateKeySeedHex(value string) ed25519.PrivateKey {
	if value == "" {
		return nil
	}
	raw, err := hex.DecodeString(value)
	if err != nil || len(raw) != ed25519.SeedSize {
		return nil
	}
	return ed25519.NewKeyFromSeed(raw)
}
