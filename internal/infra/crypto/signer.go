package crypto

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledgerd/internal/domain"
)

// KeyManager resolves signing key material by key id.
type KeyManager interface {
	Sign(ctx context.Context, kid string, payload []byte) ([]byte, error)
	Public(kid string) (ed25519.PublicKey, error)
}

// ReceiptSigner turns an input hash plus decision metadata into a
// signed receipt. It holds no persistent state; storage is the ledger's
// job.
type ReceiptSigner struct {
	Keys    KeyManager
	KID     string
	Version string
	Clock   func() time.Time
}

func (s *ReceiptSigner) Sign(ctx context.Context, inputHash, policyVersion, decision string) (domain.Receipt, error) {
	if s == nil || s.Keys == nil {
		return domain.Receipt{}, fmt.Errorf("%w: signer not configured", domain.ErrSigningKey)
	}
	issuedAt := s.now().Unix()
	version := s.Version
	if version == "" {
		version = "0.1"
	}
	message := receiptMessage(version, inputHash, policyVersion, decision, issuedAt)
	sig, err := s.Keys.Sign(ctx, s.KID, []byte(message))
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("sign receipt kid=%s: %w", s.KID, err)
	}
	return domain.Receipt{
		Version:       version,
		InputHash:     inputHash,
		PolicyVersion: policyVersion,
		Decision:      decision,
		IssuedAt:      issuedAt,
		SignerKID:     s.KID,
		Sig:           hex.EncodeToString(sig),
	}, nil
}

func (s *ReceiptSigner) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// SignedMessage rebuilds the exact byte string the receipt signature
// covers.
func SignedMessage(r domain.Receipt) string {
	return receiptMessage(r.Version, r.InputHash, r.PolicyVersion, r.Decision, r.IssuedAt)
}

func receiptMessage(version, inputHash, policyVersion, decision string, issuedAt int64) string {
	return strings.Join([]string{
		version,
		inputHash,
		policyVersion,
		decision,
		strconv.FormatInt(issuedAt, 10),
	}, "|")
}

// VerifyReceipt checks the receipt signature against the given public
// key. Any field mutation since signing fails verification.
func VerifyReceipt(r domain.Receipt, pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad public key length %d", domain.ErrSignatureInvalid, len(pub))
	}
	sig, err := hex.DecodeString(r.Sig)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", domain.ErrSignatureInvalid)
	}
	if !ed25519.Verify(pub, []byte(SignedMessage(r)), sig) {
		return domain.ErrSignatureInvalid
	}
	return nil
}
