package http

import (
	"encoding/hex"
	"errors"
	"net/http"

	"ledgerd/internal/domain"
	"ledgerd/internal/metrics"
	"ledgerd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type anchorItem struct {
	ReceiptID  string `json:"receipt_id"`
	PayloadHex string `json:"payload_hex"`
}

type anchorResponse struct {
	AnchorID   string               `json:"anchor_id"`
	AnchorHash string               `json:"anchor_hash"`
	Proofs     []domain.ProofRecord `json:"proofs"`
}

type issueRequest struct {
	Subject       map[string]any `json:"subject"`
	Action        map[string]any `json:"action"`
	Resource      map[string]any `json:"resource"`
	Context       map[string]any `json:"context"`
	PolicyVersion string         `json:"policy_version"`
	Decision      string         `json:"decision"`
}

type digestRequest struct {
	OpID        string `json:"op_id"`
	PGDigest    string `json:"pg_digest"`
	OtherDigest string `json:"other_digest"`
}

func (s *Server) handleAnchorReceipts(c *gin.Context) {
	if !s.enforceRateLimit(c, "receipts:anchor") {
		return
	}
	var items []anchorItem
	if err := c.ShouldBindJSON(&items); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}

	receipts := make([]domain.LedgerReceipt, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ReceiptID == "" {
			writeErrorCode(c, http.StatusBadRequest, "MISSING_RECEIPT_ID", "receipt_id is required")
			return
		}
		if seen[item.ReceiptID] {
			writeErrorCode(c, http.StatusBadRequest, "DUPLICATE_RECEIPT", "receipt_id repeated in request: "+item.ReceiptID)
			return
		}
		seen[item.ReceiptID] = true
		payload, err := hex.DecodeString(item.PayloadHex)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_PAYLOAD_HEX", "payload_hex is not valid hex for "+item.ReceiptID)
			return
		}
		receipts = append(receipts, domain.LedgerReceipt{
			ReceiptID: item.ReceiptID,
			Payload:   payload,
		})
	}

	anchor, err := s.anchorUC.Anchor(c.Request.Context(), receipts)
	if err != nil {
		writeError(c, err)
		return
	}
	// Proofs are always empty here: notary publication runs in the
	// background and lands via GET /anchors/:anchor_id/proofs.
	c.JSON(http.StatusOK, anchorResponse{
		AnchorID:   anchor.AnchorID,
		AnchorHash: anchor.AnchorHash,
		Proofs:     []domain.ProofRecord{},
	})
}

func (s *Server) handleIssueReceipt(c *gin.Context) {
	if !s.enforceRateLimit(c, "receipts:issue") {
		return
	}
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Decision != domain.DecisionAllow && req.Decision != domain.DecisionDeny {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_DECISION", "decision must be allow or deny")
		return
	}
	result, err := s.issuer.Issue(c.Request.Context(), usecase.IssueInput{
		Subject:       req.Subject,
		Action:        req.Action,
		Resource:      req.Resource,
		Context:       req.Context,
		PolicyVersion: req.PolicyVersion,
		Decision:      req.Decision,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"receipt_id": result.ReceiptID,
		"receipt":    result.Receipt,
	})
}

func (s *Server) handleVerifyReceipt(c *gin.Context) {
	result, err := s.verifier.Verify(c.Request.Context(), c.Param("receipt_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAddDigest(c *gin.Context) {
	if !s.enforceRateLimit(c, "digests:add") {
		return
	}
	var req digestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.OpID == "" {
		writeErrorCode(c, http.StatusBadRequest, "MISSING_OP_ID", "op_id is required")
		return
	}
	for _, digest := range []string{req.PGDigest, req.OtherDigest} {
		if digest == "" {
			continue
		}
		if _, err := hex.DecodeString(digest); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_DIGEST_HEX", "digests must be hex encoded")
			return
		}
	}
	entryID, err := s.digests.Append(c.Request.Context(), domain.DigestRecord{
		OpID:        req.OpID,
		PGDigest:    req.PGDigest,
		OtherDigest: req.OtherDigest,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.DigestsStored.Inc()
	c.JSON(http.StatusOK, gin.H{"entry_id": entryID})
}

func (s *Server) handleAuditQuery(c *gin.Context) {
	// "Nothing found" is a legitimate audit answer, so this path is
	// always 200 with a best-effort body. A missing op_id matches no
	// records and yields the empty bundle.
	c.JSON(http.StatusOK, s.audit.Audit(c.Request.Context(), c.Query("op_id")))
}

func (s *Server) handleAnchorProofs(c *gin.Context) {
	anchorID := c.Param("anchor_id")
	anchor, err := s.anchors.Get(c.Request.Context(), anchorID)
	if err != nil {
		writeError(c, err)
		return
	}
	proofs, err := s.proofs.ListByAnchorID(c.Request.Context(), anchorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"anchor_id":   anchor.AnchorID,
		"anchor_hash": anchor.AnchorHash,
		"proofs":      proofs,
	})
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "STORAGE"
	switch {
	case errors.Is(err, domain.ErrDuplicateReceipt):
		status, code = http.StatusConflict, "DUPLICATE_RECEIPT"
	case errors.Is(err, domain.ErrReceiptAnchored):
		status, code = http.StatusConflict, "RECEIPT_ALREADY_ANCHORED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrNotSerializable):
		status, code = http.StatusBadRequest, "NOT_SERIALIZABLE"
	case errors.Is(err, domain.ErrSignatureInvalid):
		status, code = http.StatusBadRequest, "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrSigningKey):
		status, code = http.StatusInternalServerError, "SIGNING_KEY"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
