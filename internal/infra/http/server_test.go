package http

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"ledgerd/internal/config"
	"ledgerd/internal/domain"
	"ledgerd/internal/infra/keys/soft"
	"ledgerd/internal/infra/ledgermem"
	"ledgerd/internal/infra/notary"
	"ledgerd/internal/infra/ratelimit"
	"ledgerd/internal/usecase"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:                 ":0",
		SignerKID:                "ledgerd-test",
		SigningPrivateKeySeedHex: strings.Repeat("ab", 32),
		ReceiptSchemaVersion:     "0.1",
		AnchorBatchSize:          64,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true || body["mode"] != "no-db" {
		t.Fatalf("body = %v", body)
	}
}

func TestIssueVerifyAnchorAuditFlow(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	h := srv.Handler()

	// Issue a signed decision receipt.
	rec := doJSON(t, h, http.MethodPost, "/receipts/issue", map[string]any{
		"subject":        map[string]any{"id": "alice"},
		"action":         map[string]any{"name": "deploy"},
		"policy_version": "policy-v2",
		"decision":       "allow",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("issue status = %d body = %s", rec.Code, rec.Body.String())
	}
	var issued struct {
		ReceiptID string         `json:"receipt_id"`
		Receipt   domain.Receipt `json:"receipt"`
	}
	decodeBody(t, rec, &issued)
	if len(issued.ReceiptID) != 64 || issued.Receipt.Sig == "" {
		t.Fatalf("issued = %+v", issued)
	}

	// Verify while unanchored.
	rec = doJSON(t, h, http.MethodGet, "/receipts/"+issued.ReceiptID+"/verify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d body = %s", rec.Code, rec.Body.String())
	}
	var verified struct {
		SignatureValid  bool `json:"signature_valid"`
		DecisionReceipt bool `json:"decision_receipt"`
		Anchored        bool `json:"anchored"`
		InclusionValid  bool `json:"inclusion_valid"`
	}
	decodeBody(t, rec, &verified)
	if !verified.DecisionReceipt || !verified.SignatureValid || verified.Anchored {
		t.Fatalf("unanchored verification = %+v", verified)
	}

	// Anchor a batch of opaque payloads.
	rec = doJSON(t, h, http.MethodPost, "/receipts/anchor", []map[string]any{
		{"receipt_id": "opaque-1", "payload_hex": hex.EncodeToString([]byte("one"))},
		{"receipt_id": "opaque-2", "payload_hex": hex.EncodeToString([]byte("two"))},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("anchor status = %d body = %s", rec.Code, rec.Body.String())
	}
	var anchored struct {
		AnchorID   string `json:"anchor_id"`
		AnchorHash string `json:"anchor_hash"`
	}
	decodeBody(t, rec, &anchored)
	if len(anchored.AnchorID) != 16 || len(anchored.AnchorHash) != 64 {
		t.Fatalf("anchor response = %+v", anchored)
	}
	if !strings.HasPrefix(anchored.AnchorHash, anchored.AnchorID) {
		t.Fatalf("anchor id must prefix the hash: %+v", anchored)
	}

	// An anchored opaque payload proves inclusion without a signature.
	rec = doJSON(t, h, http.MethodGet, "/receipts/opaque-1/verify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}
	decodeBody(t, rec, &verified)
	if verified.DecisionReceipt || !verified.Anchored || !verified.InclusionValid {
		t.Fatalf("anchored verification = %+v", verified)
	}

	// Record a digest checkpoint pointing at the anchor, then audit.
	rec = doJSON(t, h, http.MethodPost, "/digests", map[string]any{
		"op_id":     "op-1",
		"pg_digest": anchored.AnchorHash,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("digest status = %d body = %s", rec.Code, rec.Body.String())
	}
	var digestResp struct {
		EntryID string `json:"entry_id"`
	}
	decodeBody(t, rec, &digestResp)
	if digestResp.EntryID == "" {
		t.Fatalf("entry_id missing")
	}

	rec = doJSON(t, h, http.MethodGet, "/audit/query?op_id=op-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	var bundle usecase.AuditBundle
	decodeBody(t, rec, &bundle)
	if len(bundle.Digests) != 1 || len(bundle.Receipts) != 2 {
		t.Fatalf("bundle = %+v", bundle)
	}
	if bundle.Anchor == nil || bundle.Anchor.AnchorID != anchored.AnchorID {
		t.Fatalf("bundle anchor = %+v", bundle.Anchor)
	}

	// Proofs endpoint: anchor exists, no notary so no proofs.
	rec = doJSON(t, h, http.MethodGet, "/anchors/"+anchored.AnchorID+"/proofs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("proofs status = %d", rec.Code)
	}
	var proofsResp struct {
		AnchorID string               `json:"anchor_id"`
		Proofs   []domain.ProofRecord `json:"proofs"`
	}
	decodeBody(t, rec, &proofsResp)
	if proofsResp.AnchorID != anchored.AnchorID || len(proofsResp.Proofs) != 0 {
		t.Fatalf("proofs response = %+v", proofsResp)
	}
}

func TestAnchorRequestValidation(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	h := srv.Handler()

	cases := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{not json`, "INVALID_JSON"},
		{"missing id", `[{"payload_hex":"00"}]`, "MISSING_RECEIPT_ID"},
		{"bad hex", `[{"receipt_id":"r1","payload_hex":"zz"}]`, "INVALID_PAYLOAD_HEX"},
		{"repeated id", `[{"receipt_id":"r1","payload_hex":"00"},{"receipt_id":"r1","payload_hex":"01"}]`, "DUPLICATE_RECEIPT"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/receipts/anchor", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", tc.name, rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.Code != tc.code {
			t.Fatalf("%s: code = %s, want %s", tc.name, resp.Code, tc.code)
		}
	}
}

func TestIssueRejectsInvalidDecision(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/receipts/issue", map[string]any{
		"subject":  map[string]any{"id": "alice"},
		"decision": "maybe",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "INVALID_DECISION" {
		t.Fatalf("code = %s", resp.Code)
	}
}

func TestAnchorDuplicateAcrossRequests(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	h := srv.Handler()

	body := []map[string]any{{"receipt_id": "r1", "payload_hex": "00"}}
	if rec := doJSON(t, h, http.MethodPost, "/receipts/anchor", body); rec.Code != http.StatusOK {
		t.Fatalf("first anchor status = %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/receipts/anchor", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate anchor status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "DUPLICATE_RECEIPT" {
		t.Fatalf("code = %s", resp.Code)
	}
}

func TestVerifyUnknownReceipt(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/receipts/missing/verify", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "NOT_FOUND" {
		t.Fatalf("code = %s", resp.Code)
	}
}

func TestAuditQueryAlwaysAnswers(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	h := srv.Handler()

	// Audit is best-effort and always 200: a missing op_id and an
	// unknown op both yield the empty bundle.
	for _, target := range []string{"/audit/query", "/audit/query?op_id=never-seen"} {
		rec := doJSON(t, h, http.MethodGet, target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", target, rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != `{"receipts":[],"digests":[],"anchor":null}` {
			t.Fatalf("%s body = %s", target, body)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "NOT_FOUND" {
		t.Fatalf("code = %s", resp.Code)
	}
}

func TestAnchorSurvivesNotaryOutage(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	client, err := notary.NewClient(failing.URL, "", time.Second, failing.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sink := notary.NewSink(client, 2, time.Millisecond).
		WithSleep(func(_ context.Context, _ time.Duration) bool { return true })

	store := ledgermem.NewStore()
	anchorer := &usecase.AnchorReceipts{
		Receipts: store.Receipts(),
		Anchors:  store.Anchors(),
		Proofs:   store.Proofs(),
		Notary:   sink,
		Detach:   func(fn func()) { fn() },
	}
	srv := NewServerWithDeps(testConfig(), ServerDeps{
		Anchorer: anchorer,
		Anchors:  store.Anchors(),
		Proofs:   store.Proofs(),
		Digests:  store.Digests(),
	})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/receipts/anchor", []map[string]any{
		{"receipt_id": "r1", "payload_hex": "00"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("anchor status = %d body = %s", rec.Code, rec.Body.String())
	}
	var anchored struct {
		AnchorID string `json:"anchor_id"`
	}
	decodeBody(t, rec, &anchored)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/anchors/"+anchored.AnchorID+"/proofs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("proofs status = %d", rec.Code)
	}
	var proofsResp struct {
		Proofs []domain.ProofRecord `json:"proofs"`
	}
	decodeBody(t, rec, &proofsResp)
	if len(proofsResp.Proofs) != 0 {
		t.Fatalf("failed notarization must leave no proofs, got %+v", proofsResp.Proofs)
	}
}

func TestAnchorRecordsNotaryProof(t *testing.T) {
	notarySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id":"ext-7"}`))
	}))
	defer notarySrv.Close()

	client, err := notary.NewClient(notarySrv.URL, "", time.Second, notarySrv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	store := ledgermem.NewStore()
	anchorer := &usecase.AnchorReceipts{
		Receipts:  store.Receipts(),
		Anchors:   store.Anchors(),
		Proofs:    store.Proofs(),
		Notary:    notary.NewSink(client, 2, time.Millisecond),
		SignerKID: "ledgerd-test",
		Detach:    func(fn func()) { fn() },
	}
	srv := NewServerWithDeps(testConfig(), ServerDeps{
		Anchorer: anchorer,
		Anchors:  store.Anchors(),
		Proofs:   store.Proofs(),
		Digests:  store.Digests(),
	})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/receipts/anchor", []map[string]any{
		{"receipt_id": "r1", "payload_hex": "00"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("anchor status = %d", rec.Code)
	}
	var anchored struct {
		AnchorID string `json:"anchor_id"`
	}
	decodeBody(t, rec, &anchored)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/anchors/"+anchored.AnchorID+"/proofs", nil)
	var proofsResp struct {
		Proofs []domain.ProofRecord `json:"proofs"`
	}
	decodeBody(t, rec, &proofsResp)
	if len(proofsResp.Proofs) != 1 || proofsResp.Proofs[0].ProviderID != "ext-7" {
		t.Fatalf("proofs = %+v", proofsResp.Proofs)
	}
}

func TestRateLimitEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 1
	cfg.RateLimitWindowSeconds = 60

	store := ledgermem.NewStore()
	srv := NewServerWithDeps(cfg, ServerDeps{
		Digests:     store.Digests(),
		RateLimiter: ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{}),
	})
	h := srv.Handler()

	body := map[string]any{"op_id": "op-1", "pg_digest": "aa"}
	if rec := doJSON(t, h, http.MethodPost, "/digests", body); rec.Code != http.StatusOK {
		t.Fatalf("first digest status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec := doJSON(t, h, http.MethodPost, "/digests", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second digest status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After header missing")
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "RATE_LIMITED" {
		t.Fatalf("code = %s", resp.Code)
	}
}

func TestConfiguredSeedMatchesVerifier(t *testing.T) {
	cfg := testConfig()
	manager := soft.NewManagerFromConfig(cfg)
	pub, err := manager.Public(cfg.SignerKID)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	seed, _ := hex.DecodeString(cfg.SigningPrivateKeySeedHex)
	want := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if !pub.Equal(want) {
		t.Fatalf("configured key mismatch")
	}
}
