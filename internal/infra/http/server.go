package http

import (
	"context"
	"net/http"
	"time"

	"ledgerd/internal/config"
	"ledgerd/internal/domain"
	"ledgerd/internal/infra/crypto"
	"ledgerd/internal/infra/db"
	"ledgerd/internal/infra/keys/soft"
	"ledgerd/internal/infra/ledgermem"
	"ledgerd/internal/infra/notary"
	"ledgerd/internal/infra/ratelimit"
	"ledgerd/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	anchorUC *usecase.AnchorReceipts
	issuer   *usecase.ReceiptIssuer
	verifier *usecase.ReceiptVerifier
	audit    *usecase.AuditQuery
	batcher  *usecase.Batcher

	anchors domain.AnchorRepository
	proofs  domain.ProofRepository
	digests domain.DigestRepository

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

// ServerDeps lets tests and alternative wiring inject every collaborator.
type ServerDeps struct {
	Anchorer    *usecase.AnchorReceipts
	Issuer      *usecase.ReceiptIssuer
	Verifier    *usecase.ReceiptVerifier
	Audit       *usecase.AuditQuery
	Anchors     domain.AnchorRepository
	Proofs      domain.ProofRepository
	Digests     domain.DigestRepository
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		r:        r,
		anchorUC: deps.Anchorer,
		issuer:   deps.Issuer,
		verifier: deps.Verifier,
		audit:    deps.Audit,
		anchors:  deps.Anchors,
		proofs:   deps.Proofs,
		digests:  deps.Digests,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	keyManager := soft.NewManagerFromConfig(s.cfg)
	signer := &crypto.ReceiptSigner{
		Keys:    keyManager,
		KID:     s.cfg.SignerKID,
		Version: s.cfg.ReceiptSchemaVersion,
	}

	var (
		receipts domain.ReceiptRepository
		anchors  domain.AnchorRepository
		proofs   domain.ProofRepository
		digests  domain.DigestRepository
	)
	if s.store != nil && s.store.DB != nil {
		receipts = db.NewReceiptRepository(s.store.DB)
		anchors = db.NewAnchorRepository(s.store.DB)
		proofs = db.NewProofRepository(s.store.DB)
		digests = db.NewDigestRepository(s.store.DB)
	} else {
		mem := ledgermem.NewStore()
		receipts = mem.Receipts()
		anchors = mem.Anchors()
		proofs = mem.Proofs()
		digests = mem.Digests()
	}

	sink := notary.NewSinkFromConfig(s.cfg)

	s.anchorUC = &usecase.AnchorReceipts{
		Receipts:  receipts,
		Anchors:   anchors,
		Proofs:    proofs,
		Notary:    sink,
		SignerKID: s.cfg.SignerKID,
	}
	s.issuer = &usecase.ReceiptIssuer{
		Signer:   signer,
		Receipts: receipts,
	}
	s.verifier = &usecase.ReceiptVerifier{
		Receipts: receipts,
		Keys:     keyManager,
	}
	s.audit = &usecase.AuditQuery{
		Receipts: receipts,
		Digests:  digests,
		Anchors:  anchors,
		Proofs:   proofs,
	}
	if interval := s.cfg.AnchorInterval(); interval > 0 {
		s.batcher = &usecase.Batcher{
			Anchorer:  s.anchorUC,
			BatchSize: s.cfg.AnchorBatchSize,
			Interval:  interval,
		}
	}
	s.anchors = anchors
	s.proofs = proofs
	s.digests = digests

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "no-db"
		if s.store != nil && s.store.DB != nil {
			mode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "mode": mode})
	})
	s.r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.r.POST("/receipts/anchor", s.handleAnchorReceipts)
	s.r.POST("/receipts/issue", s.handleIssueReceipt)
	s.r.GET("/receipts/:receipt_id/verify", s.handleVerifyReceipt)
	s.r.POST("/digests", s.handleAddDigest)
	s.r.GET("/audit/query", s.handleAuditQuery)
	s.r.GET("/anchors/:anchor_id/proofs", s.handleAnchorProofs)

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown route")
	})
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	if s.batcher != nil {
		go s.batcher.Run(context.Background())
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
