package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReceiptsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_receipts_stored_total",
		Help: "Total number of receipt rows appended to the ledger.",
	})

	ReceiptsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerd_receipts_issued_total",
		Help: "Total number of decision receipts signed, labelled by decision.",
	}, []string{"decision"})

	AnchorsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_anchors_created_total",
		Help: "Total number of anchors committed.",
	})

	AnchorBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerd_anchor_batch_size",
		Help:    "Number of receipts per anchor batch.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})

	NotaryPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerd_notary_publish_attempts_total",
		Help: "Total notary publish attempts, labelled by outcome.",
	}, []string{"outcome"})

	NotaryExhaustions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_notary_exhaustions_total",
		Help: "Total anchors left unnotarized after all retry attempts failed.",
	})

	DigestsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerd_digests_stored_total",
		Help: "Total number of cross-system digest checkpoints stored.",
	})
)
