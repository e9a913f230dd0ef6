package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
	"MarketPulse/pkg/util"
)

// QuoteIngest consumes upstream quote snapshots from Kafka and publishes
// them into the broker layer, where the supervisor and grader read them.
type QuoteIngest struct {
	topic   string
	quotes  domrepo.QuoteSource
	tracker *Yearly
	metrics domrepo.Metrics
	now     func() time.Time
}

func NewQuoteIngest(topic string, quotes domrepo.QuoteSource, tracker *Yearly, metrics domrepo.Metrics) *QuoteIngest {
	return &QuoteIngest{topic: topic, quotes: quotes, tracker: tracker, metrics: metrics, now: time.Now}
}

func (h *QuoteIngest) Topic() string { return h.topic }

// incoming message schema mirrors the upstream feed snapshot
func (h *QuoteIngest) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol    string  `json:"symbol"`
		Last      float64 `json:"last"`
		Bid       float64 `json:"bid"`
		Ask       float64 `json:"ask"`
		Volume    float64 `json:"volume"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Open      float64 `json:"open"`
		Close     float64 `json:"close"`
		Timestamp string  `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return err
	}
	if m.Symbol == "" {
		h.metrics.RecordError("ingest_empty_symbol")
		return nil // drop, nothing to key on
	}

	q := &models.Quote{
		Symbol:    m.Symbol,
		Last:      m.Last,
		Bid:       m.Bid,
		Ask:       m.Ask,
		Volume:    m.Volume,
		High:      m.High,
		Low:       m.Low,
		Open:      m.Open,
		Close:     m.Close,
		Timestamp: util.ParseTimeDefault(m.Timestamp, h.now()),
	}

	if err := h.quotes.Publish(ctx, q); err != nil {
		h.metrics.RecordError("ingest_publish")
		return err
	}
	h.metrics.RecordLastPrice(q.Symbol, q.Last)

	if h.tracker != nil && q.HasPrice() {
		// live 52-week update; a tracker hiccup never fails the ingest
		if _, err := h.tracker.Observe(ctx, q.Symbol, q.Last, q.Timestamp); err != nil {
			h.metrics.RecordError("ingest_52w")
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*QuoteIngest)(nil)
