package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/crop-advisor-service/internal/advisor"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Recommender answers model-based recommendation requests.
type Recommender interface {
	RecommendML(ctx context.Context, req advisor.MLRequest) (domain.Recommendation, error)
}

// Result is the message published for each answered request.
type Result struct {
	RequestID      string                `json:"request_id"`
	Recommendation domain.Recommendation `json:"recommendation"`
	ProcessedAt    time.Time             `json:"processed_at"`
}

// RecommendationTransformer implements Transformer by decoding an
// advisor.MLRequest from the message value and ranking it.
type RecommendationTransformer struct {
	svc    Recommender
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewTransformer creates a RecommendationTransformer. A nil clock uses real time.
func NewTransformer(svc Recommender, clock clockwork.Clock, logger *slog.Logger) *RecommendationTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RecommendationTransformer{svc: svc, clock: clock, logger: logger}
}

func (t *RecommendationTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	var req advisor.MLRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return domain.OutputEvent{}, fmt.Errorf("decode request: %w", err)
	}
	id := requestID(req, raw)

	rec, err := t.svc.RecommendML(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("request %s: %w", id, err)
	}

	processedAt := t.clock.Now().UTC()
	value, err := json.Marshal(Result{RequestID: id, Recommendation: rec, ProcessedAt: processedAt})
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("serialize result: %w", err)
	}

	return domain.OutputEvent{
		Key:   []byte(id),
		Value: value,
		Headers: map[string]string{
			"outcome":      string(rec.Outcome),
			"model_id":     rec.ModelID,
			"processed_at": processedAt.Format(time.RFC3339),
		},
	}, nil
}

// requestID prefers the ID in the payload, then the message key, and
// otherwise assigns a fresh one.
func requestID(req advisor.MLRequest, raw domain.RawEvent) string {
	switch {
	case req.ID != "":
		return req.ID
	case len(raw.Key) > 0:
		return string(raw.Key)
	default:
		return uuid.NewString()
	}
}
