package draft

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/olash/SignalReach-sub000/internal/metrics"
	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/ai"
)

var (
	ErrEmptyPostContext = errors.New("postContext must not be empty")
	// ErrUnavailable hides every upstream failure; details are logged only.
	ErrUnavailable = errors.New("draft generation is temporarily unavailable, please retry")
)

const defaultTimeout = 45 * time.Second

// Service turns a Request into a single reply using a TextGenerator.
type Service struct {
	gen     ai.TextGenerator
	timeout time.Duration
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(gen ai.TextGenerator, opts ...Option) *Service {
	s := &Service{gen: gen, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate validates req, calls the model once, and returns the trimmed text.
// The length limit for short-form platforms is requested in the prompt only;
// the output is not truncated.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.PostContext) == "" {
		s.metrics.IncDraft(metrics.DraftInvalid)
		return "", ErrEmptyPostContext
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.gen.GenerateText(ctx, "", BuildPrompt(req))
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = errors.New("model returned empty text")
	}
	if err != nil {
		util.LoggerFromContext(ctx).Error("draft generation failed", "platform", req.Platform, "tone", req.Tone, "err", err)
		s.metrics.IncDraft(metrics.DraftUnavailable)
		return "", ErrUnavailable
	}
	s.metrics.IncDraft(metrics.DraftOK)
	return text, nil
}
