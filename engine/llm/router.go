package llm

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/newdataengg/dev-career-compass/pkg/metrics"
	"github.com/newdataengg/dev-career-compass/pkg/resilience"
)

// FallbackIndex marks a result produced by the canned local fallback
// rather than a configured provider.
const FallbackIndex = -1

// FallbackName is the provider name recorded for the canned fallback.
const FallbackName = "fallback"

// DefaultFallbackText is returned when every provider has failed.
const DefaultFallbackText = "I could not reach a language model to answer this right now. " +
	"Please try again in a moment; your question has not been lost."

// Confidence baselines by provider position. The canned fallback stays at
// a fixed low confidence with no bonuses.
const (
	primaryConfidence   = 0.90
	secondaryConfidence = 0.75
	tertiaryConfidence  = 0.60
	fallbackConfidence  = 0.30
	longReplyBonus      = 0.02
	contextPresentBonus = 0.05
	longReplyRuneCutoff = 200
)

// Result is the outcome of one routed generation. Callers always get a
// Result; provider failures are absorbed by the chain.
type Result struct {
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	Provider      string  `json:"provider"`
	ProviderIndex int     `json:"provider_index"` // FallbackIndex when exhausted
}

// Options configures the router.
type Options struct {
	// Timeout bounds each individual provider attempt.
	Timeout time.Duration
	// FallbackText overrides DefaultFallbackText when non-empty.
	FallbackText string
	// Breaker configures the per-provider circuit breakers.
	Breaker resilience.BreakerOpts
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout: 15 * time.Second,
		Breaker: resilience.DefaultBreakerOpts,
	}
}

// Router tries providers strictly in priority order, never concurrently,
// so a slow primary never causes duplicate billed calls.
type Router struct {
	providers []Provider
	breakers  []*resilience.Breaker
	opts      Options
	logger    *slog.Logger

	lastUsed atomic.Int64 // observability only; benign races acceptable

	successes []*metrics.Counter
	failures  []*metrics.Counter
	exhausted *metrics.Counter
}

// NewRouter creates a router over the given priority-ordered providers.
// reg may be nil to disable metrics.
func NewRouter(providers []Provider, opts Options, reg *metrics.Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	r := &Router{
		providers: providers,
		breakers:  make([]*resilience.Breaker, len(providers)),
		opts:      opts,
		logger:    logger,
	}
	r.lastUsed.Store(FallbackIndex)
	for i := range providers {
		r.breakers[i] = resilience.NewBreaker(opts.Breaker)
	}
	if reg != nil {
		r.successes = make([]*metrics.Counter, len(providers))
		r.failures = make([]*metrics.Counter, len(providers))
		for i, p := range providers {
			r.successes[i] = reg.Counter(metrics.WithLabels("llm_provider_success_total", "provider", p.Name()), "Successful generations per provider")
			r.failures[i] = reg.Counter(metrics.WithLabels("llm_provider_failure_total", "provider", p.Name()), "Failed generations per provider")
		}
		r.exhausted = reg.Counter("llm_chain_exhausted_total", "Calls answered by the canned fallback")
	}
	return r
}

// Generate walks the provider chain for the prompt. hasContext reports
// whether the retrieval bundle backing the prompt was non-empty; it feeds
// the confidence heuristic. The only error ever returned is the caller's
// own context cancellation.
func (r *Router) Generate(ctx context.Context, prompt string, hasContext bool) (Result, error) {
	for i, p := range r.providers {
		if err := ctx.Err(); err != nil {
			// Caller cancelled: discard partial work, do not fall back.
			return Result{}, err
		}

		text, err := r.tryProvider(ctx, i, p, prompt)
		if err != nil {
			r.logger.Warn("llm: provider failed, trying next",
				"provider", p.Name(), "index", i, "err", err)
			if r.failures != nil {
				r.failures[i].Inc()
			}
			continue
		}

		r.lastUsed.Store(int64(i))
		if r.successes != nil {
			r.successes[i].Inc()
		}
		return Result{
			Text:          text,
			Confidence:    confidence(i, text, hasContext),
			Provider:      p.Name(),
			ProviderIndex: i,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	r.logger.Warn("llm: all providers exhausted, using canned fallback")
	r.lastUsed.Store(FallbackIndex)
	if r.exhausted != nil {
		r.exhausted.Inc()
	}
	text := r.opts.FallbackText
	if text == "" {
		text = DefaultFallbackText
	}
	return Result{
		Text:          text,
		Confidence:    fallbackConfidence,
		Provider:      FallbackName,
		ProviderIndex: FallbackIndex,
	}, nil
}

func (r *Router) tryProvider(ctx context.Context, i int, p Provider, prompt string) (string, error) {
	var text string
	err := r.breakers[i].Call(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
		out, err := p.Generate(callCtx, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	return text, err
}

// LastUsed returns the index of the provider that served the most recent
// call, or FallbackIndex. Observability only.
func (r *Router) LastUsed() int {
	return int(r.lastUsed.Load())
}

// confidence derives a score from provider position, reply length, and
// context presence, clamped to [0,1].
func confidence(index int, text string, hasContext bool) float64 {
	var c float64
	switch index {
	case 0:
		c = primaryConfidence
	case 1:
		c = secondaryConfidence
	default:
		c = tertiaryConfidence
	}
	if utf8.RuneCountInString(text) >= longReplyRuneCutoff {
		c += longReplyBonus
	}
	if hasContext {
		c += contextPresentBonus
	}
	if c > 1 {
		c = 1
	}
	return c
}
