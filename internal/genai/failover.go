package genai

import (
	"context"
	"errors"
	"time"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/errs"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"go.uber.org/zap"
)

// QuotaExceededMessage is the sentinel answer returned when every
// configured region reported resource exhaustion.
const QuotaExceededMessage = "\nDas globale Limit für die maximale Anzahl an Anfragen an das Large Language Model wurde temporär überschritten. Bitte versuche es in einer Minute nochmal.\n"

// EmptyResponseMessage is the sentinel answer returned when the serving
// region produced a response without any candidates.
const EmptyResponseMessage = "\nEs konnte leider kein Inhalt generiert werden. Die Ursache dafür kann ein Richtlinienverstoß sein. Bitte versuche eine andere Formulierung.\n"

// RetryPolicy decides which attempt failures move the loop to the next
// region. The two policies exist because the chat surfaces disagree: text
// chat historically skips a region on any failure, while the document and
// code surfaces only fail over on resource exhaustion and treat everything
// else as fatal. The asymmetry is per-surface behaviour, kept explicit here
// rather than unified.
type RetryPolicy int

const (
	// RetryResourceExhausted fails over only on the resource-exhausted
	// condition; any other failure aborts the whole request.
	RetryResourceExhausted RetryPolicy = iota
	// RetryAll skips to the next region on any failure.
	RetryAll
)

// Result is the outcome of a successful failover call. Elapsed covers the
// wall clock of the single successful attempt; failed attempts do not
// count towards reported latency.
type Result struct {
	Answer         string
	Region         string
	PromptTokens   int
	ResponseTokens int
	Elapsed        time.Duration
	Response       *Response
}

// attemptOutcome discriminates one region attempt. Driving the loop on
// this tag keeps backend errors from doubling as control flow.
type attemptOutcome int

const (
	attemptSuccess attemptOutcome = iota
	attemptRetryable
	attemptFatal
)

// Orchestrator drives one logical generation request across a prioritized
// region list: strictly sequential, no randomization, no parallel fan-out.
// Worst-case latency is bounded by regions × attempt timeout.
type Orchestrator struct {
	backend        Backend
	attemptTimeout time.Duration
	overallTimeout time.Duration
	logger         *logger.Logger
}

// NewOrchestrator creates a failover orchestrator over the given backend.
func NewOrchestrator(backend Backend, cfg config.GenerationConfig, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		backend:        backend,
		attemptTimeout: cfg.AttemptTimeout,
		overallTimeout: cfg.OverallTimeout,
		logger:         log,
	}
}

// Call tries each region in priority order until one succeeds.
//
// When every region reports resource exhaustion the caller receives the
// quota sentinel answer plus a structured error; a response with zero
// candidates converts to the empty-response sentinel the same way. Any
// other fatal failure (under RetryResourceExhausted) returns a plain
// error, for the top-level boundary to convert.
func (o *Orchestrator) Call(ctx context.Context, req *Request, regions []string, policy RetryPolicy) (Result, *errs.BackendError, error) {
	if o.overallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.overallTimeout)
		defer cancel()
	}

	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return Result{}, nil, err
		}

		outcome, resp, elapsed, err := o.attempt(ctx, region, req)
		switch outcome {
		case attemptSuccess:
			o.logger.Info("Generation succeeded",
				zap.String("region", region),
				zap.Duration("elapsed", elapsed),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("response_tokens", resp.Usage.ResponseTokens),
			)
			return Result{
				Answer:         resp.Text,
				Region:         region,
				PromptTokens:   resp.Usage.PromptTokens,
				ResponseTokens: resp.Usage.ResponseTokens,
				Elapsed:        elapsed,
				Response:       resp,
			}, nil, nil

		case attemptRetryable:
			o.logger.Warn("Region exhausted, trying next",
				zap.String("region", region),
				zap.Error(err),
			)

		case attemptFatal:
			if policy == RetryAll {
				o.logger.Error("Generation failed, trying next region",
					zap.String("region", region),
					zap.Error(err),
				)
				continue
			}
			if errors.Is(err, ErrEmptyCandidates) {
				o.logger.Warn("Generation returned no candidates",
					zap.String("region", region),
				)
				return Result{Answer: EmptyResponseMessage}, errs.EmptyResponseError(err.Error()), nil
			}
			return Result{}, nil, err
		}
	}

	o.logger.Warn("All regions exhausted", zap.Int("regions", len(regions)))
	return Result{Answer: QuotaExceededMessage}, errs.QuotaError(QuotaExceededMessage), nil
}

// attempt runs one region attempt under the per-attempt deadline and
// classifies its outcome.
func (o *Orchestrator) attempt(ctx context.Context, region string, req *Request) (attemptOutcome, *Response, time.Duration, error) {
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := o.backend.Generate(ctx, region, req)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		return attemptSuccess, resp, elapsed, nil
	case IsResourceExhausted(err):
		return attemptRetryable, nil, elapsed, err
	default:
		return attemptFatal, nil, elapsed, err
	}
}
