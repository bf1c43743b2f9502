package dlp

import (
	"context"
	"fmt"

	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"go.uber.org/zap"
)

// Inspector is the detection backend contract. Implementations report
// findings with codepoint offsets into the given text. The text length is
// not limited here; chunking oversized documents is the caller's job.
//
// An Inspector failure means the detection capability itself is unavailable.
// That is fatal for the request and is never retried internally.
type Inspector interface {
	Inspect(ctx context.Context, text, jurisdiction string) (InspectResult, error)
}

// Detector wraps an Inspector with result caching and reporting helpers.
type Detector struct {
	inspector Inspector
	cache     *ResultCache
	logger    *logger.Logger
}

// NewDetector creates a detector around the given inspector. The cache may
// be nil, in which case every inspection goes to the backend.
func NewDetector(inspector Inspector, cache *ResultCache, log *logger.Logger) *Detector {
	return &Detector{
		inspector: inspector,
		cache:     cache,
		logger:    log,
	}
}

// Inspect runs the detection backend over the text and returns its findings.
func (d *Detector) Inspect(ctx context.Context, text, jurisdiction string) (InspectResult, error) {
	if d.cache != nil {
		if result, ok := d.cache.Get(ctx, text, jurisdiction); ok {
			return result, nil
		}
	}

	result, err := d.inspector.Inspect(ctx, text, jurisdiction)
	if err != nil {
		return InspectResult{}, fmt.Errorf("detection backend unavailable: %w", err)
	}

	d.logger.Debug("Inspection completed",
		zap.Int("findings", len(result.Findings)),
		zap.Bool("truncated", result.Truncated),
		zap.String("jurisdiction", jurisdiction),
	)

	if d.cache != nil {
		d.cache.Set(ctx, text, jurisdiction, result)
	}

	return result, nil
}
