package dlp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"go.uber.org/zap"
)

// maskRune overwrites sensitive codepoints in mask mode. Each masked span
// keeps its exact codepoint length so the remaining findings' offsets stay
// valid after every splice.
const maskRune = '*'

// chunkJoiner glues independently anonymized chunks back together. The '|'
// character is reserved for this and stripped from chunks before inspection.
const (
	chunkJoiner       = " "
	reservedDelimiter = "|"
)

// Redaction failures. Neither mode ever returns partially redacted text
// alongside an error.
var (
	// ErrTooManyFindings aborts mask mode when the detector reports a
	// truncated finding list for any chunk.
	ErrTooManyFindings = errors.New(msgTruncatedFindings)
	// ErrPseudonymization aborts pseudonymization on any generator or
	// mapping failure.
	ErrPseudonymization = errors.New(msgPseudonymizationFailed)
)

// generatorFunc synthesizes a replacement value for one matched quote.
type generatorFunc func(r *Redactor, quote string) (string, error)

// Redactor rewrites text so it can cross the trust boundary: mask mode
// overwrites sensitive spans with fixed-length filler, pseudonymization
// substitutes realistic synthetic values.
type Redactor struct {
	detector     *Detector
	faker        *gofakeit.Faker
	generators   map[InfoType]generatorFunc
	maxChunkSize int
	logger       *logger.Logger
}

// NewRedactor creates a redactor over the given detector.
func NewRedactor(detector *Detector, det config.DetectionConfig, red config.RedactionConfig, log *logger.Logger) *Redactor {
	return &Redactor{
		detector:     detector,
		faker:        gofakeit.New(red.Seed),
		generators:   defaultGenerators(),
		maxChunkSize: det.MaxChunkSize,
		logger:       log,
	}
}

// Anonymize masks every detected finding in the text. Documents above the
// chunk size are split into non-overlapping codepoint chunks, inspected
// independently, and rejoined with a single space; a finding spanning a
// chunk boundary can therefore be missed, which is an accepted limitation
// of the chunked mode.
//
// The returned info message is empty when nothing was found and the fixed
// anonymization notice when the document was changed. A truncated finding
// list in any chunk aborts the whole document.
func (r *Redactor) Anonymize(ctx context.Context, text, jurisdiction string) (string, string, error) {
	chunks := splitChunks(text, r.maxChunkSize)

	masked := make([]string, 0, len(chunks))
	total := 0
	for _, chunk := range chunks {
		// The joiner delimiter is repurposed, so it cannot survive
		// inside a chunk.
		section := strings.ReplaceAll(chunk, reservedDelimiter, chunkJoiner)

		result, err := r.detector.Inspect(ctx, section, jurisdiction)
		if err != nil {
			return "", "", err
		}
		if result.Truncated {
			r.logger.Warn("Anonymization aborted: findings truncated",
				zap.Int("chunk_size", len(section)))
			return "", "", ErrTooManyFindings
		}

		section, err = maskSection(section, result.Findings)
		if err != nil {
			return "", "", err
		}

		masked = append(masked, section)
		total += len(result.Findings)
	}

	if total == 0 {
		return text, "", nil
	}

	r.logger.Info("Document anonymized",
		zap.Int("findings", total),
		zap.Int("chunks", len(chunks)),
	)
	return strings.Join(masked, chunkJoiner), NoticeAnonymized, nil
}

// Pseudonymize replaces every detected quote with a realistic synthetic
// value and reports the substitutions keyed by info type. Replacement is a
// whole-text find/replace of the quote, not offset splicing: synthetic
// values have different lengths than the originals, which would invalidate
// the remaining offsets.
func (r *Redactor) Pseudonymize(ctx context.Context, text, jurisdiction string) (string, ReplacementMapping, error) {
	result, err := r.detector.Inspect(ctx, text, jurisdiction)
	if err != nil {
		return "", nil, err
	}
	if result.Truncated {
		return "", nil, ErrTooManyFindings
	}

	mapping := make(ReplacementMapping)
	out := text
	for _, finding := range result.Findings {
		generate, ok := r.generators[finding.InfoType]
		if !ok {
			r.logger.Error("No generator for info type",
				zap.String("info_type", string(finding.InfoType)))
			return "", nil, ErrPseudonymization
		}

		replacement, err := generate(r, finding.Quote)
		if err != nil {
			r.logger.Error("Replacement generation failed",
				zap.String("info_type", string(finding.InfoType)),
				zap.Error(err))
			return "", nil, ErrPseudonymization
		}

		out = strings.ReplaceAll(out, finding.Quote, replacement)
		// Last write wins when several findings share an info type.
		mapping[finding.InfoType] = finding.Quote + " -> " + replacement
	}

	return out, mapping, nil
}

// maskSection overwrites each finding span with mask runes of identical
// codepoint length. Out-of-bounds or overlapping findings violate the
// detector contract; splicing would be undefined, so they fail loudly.
func maskSection(section string, findings []Finding) (string, error) {
	if len(findings) == 0 {
		return section, nil
	}

	runes := []rune(section)
	prevEnd := CodepointOffset(-1)
	for _, f := range findings {
		if f.Start < 0 || f.End < f.Start || int(f.End) > len(runes) {
			return "", fmt.Errorf("finding offsets [%d,%d) out of bounds for section of %d codepoints", f.Start, f.End, len(runes))
		}
		if f.Start < prevEnd {
			return "", fmt.Errorf("overlapping findings at offset %d", f.Start)
		}
		prevEnd = f.End

		for i := f.Start; i < f.End; i++ {
			runes[i] = maskRune
		}
	}

	return string(runes), nil
}

// splitChunks splits text into codepoint chunks of at most maxSize; the
// last chunk may be shorter.
func splitChunks(text string, maxSize int) []string {
	runes := []rune(text)
	if len(runes) <= maxSize {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += maxSize {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// defaultGenerators maps each info type to its replacement synthesizer.
// Adding an info type means adding exactly one entry here; an inspected
// type without an entry aborts pseudonymization instead of passing the
// original value through.
func defaultGenerators() map[InfoType]generatorFunc {
	return map[InfoType]generatorFunc{
		InfoTypeFirstName: func(r *Redactor, quote string) (string, error) {
			switch guessGender(quote) {
			case genderFemale:
				return r.faker.RandomString(femaleFirstNames), nil
			case genderMale:
				return r.faker.RandomString(maleFirstNames), nil
			default:
				return r.faker.FirstName(), nil
			}
		},
		InfoTypeLastName: func(r *Redactor, _ string) (string, error) {
			return r.faker.LastName(), nil
		},
		InfoTypeStreetAddress: func(r *Redactor, _ string) (string, error) {
			return fmt.Sprintf("%s, %s %s", r.faker.Street(), r.faker.Zip(), r.faker.City()), nil
		},
		InfoTypePhoneNumber: func(r *Redactor, _ string) (string, error) {
			return r.faker.Phone(), nil
		},
		InfoTypeEmailAddress: func(r *Redactor, _ string) (string, error) {
			return r.faker.Email(), nil
		},
		InfoTypeIBAN: func(r *Redactor, _ string) (string, error) {
			return r.faker.Numerify("DE####################"), nil
		},
	}
}
