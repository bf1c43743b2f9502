package dlp

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"go.uber.org/zap"
)

// DetectionRule is a single pattern-based detection rule.
type DetectionRule struct {
	InfoType   InfoType
	Pattern    *regexp.Regexp
	Likelihood Likelihood
	// Group selects the capture group carrying the quote; 0 means the
	// whole match.
	Group int
}

// PatternInspector is the in-process implementation of the detection
// backend: a set of compiled rules producing codepoint-exact findings.
type PatternInspector struct {
	rules       []DetectionRule
	maxFindings int
	logger      *logger.Logger
}

// NewPatternInspector creates a pattern inspector from the detection
// configuration. The info-type allowlist must only name known types.
func NewPatternInspector(cfg config.DetectionConfig, log *logger.Logger) (*PatternInspector, error) {
	minLikelihood, err := ParseLikelihood(cfg.MinLikelihood)
	if err != nil {
		return nil, fmt.Errorf("failed to configure inspector: %w", err)
	}

	all := defaultRules()
	known := make(map[InfoType]bool, len(all))
	for _, rule := range all {
		known[rule.InfoType] = true
	}

	allowed := make(map[InfoType]bool)
	for _, name := range cfg.InfoTypes {
		infoType := InfoType(name)
		if !known[infoType] {
			return nil, fmt.Errorf("unknown info type: %s", name)
		}
		allowed[infoType] = true
	}

	var rules []DetectionRule
	for _, rule := range all {
		if len(allowed) > 0 && !allowed[rule.InfoType] {
			continue
		}
		if rule.Likelihood < minLikelihood {
			continue
		}
		rules = append(rules, rule)
	}

	log.Info("Pattern inspector initialized",
		zap.Int("total_rules", len(all)),
		zap.Int("enabled_rules", len(rules)),
		zap.String("min_likelihood", minLikelihood.String()),
	)

	return &PatternInspector{
		rules:       rules,
		maxFindings: cfg.MaxFindings,
		logger:      log,
	}, nil
}

// Inspect runs all enabled rules over the text. Findings are reported in
// text order with codepoint offsets and never overlap: when two rules match
// the same span the earlier match wins.
func (p *PatternInspector) Inspect(ctx context.Context, text, jurisdiction string) (InspectResult, error) {
	if err := ctx.Err(); err != nil {
		return InspectResult{}, err
	}

	type byteFinding struct {
		infoType   InfoType
		likelihood Likelihood
		start, end int // byte offsets, converted below
	}

	var raw []byteFinding
	for _, rule := range p.rules {
		for _, match := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := match[2*rule.Group], match[2*rule.Group+1]
			if start < 0 || end <= start {
				continue
			}
			raw = append(raw, byteFinding{
				infoType:   rule.InfoType,
				likelihood: rule.Likelihood,
				start:      start,
				end:        end,
			})
		}
	}

	sort.Slice(raw, func(i, j int) bool {
		if raw[i].start != raw[j].start {
			return raw[i].start < raw[j].start
		}
		return raw[i].end > raw[j].end
	})

	result := InspectResult{Findings: []Finding{}}
	byteCursor, runeCursor := 0, CodepointOffset(0)
	prevEnd := -1
	for _, bf := range raw {
		if bf.start < prevEnd {
			continue // overlapping match from another rule
		}
		prevEnd = bf.end

		if p.maxFindings > 0 && len(result.Findings) >= p.maxFindings {
			result.Truncated = true
			break
		}

		runeCursor += CodepointOffset(utf8.RuneCountInString(text[byteCursor:bf.start]))
		byteCursor = bf.start
		quote := text[bf.start:bf.end]
		start := runeCursor
		end := start + CodepointOffset(utf8.RuneCountInString(quote))

		result.Findings = append(result.Findings, Finding{
			InfoType:   bf.infoType,
			Quote:      quote,
			Start:      start,
			End:        end,
			Likelihood: bf.likelihood,
		})
	}

	return result, nil
}

// defaultRules returns the built-in detection rule set.
func defaultRules() []DetectionRule {
	firstNames := append(append([]string{}, femaleFirstNames...), maleFirstNames...)

	return []DetectionRule{
		{
			InfoType:   InfoTypeEmailAddress,
			Pattern:    regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			Likelihood: LikelihoodVeryLikely,
		},
		{
			InfoType:   InfoTypeIBAN,
			Pattern:    regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}(?:\s?[A-Z0-9]{1,3})?\b`),
			Likelihood: LikelihoodVeryLikely,
		},
		{
			InfoType:   InfoTypePhoneNumber,
			Pattern:    regexp.MustCompile(`(?:\+49|0049|0)[1-9][0-9\s\-/]{5,14}[0-9]`),
			Likelihood: LikelihoodLikely,
		},
		{
			InfoType:   InfoTypeStreetAddress,
			Pattern:    regexp.MustCompile(`\b[A-ZÄÖÜ][a-zäöüß]+(?:straße|strasse|weg|platz|allee|gasse|ring|damm)\s+\d{1,4}[a-z]?\b`),
			Likelihood: LikelihoodLikely,
		},
		{
			InfoType:   InfoTypeLastName,
			Pattern:    regexp.MustCompile(`\b(?:Herr|Herrn|Frau)\s+(?:Dr\.\s+|Prof\.\s+)?([A-ZÄÖÜ][a-zäöüß]+(?:-[A-ZÄÖÜ][a-zäöüß]+)?)`),
			Likelihood: LikelihoodLikely,
			Group:      1,
		},
		{
			InfoType:   InfoTypeFirstName,
			Pattern:    regexp.MustCompile(`\b(?:` + strings.Join(firstNames, "|") + `)\b`),
			Likelihood: LikelihoodLikely,
		},
	}
}
