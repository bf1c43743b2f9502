package dlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"go.uber.org/zap"
)

// RemoteInspector calls an external detection service over HTTP. The wire
// contract mirrors the inspection request: text, info-type allowlist,
// likelihood threshold and findings cap; the response carries ordered
// findings with codepoint offsets and a truncation flag.
type RemoteInspector struct {
	endpoint      string
	infoTypes     []string
	minLikelihood string
	maxFindings   int
	client        *http.Client
	logger        *logger.Logger
}

type inspectRequest struct {
	Text          string   `json:"text"`
	InfoTypes     []string `json:"info_types"`
	MinLikelihood string   `json:"min_likelihood"`
	MaxFindings   int      `json:"max_findings"`
	Jurisdiction  string   `json:"jurisdiction"`
}

type inspectResponse struct {
	Findings []struct {
		InfoType   string `json:"info_type"`
		Quote      string `json:"quote"`
		Start      int    `json:"start"`
		End        int    `json:"end"`
		Likelihood string `json:"likelihood"`
	} `json:"findings"`
	FindingsTruncated bool `json:"findings_truncated"`
}

// NewRemoteInspector creates an inspector backed by the configured
// detection service endpoint.
func NewRemoteInspector(cfg config.DetectionConfig, log *logger.Logger) (*RemoteInspector, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("detection endpoint is not configured")
	}
	if _, err := ParseLikelihood(cfg.MinLikelihood); err != nil {
		return nil, fmt.Errorf("failed to configure inspector: %w", err)
	}

	return &RemoteInspector{
		endpoint:      cfg.Endpoint,
		infoTypes:     cfg.InfoTypes,
		minLikelihood: cfg.MinLikelihood,
		maxFindings:   cfg.MaxFindings,
		client:        &http.Client{Timeout: cfg.Timeout},
		logger:        log,
	}, nil
}

// Inspect sends the text to the detection service. Any transport or service
// failure is returned as-is; the caller treats it as detection being
// unavailable and must not retry.
func (r *RemoteInspector) Inspect(ctx context.Context, text, jurisdiction string) (InspectResult, error) {
	payload, err := json.Marshal(inspectRequest{
		Text:          text,
		InfoTypes:     r.infoTypes,
		MinLikelihood: r.minLikelihood,
		MaxFindings:   r.maxFindings,
		Jurisdiction:  jurisdiction,
	})
	if err != nil {
		return InspectResult{}, fmt.Errorf("failed to encode inspect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/v1/inspect", bytes.NewReader(payload))
	if err != nil {
		return InspectResult{}, fmt.Errorf("failed to build inspect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return InspectResult{}, fmt.Errorf("inspect call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return InspectResult{}, fmt.Errorf("inspect call returned status %d", resp.StatusCode)
	}

	var decoded inspectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return InspectResult{}, fmt.Errorf("failed to decode inspect response: %w", err)
	}

	result := InspectResult{
		Findings:  make([]Finding, 0, len(decoded.Findings)),
		Truncated: decoded.FindingsTruncated,
	}
	for _, f := range decoded.Findings {
		likelihood, err := ParseLikelihood(f.Likelihood)
		if err != nil {
			r.logger.Warn("Unknown likelihood in inspect response", zap.String("likelihood", f.Likelihood))
		}
		result.Findings = append(result.Findings, Finding{
			InfoType:   InfoType(f.InfoType),
			Quote:      f.Quote,
			Start:      CodepointOffset(f.Start),
			End:        CodepointOffset(f.End),
			Likelihood: likelihood,
		})
	}

	return result, nil
}
