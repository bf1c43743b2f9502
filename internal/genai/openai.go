package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/grounding"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// chatCompletionRequest is the wire payload sent to the serving endpoint.
// It extends the standard chat-completion request with the vendor extension
// fields for safety thresholds and datastore grounding; the typed client
// cannot carry extra body fields, so requests are posted directly.
type chatCompletionRequest struct {
	openai.ChatCompletionRequest
	SafetySettings map[string]string `json:"safety_settings,omitempty"`
	Grounding      *datastoreSpec    `json:"grounding,omitempty"`
}

// datastoreSpec names the search datastore a grounded request cites from.
type datastoreSpec struct {
	DatastoreID string `json:"datastore_id"`
	Location    string `json:"location"`
}

// chatCompletionResponse mirrors the request extension on the way back:
// grounded answers carry their citation metadata next to the choices.
type chatCompletionResponse struct {
	openai.ChatCompletionResponse
	GroundingMetadata *grounding.Metadata `json:"grounding_metadata,omitempty"`
}

// OpenAIBackend serves generation requests through an OpenAI-compatible
// chat-completion API. Each configured region maps to its own base URL;
// HTTP 429 from the API maps to the resource-exhausted condition.
type OpenAIBackend struct {
	model    string
	apiKey   string
	baseURLs map[string]string
	client   *http.Client
	logger   *logger.Logger
}

// NewOpenAIBackend builds a backend with one endpoint per configured
// region. Regions without an explicit endpoint fall back to the standard
// API base URL.
func NewOpenAIBackend(cfg config.GenerationConfig, log *logger.Logger) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation api_key is not configured")
	}

	defaultBase := openai.DefaultConfig(cfg.APIKey).BaseURL
	baseURLs := make(map[string]string, len(cfg.Regions))
	for _, region := range cfg.Regions {
		base := defaultBase
		if configured, ok := cfg.Endpoints[region]; ok && configured != "" {
			base = configured
		}
		baseURLs[region] = strings.TrimSuffix(base, "/")
	}

	log.Info("Generation backend initialized",
		zap.String("model", cfg.Model),
		zap.Strings("regions", cfg.Regions),
	)

	return &OpenAIBackend{
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		baseURLs: baseURLs,
		client:   &http.Client{Timeout: 5 * time.Minute},
		logger:   log,
	}, nil
}

// Generate serves the request against the named region, forwarding the
// safety thresholds and, for grounded requests, the datastore reference.
func (b *OpenAIBackend) Generate(ctx context.Context, region string, req *Request) (*Response, error) {
	base, ok := b.baseURLs[region]
	if !ok {
		return nil, fmt.Errorf("no endpoint configured for region %s", region)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)
	if len(req.SystemInstruction) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: strings.Join(req.SystemInstruction, "\n"),
		})
	}
	for _, content := range req.Contents {
		role := openai.ChatMessageRoleUser
		if content.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: content.Text,
		})
	}

	payload := chatCompletionRequest{
		ChatCompletionRequest: openai.ChatCompletionRequest{
			Model:       b.model,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxOutputTokens,
			TopP:        1,
		},
		SafetySettings: req.SafetySettings,
	}
	if req.Grounding != nil {
		payload.Grounding = &datastoreSpec{
			DatastoreID: req.Grounding.ID,
			Location:    req.Grounding.Location,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation call failed in %s: %w", region, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: region %s", ErrResourceExhausted, region)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generation call failed in %s: status %d: %s", region, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode generation response from %s: %w", region, err)
	}

	if len(decoded.Choices) == 0 {
		return nil, ErrEmptyCandidates
	}

	return &Response{
		Text: decoded.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:   decoded.Usage.PromptTokens,
			ResponseTokens: decoded.Usage.CompletionTokens,
		},
		Grounding: decoded.GroundingMetadata,
	}, nil
}
