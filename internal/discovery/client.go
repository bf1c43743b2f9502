package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"go.uber.org/zap"
)

// ErrQuotaExhausted reports that the search backend rejected the call for
// lack of quota.
var ErrQuotaExhausted = errors.New("search quota exhausted")

// Client talks to the conversational-search backend over HTTP. Each
// multi-turn session opens a fresh conversation handle; there is no shared
// state between requests.
type Client struct {
	endpoint           string
	datastoreID        string
	summaryResultCount int
	client             *http.Client
	logger             *logger.Logger
}

// NewClient creates a search client from the search configuration.
func NewClient(cfg config.SearchConfig, log *logger.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("search endpoint is not configured")
	}
	if cfg.DatastoreID == "" {
		return nil, fmt.Errorf("search datastore_id is not configured")
	}

	return &Client{
		endpoint:           cfg.Endpoint,
		datastoreID:        cfg.DatastoreID,
		summaryResultCount: cfg.SummaryResultCount,
		client:             &http.Client{Timeout: cfg.Timeout},
		logger:             log,
	}, nil
}

type createConversationResponse struct {
	Name string `json:"name"`
}

type converseRequest struct {
	Query       string `json:"query"`
	SummarySpec struct {
		SummaryResultCount int  `json:"summary_result_count"`
		IncludeCitations   bool `json:"include_citations"`
	} `json:"summary_spec"`
}

// MultiTurnSearch runs the queries as one conversation and returns the
// reply for each turn in order.
func (c *Client) MultiTurnSearch(ctx context.Context, queries []string) ([]ConverseReply, error) {
	conversation, err := c.createConversation(ctx)
	if err != nil {
		return nil, err
	}

	replies := make([]ConverseReply, 0, len(queries))
	for _, query := range queries {
		reply, err := c.converse(ctx, conversation, query)
		if err != nil {
			return nil, err
		}
		replies = append(replies, *reply)
	}

	return replies, nil
}

func (c *Client) createConversation(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/v1/datastores/%s/conversations", c.endpoint, c.datastoreID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", fmt.Errorf("failed to build conversation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("create conversation: %w", ErrQuotaExhausted)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create conversation returned status %d", resp.StatusCode)
	}

	var decoded createConversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode conversation response: %w", err)
	}

	c.logger.Debug("Conversation created", zap.String("conversation", decoded.Name))
	return decoded.Name, nil
}

func (c *Client) converse(ctx context.Context, conversation, query string) (*ConverseReply, error) {
	body := converseRequest{Query: query}
	body.SummarySpec.SummaryResultCount = c.summaryResultCount
	body.SummarySpec.IncludeCitations = true

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode converse request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/%s:converse", c.endpoint, conversation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build converse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("converse call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("converse call: %w", ErrQuotaExhausted)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("converse call returned status %d", resp.StatusCode)
	}

	var reply ConverseReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode converse response: %w", err)
	}

	return &reply, nil
}
