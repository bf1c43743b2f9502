package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/discovery"
	"github.com/hieuminhle/cdc-weltwissen/internal/dlp"
	"github.com/hieuminhle/cdc-weltwissen/internal/errs"
	"github.com/hieuminhle/cdc-weltwissen/internal/events"
	"github.com/hieuminhle/cdc-weltwissen/internal/genai"
	"github.com/hieuminhle/cdc-weltwissen/internal/grounding"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"github.com/hieuminhle/cdc-weltwissen/internal/transcript"
	"github.com/hieuminhle/cdc-weltwissen/internal/usage"
)

// Service answers chat requests. Every surface runs the same outer shape:
// inspect the question, call the model behind the region-failover loop,
// append the turn to the history, then record usage and transcript.
//
// Usage and transcript sinks plus the event hub are optional; a nil
// dependency disables that concern.
type Service struct {
	detector     *dlp.Detector
	redactor     *dlp.Redactor
	orchestrator *genai.Orchestrator
	search       *discovery.Client
	usage        UsageRecorder
	archiver     *transcript.Archiver
	hub          *events.Hub

	jurisdiction string
	regions      []string
	generation   config.GenerationConfig
	grounding    genai.Datastore
	docs         map[string]string
	logger       *logger.Logger
}

// UsageRecorder persists one usage row per completed exchange. The
// production implementation is *usage.Store.
type UsageRecorder interface {
	Insert(ctx context.Context, rec *usage.Record) error
}

// Options bundles the optional sinks so the constructor stays readable.
type Options struct {
	Usage    UsageRecorder
	Archiver *transcript.Archiver
	Hub      *events.Hub
}

// NewService creates the chat service. Provided documents are loaded from
// disk eagerly so a bad path fails at startup instead of mid-conversation.
func NewService(
	cfg *config.Config,
	detector *dlp.Detector,
	redactor *dlp.Redactor,
	orchestrator *genai.Orchestrator,
	search *discovery.Client,
	opts Options,
	log *logger.Logger,
) (*Service, error) {
	docs := make(map[string]string, len(cfg.Docs.Files))
	for key, file := range cfg.Docs.Files {
		content, err := os.ReadFile(filepath.Join(cfg.Docs.Dir, file))
		if err != nil {
			return nil, fmt.Errorf("failed to load provided document %q: %w", key, err)
		}
		docs[key] = string(content)
	}

	return &Service{
		detector:     detector,
		redactor:     redactor,
		orchestrator: orchestrator,
		search:       search,
		usage:        opts.Usage,
		archiver:     opts.Archiver,
		hub:          opts.Hub,
		jurisdiction: cfg.Detection.Jurisdiction,
		regions:      cfg.Generation.Regions,
		generation:   cfg.Generation,
		grounding: genai.Datastore{
			ID:       cfg.Search.DatastoreID,
			Location: cfg.Search.DatastoreLocation,
		},
		docs:   docs,
		logger: log.WithComponent("chat"),
	}, nil
}

// TextChat answers a free-form question. Questions with personal data are
// rejected with the formatted findings unless the caller opted into
// pseudonymization, in which case synthetic stand-ins go to the model and
// the substitution mapping is returned alongside the answer.
//
// This surface retries the next region on any backend failure, not only on
// exhausted quota.
func (s *Service) TextChat(ctx context.Context, req *Request) (*Result, error) {
	prompt := req.Question
	res := &Result{Question: req.Question, History: req.History}

	if req.ApplyPseudonymization {
		pseudonymized, mapping, err := s.redactor.Pseudonymize(ctx, req.Question, s.jurisdiction)
		if err != nil {
			if errors.Is(err, dlp.ErrTooManyFindings) || errors.Is(err, dlp.ErrPseudonymization) {
				res.Answer = err.Error()
				res.Errors = append(res.Errors, errs.DLPError(err.Error()))
				s.finish(ctx, TypeTextChat, req, res, blockedMetrics(), true)
				return res, nil
			}
			return nil, err
		}
		prompt = pseudonymized
		res.Mapping = mapping
	}

	inspection, err := s.detector.Inspect(ctx, req.Question, s.jurisdiction)
	if err != nil {
		return nil, err
	}

	if len(inspection.Findings) > 0 && !req.ApplyPseudonymization {
		s.gate(res, inspection)
		s.finish(ctx, TypeTextChat, req, res, blockedMetrics(), true)
		return res, nil
	}

	genReq := &genai.Request{
		Contents:          genai.TextChatContents(req.History, prompt),
		SystemInstruction: textChatInstruction,
		Temperature:       s.generation.Temperature,
		MaxOutputTokens:   s.generation.MaxOutputTokens,
		SafetySettings:    genai.DefaultSafetySettings(),
	}

	return s.generate(ctx, TypeTextChat, req, res, genReq, genai.RetryAll)
}

// DocChat answers a question about a user-supplied document. The question
// is gated like text chat; the document itself is anonymized in place and
// the altered context goes to the model with a notice returned to the user.
func (s *Service) DocChat(ctx context.Context, req *Request) (*Result, error) {
	res := &Result{Question: req.Question, History: req.History}

	inspection, err := s.detector.Inspect(ctx, req.Question, s.jurisdiction)
	if err != nil {
		return nil, err
	}
	if len(inspection.Findings) > 0 {
		s.gate(res, inspection)
		s.finish(ctx, TypeDocChat, req, res, blockedMetrics(), true)
		return res, nil
	}

	docContext, info, err := s.redactor.Anonymize(ctx, req.DocContext, s.jurisdiction)
	if err != nil {
		if errors.Is(err, dlp.ErrTooManyFindings) {
			res.Errors = append(res.Errors, errs.DLPError(err.Error()))
			s.finish(ctx, TypeDocChat, req, res, blockedMetrics(), true)
			return res, nil
		}
		return nil, err
	}
	res.Info = info

	genReq := &genai.Request{
		Contents:          genai.DocChatContents(docContext, req.History, req.Question),
		SystemInstruction: docChatInstruction,
		Temperature:       s.generation.Temperature,
		MaxOutputTokens:   s.generation.MaxOutputTokens,
		SafetySettings:    genai.DefaultSafetySettings(),
	}

	return s.generate(ctx, TypeDocChat, req, res, genReq, genai.RetryResourceExhausted)
}

// ProvidedDocChat answers against a locally curated document selected by
// key, with a per-document system instruction.
func (s *Service) ProvidedDocChat(ctx context.Context, req *Request) (*Result, error) {
	res := &Result{Question: req.Question, History: req.History}

	docContext, ok := s.docs[req.DocKey]
	if !ok {
		return nil, fmt.Errorf("unknown document key %q", req.DocKey)
	}

	inspection, err := s.detector.Inspect(ctx, req.Question, s.jurisdiction)
	if err != nil {
		return nil, err
	}
	if len(inspection.Findings) > 0 {
		s.gate(res, inspection)
		s.finish(ctx, TypeProvidedDocChat, req, res, blockedMetrics(), true)
		return res, nil
	}

	instruction, ok := providedDocInstructions[req.DocKey]
	if !ok {
		instruction = docChatInstruction
	}

	genReq := &genai.Request{
		Contents:          genai.DocChatContents(docContext, req.History, req.Question),
		SystemInstruction: instruction,
		Temperature:       s.generation.Temperature,
		MaxOutputTokens:   500,
		SafetySettings:    genai.DefaultSafetySettings(),
	}

	return s.generate(ctx, TypeProvidedDocChat, req, res, genReq, genai.RetryResourceExhausted)
}

// CodeChat answers programming questions. The running transcript is folded
// into a single context string rather than structured turns.
func (s *Service) CodeChat(ctx context.Context, req *Request) (*Result, error) {
	res := &Result{Question: req.Question, History: req.History}

	inspection, err := s.detector.Inspect(ctx, req.Question, s.jurisdiction)
	if err != nil {
		return nil, err
	}
	if len(inspection.Findings) > 0 {
		s.gate(res, inspection)
		s.finish(ctx, TypeCodeChat, req, res, blockedMetrics(), true)
		return res, nil
	}

	codeContext := genai.CodeChatContext(codeChatBaseContext, req.History)
	genReq := &genai.Request{
		Contents: []genai.Content{
			{Role: genai.RoleUser, Text: codeContext + "\n" + req.Question},
		},
		Temperature:     s.generation.Temperature,
		MaxOutputTokens: s.generation.MaxOutputTokens,
		SafetySettings:  genai.DefaultSafetySettings(),
	}

	return s.generate(ctx, TypeCodeChat, req, res, genReq, genai.RetryResourceExhausted)
}

// GroundedChat answers from the document datastore. Citation markers and a
// source list are spliced into the answer text before it is returned.
func (s *Service) GroundedChat(ctx context.Context, req *Request) (*Result, error) {
	res := &Result{Question: req.Question, History: req.History}

	inspection, err := s.detector.Inspect(ctx, req.Question, s.jurisdiction)
	if err != nil {
		return nil, err
	}
	if len(inspection.Findings) > 0 {
		s.gate(res, inspection)
		s.finish(ctx, TypeGroundedChat, req, res, blockedMetrics(), true)
		return res, nil
	}

	genReq := &genai.Request{
		Contents:          genai.TextChatContents(req.History, req.Question),
		SystemInstruction: textChatInstruction,
		Temperature:       s.generation.Temperature,
		MaxOutputTokens:   s.generation.MaxOutputTokens,
		Grounding:         &s.grounding,
		SafetySettings:    genai.DefaultSafetySettings(),
	}

	result, backendErr, err := s.orchestrator.Call(ctx, genReq, s.regions, genai.RetryResourceExhausted)
	if err != nil {
		return nil, err
	}

	res.Answer = result.Answer
	if backendErr != nil {
		res.Errors = append(res.Errors, backendErr)
		if backendErr.Status == errs.StatusQuotaError {
			s.publishQuota()
		}
	} else if result.Response != nil && result.Response.Grounding != nil {
		res.Answer = grounding.Render(result.Answer, result.Response.Grounding)
	}

	s.finish(ctx, TypeGroundedChat, req, res, metricsFromResult(result, backendErr), false)
	return res, nil
}

// MultiTurnSearch runs the question through the conversational-search
// backend and returns the answer with assembled citations. Token counts
// are not reported by the search backend, so usage rows carry sentinels.
func (s *Service) MultiTurnSearch(ctx context.Context, req *Request) (*Result, error) {
	res := &Result{Question: req.Question, History: req.History}

	inspection, err := s.detector.Inspect(ctx, req.Question, s.jurisdiction)
	if err != nil {
		return nil, err
	}
	if len(inspection.Findings) > 0 {
		s.gate(res, inspection)
		s.finish(ctx, TypeMultiTurnSearch, req, res, blockedMetrics(), true)
		return res, nil
	}

	started := time.Now()
	replies, err := s.search.MultiTurnSearch(ctx, []string{req.Question})
	if err != nil {
		if errors.Is(err, discovery.ErrQuotaExhausted) {
			res.Answer = genai.QuotaExceededMessage
			res.Errors = append(res.Errors, errs.QuotaError(genai.QuotaExceededMessage))
			s.publishQuota()
			s.finish(ctx, TypeMultiTurnSearch, req, res, blockedMetrics(), false)
			return res, nil
		}
		return nil, err
	}

	turns := discovery.ProcessReplies(replies)
	if len(turns) == 0 {
		return nil, fmt.Errorf("search returned no conversation turns")
	}

	last := turns[len(turns)-1]
	res.Answer = discovery.ToMarkdown(last)
	res.Citations = last.References

	metrics := usage.Record{
		PromptTokens:   -1,
		ResponseTokens: -1,
		ElapsedMS:      time.Since(started).Milliseconds(),
	}
	s.finish(ctx, TypeMultiTurnSearch, req, res, metrics, false)
	return res, nil
}

// generate runs the failover loop and completes the turn.
func (s *Service) generate(ctx context.Context, chatType string, req *Request, res *Result, genReq *genai.Request, policy genai.RetryPolicy) (*Result, error) {
	result, backendErr, err := s.orchestrator.Call(ctx, genReq, s.regions, policy)
	if err != nil {
		return nil, err
	}

	res.Answer = result.Answer
	if backendErr != nil {
		res.Errors = append(res.Errors, backendErr)
		if backendErr.Status == errs.StatusQuotaError {
			s.publishQuota()
		}
	}

	s.finish(ctx, chatType, req, res, metricsFromResult(result, backendErr), false)
	return res, nil
}

// gate rejects a question whose inspection found personal data. The
// formatted findings become the user-facing answer.
func (s *Service) gate(res *Result, inspection dlp.InspectResult) {
	formatted := dlp.FormatFindings(inspection.Findings)
	res.Answer = formatted
	res.Errors = append(res.Errors, errs.DLPError(formatted))

	if s.hub != nil {
		s.hub.Publish(events.Event{
			Type: events.EventDetection,
			Data: map[string]any{"findings": len(inspection.Findings)},
		})
	}
}

// finish appends the new turn and records usage, transcript and logs.
// Sink failures are logged, never surfaced to the user.
func (s *Service) finish(ctx context.Context, chatType string, req *Request, res *Result, metrics usage.Record, redacted bool) {
	res.History = append(res.History, genai.ConversationTurn{
		Question: req.Question,
		Answer:   res.Answer,
	})

	if s.usage != nil {
		metrics.SessionID = req.SessionID
		metrics.ChatType = chatType
		metrics.OIDHashed = req.UserHash
		if err := s.usage.Insert(ctx, &metrics); err != nil {
			s.logger.Warn("Failed to record usage", zap.Error(err))
		}
	}

	if s.archiver != nil {
		err := s.archiver.Append(ctx, &transcript.Entry{
			SessionID: req.SessionID,
			ChatType:  chatType,
			Question:  req.Question,
			Answer:    res.Answer,
		})
		if err != nil {
			s.logger.Warn("Failed to archive transcript", zap.Error(err))
		}
	}

	if s.hub != nil {
		s.hub.Publish(events.Event{
			Type: events.EventRequest,
			Data: map[string]any{
				"chat_type": chatType,
				"blocked":   redacted,
			},
		})
	}

	s.logger.LogExchange(chatType, req.SessionID, req.Question, res.Answer, redacted)
}

func (s *Service) publishQuota() {
	if s.hub == nil {
		return
	}
	s.hub.Publish(events.Event{
		Type: events.EventFailover,
		Data: map[string]any{"regions": len(s.regions)},
	})
}

// blockedMetrics returns the sentinel usage row for requests that never
// reached the model.
func blockedMetrics() usage.Record {
	return usage.Record{PromptTokens: -1, ResponseTokens: -1, ElapsedMS: -1}
}

func metricsFromResult(result genai.Result, backendErr *errs.BackendError) usage.Record {
	if backendErr != nil {
		return blockedMetrics()
	}
	return usage.Record{
		Region:         result.Region,
		PromptTokens:   result.PromptTokens,
		ResponseTokens: result.ResponseTokens,
		ElapsedMS:      result.Elapsed.Milliseconds(),
	}
}
