package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/chat"
	"github.com/hieuminhle/cdc-weltwissen/internal/discovery"
	"github.com/hieuminhle/cdc-weltwissen/internal/errs"
	"github.com/hieuminhle/cdc-weltwissen/internal/genai"
)

// Wire types. Field names follow the client contract, snake_case JSON.

type questionRequest struct {
	Question              string                   `json:"question"`
	History               []genai.ConversationTurn `json:"history"`
	SessionID             string                   `json:"session_id"`
	OIDHashed             string                   `json:"oid_hashed"`
	ApplyPseudonymization bool                     `json:"apply_pseudonymization"`
}

type docQuestionRequest struct {
	DocContext  string                   `json:"doc_context"`
	DocQuestion string                   `json:"doc_question"`
	SessionID   string                   `json:"session_id"`
	OIDHashed   string                   `json:"oid_hashed"`
	History     []genai.ConversationTurn `json:"history"`
}

type providedDocQuestionRequest struct {
	DocQuestion string                   `json:"doc_question"`
	DocKey      string                   `json:"doc_key"`
	SessionID   string                   `json:"session_id"`
	OIDHashed   string                   `json:"oid_hashed"`
	History     []genai.ConversationTurn `json:"history"`
}

type answerResponse struct {
	Question string                   `json:"question"`
	Answer   string                   `json:"answer"`
	History  []genai.ConversationTurn `json:"history"`
	Errors   []*errs.BackendError     `json:"errors"`
	Info     string                   `json:"info"`
}

type answerWithQuotesResponse struct {
	Question  string                   `json:"question"`
	Answer    string                   `json:"answer"`
	Citations []discovery.Citation     `json:"citations"`
	History   []genai.ConversationTurn `json:"history"`
	Errors    []*errs.BackendError     `json:"errors"`
	Info      string                   `json:"info"`
}

func (s *Server) handleTextChat(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.service.TextChat(r.Context(), &chat.Request{
		Question:              req.Question,
		SessionID:             req.SessionID,
		UserHash:              req.OIDHashed,
		History:               req.History,
		ApplyPseudonymization: req.ApplyPseudonymization,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleDocChat(w http.ResponseWriter, r *http.Request) {
	var req docQuestionRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.service.DocChat(r.Context(), &chat.Request{
		Question:   req.DocQuestion,
		SessionID:  req.SessionID,
		UserHash:   req.OIDHashed,
		History:    req.History,
		DocContext: req.DocContext,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleProvidedDocChat(w http.ResponseWriter, r *http.Request) {
	var req providedDocQuestionRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.service.ProvidedDocChat(r.Context(), &chat.Request{
		Question:  req.DocQuestion,
		SessionID: req.SessionID,
		UserHash:  req.OIDHashed,
		History:   req.History,
		DocKey:    req.DocKey,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleCodeChat(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.service.CodeChat(r.Context(), &chat.Request{
		Question:  req.Question,
		SessionID: req.SessionID,
		UserHash:  req.OIDHashed,
		History:   req.History,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleGroundedChat(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.service.GroundedChat(r.Context(), &chat.Request{
		Question:  req.Question,
		SessionID: req.SessionID,
		UserHash:  req.OIDHashed,
		History:   req.History,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleMultiTurnSearch(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.service.MultiTurnSearch(r.Context(), &chat.Request{
		Question:  req.Question,
		SessionID: req.SessionID,
		UserHash:  req.OIDHashed,
		History:   req.History,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, answerWithQuotesResponse{
		Question:  res.Question,
		Answer:    res.Answer,
		Citations: nonNilCitations(res.Citations),
		History:   res.History,
		Errors:    nonNilErrors(res.Errors),
		Info:      res.Info,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.logger.Warn("Failed to decode request body", zap.Error(err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// respond writes the standard answer envelope. A non-nil error means the
// request failed outside the structured error paths; the client still gets
// the envelope, carrying a single internal error, with status 500.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, res *chat.Result, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, answerResponse{
		Question: res.Question,
		Answer:   res.Answer,
		History:  res.History,
		Errors:   nonNilErrors(res.Errors),
		Info:     res.Info,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	s.writeJSON(w, http.StatusInternalServerError, answerResponse{
		History: []genai.ConversationTurn{},
		Errors:  []*errs.BackendError{errs.Internal(err)},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// JSON lists must encode as [] rather than null
func nonNilErrors(errors []*errs.BackendError) []*errs.BackendError {
	if errors == nil {
		return []*errs.BackendError{}
	}
	return errors
}

func nonNilCitations(citations []discovery.Citation) []discovery.Citation {
	if citations == nil {
		return []discovery.Citation{}
	}
	return citations
}
