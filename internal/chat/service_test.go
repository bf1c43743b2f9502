package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/discovery"
	"github.com/hieuminhle/cdc-weltwissen/internal/dlp"
	"github.com/hieuminhle/cdc-weltwissen/internal/errs"
	"github.com/hieuminhle/cdc-weltwissen/internal/genai"
	"github.com/hieuminhle/cdc-weltwissen/internal/grounding"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"github.com/hieuminhle/cdc-weltwissen/internal/usage"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

// scriptedInspector flags every occurrence of the configured quote.
type scriptedInspector struct {
	quote    string
	infoType dlp.InfoType
}

func (s *scriptedInspector) Inspect(ctx context.Context, text, jurisdiction string) (dlp.InspectResult, error) {
	result := dlp.InspectResult{Findings: []dlp.Finding{}}
	if s.quote == "" {
		return result, nil
	}

	byteStart := strings.Index(text, s.quote)
	if byteStart < 0 {
		return result, nil
	}

	start := utf8.RuneCountInString(text[:byteStart])
	result.Findings = append(result.Findings, dlp.Finding{
		InfoType:   s.infoType,
		Quote:      s.quote,
		Start:      dlp.CodepointOffset(start),
		End:        dlp.CodepointOffset(start + utf8.RuneCountInString(s.quote)),
		Likelihood: dlp.LikelihoodLikely,
	})
	return result, nil
}

// recordingBackend answers every region with a fixed response and records
// the requests it saw.
type recordingBackend struct {
	answer    string
	err       error
	grounding *grounding.Metadata
	requests  []*genai.Request
}

func (b *recordingBackend) Generate(ctx context.Context, region string, req *genai.Request) (*genai.Response, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}
	return &genai.Response{
		Text:      b.answer,
		Usage:     genai.Usage{PromptTokens: 7, ResponseTokens: 3},
		Grounding: b.grounding,
	}, nil
}

// capturingUsage collects the usage rows the service emits.
type capturingUsage struct {
	records []*usage.Record
}

func (c *capturingUsage) Insert(ctx context.Context, rec *usage.Record) error {
	c.records = append(c.records, rec)
	return nil
}

func newTestService(t *testing.T, inspector dlp.Inspector, backend genai.Backend, search *discovery.Client) *Service {
	return newTestServiceOpts(t, inspector, backend, search, Options{})
}

func newTestServiceOpts(t *testing.T, inspector dlp.Inspector, backend genai.Backend, search *discovery.Client, opts Options) *Service {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Generation.AttemptTimeout = time.Second
	cfg.Generation.OverallTimeout = 5 * time.Second

	docsDir := t.TempDir()
	for key, file := range map[string]string{
		"fragenkatalog":   "fragenkatalog.txt",
		"strategiepapier": "strategiepapier.txt",
	} {
		path := filepath.Join(docsDir, file)
		if err := os.WriteFile(path, []byte("Inhalt für "+key), 0644); err != nil {
			t.Fatalf("Failed to write test document: %v", err)
		}
	}
	cfg.Docs.Dir = docsDir

	log := testLogger()
	detector := dlp.NewDetector(inspector, nil, log)
	redactor := dlp.NewRedactor(detector, cfg.Detection, cfg.Redaction, log)
	orchestrator := genai.NewOrchestrator(backend, cfg.Generation, log)

	service, err := NewService(cfg, detector, redactor, orchestrator, search, opts, log)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return service
}

func TestTextChat(t *testing.T) {
	ctx := context.Background()

	t.Run("CleanQuestionAnswered", func(t *testing.T) {
		backend := &recordingBackend{answer: "Paris."}
		s := newTestService(t, &scriptedInspector{}, backend, nil)

		res, err := s.TextChat(ctx, &Request{
			Question:  "Was ist die Hauptstadt von Frankreich?",
			SessionID: "s-1",
		})
		if err != nil {
			t.Fatalf("TextChat failed: %v", err)
		}
		if res.Answer != "Paris." {
			t.Errorf("Wrong answer: %q", res.Answer)
		}
		if len(res.Errors) != 0 {
			t.Errorf("Unexpected errors: %+v", res.Errors)
		}
		if len(res.History) != 1 || res.History[0].Answer != "Paris." {
			t.Errorf("History not appended: %+v", res.History)
		}
	})

	t.Run("PersonalDataBlocksWithoutPseudonymization", func(t *testing.T) {
		backend := &recordingBackend{answer: "sollte nie ankommen"}
		s := newTestService(t, &scriptedInspector{quote: "Anna", infoType: dlp.InfoTypeFirstName}, backend, nil)

		res, err := s.TextChat(ctx, &Request{Question: "Wer ist Anna?", SessionID: "s-1"})
		if err != nil {
			t.Fatalf("TextChat failed: %v", err)
		}
		if len(backend.requests) != 0 {
			t.Error("Blocked question still reached the model")
		}
		if len(res.Errors) != 1 || res.Errors[0].Status != errs.StatusDLPError {
			t.Errorf("Expected a DLP error, got %+v", res.Errors)
		}
		if !strings.Contains(res.Answer, "Vorname : Anna") {
			t.Errorf("Answer does not report the finding: %q", res.Answer)
		}
		if len(res.History) != 1 {
			t.Errorf("History not appended on block: %+v", res.History)
		}
	})

	t.Run("PseudonymizationLetsQuestionThrough", func(t *testing.T) {
		backend := &recordingBackend{answer: "Antwort"}
		s := newTestService(t, &scriptedInspector{quote: "Anna", infoType: dlp.InfoTypeFirstName}, backend, nil)

		res, err := s.TextChat(ctx, &Request{
			Question:              "Wer ist Anna?",
			SessionID:             "s-1",
			ApplyPseudonymization: true,
		})
		if err != nil {
			t.Fatalf("TextChat failed: %v", err)
		}
		if len(backend.requests) != 1 {
			t.Fatal("Pseudonymized question did not reach the model")
		}

		entry, ok := res.Mapping[dlp.InfoTypeFirstName]
		if !ok || !strings.HasPrefix(entry, "Anna -> ") {
			t.Fatalf("Mapping missing or malformed: %+v", res.Mapping)
		}
		replacement := strings.TrimPrefix(entry, "Anna -> ")

		sent := backend.requests[0].Contents[len(backend.requests[0].Contents)-1].Text
		want := strings.ReplaceAll("Wer ist Anna?", "Anna", replacement)
		if sent != want {
			t.Errorf("Model saw %q, want the pseudonymized prompt %q", sent, want)
		}
		if len(res.Errors) != 0 {
			t.Errorf("Unexpected errors: %+v", res.Errors)
		}
	})

	t.Run("QuotaExhaustionYieldsSentinelAnswer", func(t *testing.T) {
		backend := &recordingBackend{err: genai.ErrResourceExhausted}
		s := newTestService(t, &scriptedInspector{}, backend, nil)

		res, err := s.TextChat(ctx, &Request{Question: "Hallo", SessionID: "s-1"})
		if err != nil {
			t.Fatalf("TextChat failed: %v", err)
		}
		if res.Answer != genai.QuotaExceededMessage {
			t.Errorf("Expected quota message, got %q", res.Answer)
		}
		if len(res.Errors) != 1 || res.Errors[0].Status != errs.StatusQuotaError {
			t.Errorf("Expected quota error, got %+v", res.Errors)
		}
		if len(backend.requests) != 4 {
			t.Errorf("Expected every region tried, got %d attempts", len(backend.requests))
		}
	})
}

func TestUsageRecording(t *testing.T) {
	ctx := context.Background()

	t.Run("AnsweredExchangeCarriesCallerIdentity", func(t *testing.T) {
		recorder := &capturingUsage{}
		backend := &recordingBackend{answer: "Antwort"}
		s := newTestServiceOpts(t, &scriptedInspector{}, backend, nil, Options{Usage: recorder})

		_, err := s.TextChat(ctx, &Request{
			Question:  "Hallo",
			SessionID: "s-1",
			UserHash:  "a1b2c3",
		})
		if err != nil {
			t.Fatalf("TextChat failed: %v", err)
		}

		if len(recorder.records) != 1 {
			t.Fatalf("Expected one usage row, got %d", len(recorder.records))
		}
		rec := recorder.records[0]
		if rec.OIDHashed != "a1b2c3" {
			t.Errorf("Caller identity not recorded: %q", rec.OIDHashed)
		}
		if rec.SessionID != "s-1" || rec.ChatType != TypeTextChat {
			t.Errorf("Wrong row attribution: %+v", rec)
		}
		if rec.PromptTokens != 7 || rec.ResponseTokens != 3 {
			t.Errorf("Wrong token counts: %d/%d", rec.PromptTokens, rec.ResponseTokens)
		}
	})

	t.Run("BlockedExchangeRecordsSentinels", func(t *testing.T) {
		recorder := &capturingUsage{}
		backend := &recordingBackend{answer: "nie"}
		s := newTestServiceOpts(t, &scriptedInspector{quote: "Anna", infoType: dlp.InfoTypeFirstName}, backend, nil, Options{Usage: recorder})

		_, err := s.TextChat(ctx, &Request{
			Question:  "Wer ist Anna?",
			SessionID: "s-2",
			UserHash:  "d4e5f6",
		})
		if err != nil {
			t.Fatalf("TextChat failed: %v", err)
		}

		if len(recorder.records) != 1 {
			t.Fatalf("Expected one usage row, got %d", len(recorder.records))
		}
		rec := recorder.records[0]
		if rec.OIDHashed != "d4e5f6" {
			t.Errorf("Caller identity not recorded on block: %q", rec.OIDHashed)
		}
		if rec.PromptTokens != -1 || rec.ResponseTokens != -1 || rec.ElapsedMS != -1 {
			t.Errorf("Expected sentinel counts for blocked exchange: %+v", rec)
		}
	})
}

func TestDocChat(t *testing.T) {
	ctx := context.Background()

	t.Run("AnonymizesDocumentContext", func(t *testing.T) {
		backend := &recordingBackend{answer: "Antwort"}
		s := newTestService(t, &scriptedInspector{quote: "Müller", infoType: dlp.InfoTypeLastName}, backend, nil)

		res, err := s.DocChat(ctx, &Request{
			Question:   "Worum geht es?",
			DocContext: "Vertrag mit Müller über die Lieferung.",
			SessionID:  "s-1",
		})
		if err != nil {
			t.Fatalf("DocChat failed: %v", err)
		}
		if res.Info != dlp.NoticeAnonymized {
			t.Errorf("Expected anonymization notice, got %q", res.Info)
		}

		sentContext := backend.requests[0].Contents[0].Text
		if strings.Contains(sentContext, "Müller") {
			t.Errorf("Original name reached the model: %q", sentContext)
		}
		if !strings.Contains(sentContext, "******") {
			t.Errorf("Masked span missing from context: %q", sentContext)
		}
		if !strings.Contains(sentContext, "<KONTEXT>") {
			t.Errorf("Context tag missing: %q", sentContext)
		}
	})

	t.Run("QuestionWithPersonalDataBlocks", func(t *testing.T) {
		backend := &recordingBackend{answer: "nie"}
		s := newTestService(t, &scriptedInspector{quote: "Anna", infoType: dlp.InfoTypeFirstName}, backend, nil)

		res, err := s.DocChat(ctx, &Request{
			Question:   "Was macht Anna?",
			DocContext: "Ein harmloses Dokument.",
			SessionID:  "s-1",
		})
		if err != nil {
			t.Fatalf("DocChat failed: %v", err)
		}
		if len(backend.requests) != 0 {
			t.Error("Blocked question still reached the model")
		}
		if len(res.Errors) != 1 || res.Errors[0].Status != errs.StatusDLPError {
			t.Errorf("Expected DLP error, got %+v", res.Errors)
		}
	})
}

func TestProvidedDocChat(t *testing.T) {
	ctx := context.Background()

	t.Run("UsesConfiguredDocument", func(t *testing.T) {
		backend := &recordingBackend{answer: "Antwort"}
		s := newTestService(t, &scriptedInspector{}, backend, nil)

		res, err := s.ProvidedDocChat(ctx, &Request{
			Question:  "Was steht drin?",
			DocKey:    "strategiepapier",
			SessionID: "s-1",
		})
		if err != nil {
			t.Fatalf("ProvidedDocChat failed: %v", err)
		}
		if res.Answer != "Antwort" {
			t.Errorf("Wrong answer: %q", res.Answer)
		}

		sentContext := backend.requests[0].Contents[0].Text
		if !strings.Contains(sentContext, "Inhalt für strategiepapier") {
			t.Errorf("Document content missing from context: %q", sentContext)
		}
	})

	t.Run("UnknownKeyFails", func(t *testing.T) {
		backend := &recordingBackend{answer: "nie"}
		s := newTestService(t, &scriptedInspector{}, backend, nil)

		if _, err := s.ProvidedDocChat(ctx, &Request{Question: "x", DocKey: "gibtsnicht"}); err == nil {
			t.Fatal("Expected error for unknown document key")
		}
	})
}

func TestGroundedChat(t *testing.T) {
	ctx := context.Background()

	t.Run("RendersCitations", func(t *testing.T) {
		answer := "Paris is the capital."
		backend := &recordingBackend{
			answer: answer,
			grounding: &grounding.Metadata{
				Supports: []grounding.Support{
					{SegmentEnd: grounding.ByteOffset(len(answer)), ChunkIndices: []int{0}},
				},
				Chunks: []grounding.Chunk{
					{URI: "https://store/docs/geo/france.pdf", Kind: grounding.ChunkRetrieved},
				},
			},
		}
		s := newTestService(t, &scriptedInspector{}, backend, nil)

		res, err := s.GroundedChat(ctx, &Request{Question: "Hauptstadt von Frankreich?", SessionID: "s-1"})
		if err != nil {
			t.Fatalf("GroundedChat failed: %v", err)
		}
		if !strings.Contains(res.Answer, "[1]") {
			t.Errorf("Citation marker missing: %q", res.Answer)
		}
		if !strings.Contains(res.Answer, "### Relevante Quellen") {
			t.Errorf("Source list missing: %q", res.Answer)
		}
		if backend.requests[0].Grounding == nil {
			t.Error("Datastore grounding not requested")
		}
	})
}

func TestMultiTurnSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("AssemblesAnswerAndCitations", func(t *testing.T) {
		reply := discovery.ConverseReply{
			Messages: []discovery.Message{{UserInput: "Frage"}, {Reply: "..."}},
			Summary: discovery.Summary{
				Text: "Zusammenfassung.",
				CitationMetadata: discovery.CitationMetadata{
					Citations: []discovery.SummaryCitation{
						{Sources: []discovery.CitationSource{{ReferenceIndex: 0}}},
					},
				},
				References: []discovery.Reference{{Document: "docs/doc-1"}},
			},
			SearchResults: []discovery.SearchResult{
				{ID: "doc-1", StructData: discovery.StructData{FileName: "doc.pdf"}},
			},
		}

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if strings.HasSuffix(r.URL.Path, "/conversations") {
				json.NewEncoder(w).Encode(map[string]string{"name": "datastores/d/conversations/c-1"})
				return
			}
			json.NewEncoder(w).Encode(reply)
		}))
		defer ts.Close()

		searchCfg := config.SearchConfig{
			Endpoint:           ts.URL,
			DatastoreID:        "d",
			SummaryResultCount: 3,
			Timeout:            5 * time.Second,
		}
		search, err := discovery.NewClient(searchCfg, testLogger())
		if err != nil {
			t.Fatalf("Failed to create search client: %v", err)
		}

		backend := &recordingBackend{answer: "unbenutzt"}
		s := newTestService(t, &scriptedInspector{}, backend, search)

		res, err := s.MultiTurnSearch(ctx, &Request{Question: "Frage", SessionID: "s-1"})
		if err != nil {
			t.Fatalf("MultiTurnSearch failed: %v", err)
		}
		if res.Answer != "Zusammenfassung." {
			t.Errorf("Wrong answer: %q", res.Answer)
		}
		if len(res.Citations) != 1 || res.Citations[0].Name != "doc.pdf" {
			t.Errorf("Citations wrong: %+v", res.Citations)
		}
		if len(backend.requests) != 0 {
			t.Error("Search surface must not call the generation backend")
		}
	})

	t.Run("QuotaExhaustionYieldsSentinel", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer ts.Close()

		searchCfg := config.SearchConfig{
			Endpoint:    ts.URL,
			DatastoreID: "d",
			Timeout:     5 * time.Second,
		}
		search, err := discovery.NewClient(searchCfg, testLogger())
		if err != nil {
			t.Fatalf("Failed to create search client: %v", err)
		}

		s := newTestService(t, &scriptedInspector{}, &recordingBackend{}, search)

		res, err := s.MultiTurnSearch(ctx, &Request{Question: "Frage", SessionID: "s-1"})
		if err != nil {
			t.Fatalf("MultiTurnSearch failed: %v", err)
		}
		if res.Answer != genai.QuotaExceededMessage {
			t.Errorf("Expected quota message, got %q", res.Answer)
		}
		if len(res.Errors) != 1 || res.Errors[0].Status != errs.StatusQuotaError {
			t.Errorf("Expected quota error, got %+v", res.Errors)
		}
	})
}
