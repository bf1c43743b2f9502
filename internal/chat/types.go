package chat

import (
	"github.com/hieuminhle/cdc-weltwissen/internal/discovery"
	"github.com/hieuminhle/cdc-weltwissen/internal/dlp"
	"github.com/hieuminhle/cdc-weltwissen/internal/errs"
	"github.com/hieuminhle/cdc-weltwissen/internal/genai"
)

// Chat surface names as recorded in usage metrics and transcripts.
const (
	TypeTextChat        = "text_chat"
	TypeDocChat         = "doc_chat"
	TypeProvidedDocChat = "provided_doc_chat"
	TypeCodeChat        = "code_chat"
	TypeGroundedChat    = "grounded_chat"
	TypeMultiTurnSearch = "multiturn_search"
)

// Request is one user question with its session context. History is the
// full prior conversation; the service appends the new turn before
// returning it.
type Request struct {
	Question  string
	SessionID string
	UserHash  string
	History   []genai.ConversationTurn

	// ApplyPseudonymization lets a text-chat question with personal data
	// through with synthetic replacements instead of rejecting it.
	ApplyPseudonymization bool

	// DocContext is the user-supplied document for the doc-chat surface.
	DocContext string

	// DocKey selects a locally curated document for provided-doc chat.
	DocKey string
}

// Result is the answer to one chat request. Errors carries structured
// backend errors; a non-empty slice still comes with a user-facing Answer.
type Result struct {
	Question string
	Answer   string
	History  []genai.ConversationTurn
	Errors   []*errs.BackendError

	// Info carries the anonymization notice when the document context was
	// altered.
	Info string

	// Mapping lists the pseudonym substitutions applied to the question,
	// keyed by category.
	Mapping dlp.ReplacementMapping

	// Citations is populated by the multi-turn search surface only.
	Citations []discovery.Citation
}
