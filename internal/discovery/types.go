package discovery

// Types mirroring the conversational-search backend's wire contract: a
// reply carries a summary with citation metadata, the conversation messages
// so far, and the retrieved results backing the citations.

// ConverseReply is one turn's response from the search backend.
type ConverseReply struct {
	Summary       Summary        `json:"summary"`
	Messages      []Message      `json:"messages"`
	SearchResults []SearchResult `json:"search_results"`
}

// Message is one slot in the alternating user/model conversation.
type Message struct {
	UserInput string `json:"user_input,omitempty"`
	Reply     string `json:"reply,omitempty"`
}

// Summary is the generated answer plus its citation metadata.
type Summary struct {
	Text             string           `json:"text"`
	CitationMetadata CitationMetadata `json:"citation_metadata"`
	References       []Reference      `json:"references"`
}

// CitationMetadata lists the citations the summary was built from.
type CitationMetadata struct {
	Citations []SummaryCitation `json:"citations"`
}

// SummaryCitation points at one or more references by index.
type SummaryCitation struct {
	Sources []CitationSource `json:"sources"`
}

// CitationSource carries the index into Summary.References.
type CitationSource struct {
	ReferenceIndex int `json:"reference_index"`
}

// Reference names the underlying document as a resource path; its final
// path segment is the identifier matched against SearchResult.ID.
type Reference struct {
	Document string `json:"document"`
}

// SearchResult is one retrieved document with its structured metadata and
// optional extractive-answer passages.
type SearchResult struct {
	ID                string             `json:"id"`
	StructData        StructData         `json:"struct_data"`
	ExtractiveAnswers []ExtractiveAnswer `json:"extractive_answers,omitempty"`
}

// StructData is the ingestion-time metadata attached to a document.
type StructData struct {
	PathInDir     string `json:"path_in_dir"`
	FileName      string `json:"file_name"`
	SharepointURL string `json:"sharepoint_url"`
}

// ExtractiveAnswer is one passage lifted verbatim from a document. Both
// fields are optional on the wire.
type ExtractiveAnswer struct {
	PageNumber *int   `json:"page_number,omitempty"`
	Content    string `json:"content,omitempty"`
}

// GroundContent is one cited passage in an assembled citation.
type GroundContent struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// Citation joins a cited reference to its retrieved document.
type Citation struct {
	ID      int             `json:"id"`
	Name    string          `json:"name"`
	Link    string          `json:"link"`
	Path    string          `json:"path"`
	Content []GroundContent `json:"content"`
}

// TurnResult is the assembled view of one conversation turn.
type TurnResult struct {
	Prompt     string     `json:"prompt"`
	Answer     string     `json:"answer"`
	References []Citation `json:"references"`
}
