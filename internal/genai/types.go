package genai

import "github.com/hieuminhle/cdc-weltwissen/internal/grounding"

// Role tags one content entry in a conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Content is one entry of the ordered conversation sent to the backend.
type Content struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ConversationTurn is one question/answer pair. A session's history is an
// append-only sequence of turns owned by the caller; turns are never
// mutated in place.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Harm categories and the default blocking threshold applied to every
// generation request.
const (
	HarmHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"
	HarmSexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmHarassment       = "HARM_CATEGORY_HARASSMENT"

	BlockOnlyHigh = "BLOCK_ONLY_HIGH"
)

// DefaultSafetySettings returns the safety thresholds applied when a
// request does not override them.
func DefaultSafetySettings() map[string]string {
	return map[string]string{
		HarmHateSpeech:       BlockOnlyHigh,
		HarmDangerousContent: BlockOnlyHigh,
		HarmSexuallyExplicit: BlockOnlyHigh,
		HarmHarassment:       BlockOnlyHigh,
	}
}

// Datastore references a search datastore the backend should ground its
// answer in.
type Datastore struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}

// Request is one logical generation request, independent of the region it
// ends up being served from.
type Request struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction []string          `json:"system_instruction"`
	Temperature       float32           `json:"temperature"`
	MaxOutputTokens   int               `json:"max_output_tokens"`
	Grounding         *Datastore        `json:"grounding,omitempty"`
	SafetySettings    map[string]string `json:"safety_settings,omitempty"`
}

// Usage carries the token counts read from a successful response's own
// metadata. There is no estimation fallback.
type Usage struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
}

// Response is a successful generation result.
type Response struct {
	Text      string              `json:"text"`
	Usage     Usage               `json:"usage"`
	Grounding *grounding.Metadata `json:"grounding,omitempty"`
}
