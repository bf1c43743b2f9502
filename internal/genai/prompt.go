package genai

import "fmt"

// DocChatPlaceholderMessage primes the model slot after the injected
// document context.
const DocChatPlaceholderMessage = "Ich warte auf den User Prompt."

// ContentsFromHistory expands a turn history into alternating user/model
// contents.
func ContentsFromHistory(history []ConversationTurn) []Content {
	contents := make([]Content, 0, 2*len(history))
	for _, turn := range history {
		contents = append(contents,
			Content{Role: RoleUser, Text: turn.Question},
			Content{Role: RoleModel, Text: turn.Answer},
		)
	}
	return contents
}

// TextChatContents builds the content sequence for a plain text-chat turn.
func TextChatContents(history []ConversationTurn, prompt string) []Content {
	return append(ContentsFromHistory(history), Content{Role: RoleUser, Text: prompt})
}

// DocChatContents builds the content sequence for a document-grounded turn:
// the document context is injected as a tagged opening user turn, answered
// by a fixed placeholder, before the real history and prompt.
func DocChatContents(docContext string, history []ConversationTurn, prompt string) []Content {
	contents := []Content{
		{Role: RoleUser, Text: "<KONTEXT> " + docContext + " </KONTEXT>"},
		{Role: RoleModel, Text: DocChatPlaceholderMessage},
	}
	contents = append(contents, ContentsFromHistory(history)...)
	return append(contents, Content{Role: RoleUser, Text: prompt})
}

// CodeChatContext renders the history as a Frage/Antwort transcript
// appended to the base context, the form the code-chat surface expects.
func CodeChatContext(base string, history []ConversationTurn) string {
	formatted := ""
	for _, turn := range history {
		formatted += fmt.Sprintf("Frage: %s\nAntwort: %s\n", turn.Question, turn.Answer)
	}
	return base + "\n" + formatted
}
