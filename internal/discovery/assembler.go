package discovery

import "strings"

const (
	// defaultPageNumber marks passages whose page is unknown.
	defaultPageNumber = 999
	// noContentMessage fills passages the backend returned without text.
	noContentMessage = "Kein Inhalt erhalten"
)

// ProcessReplies correlates each reply's answer text, cited references and
// retrieved passages into assembled turn results.
//
// The originating prompt is paired by a running message index advancing by
// two per turn, reflecting the alternating user/model slots. Cited
// reference indices are deduplicated preserving first appearance, so the
// output reference order follows first use in the summary, not the raw
// citation order. Each deduplicated index resolves to a search result by
// matching the reference document's final path segment against the
// result's own identifier; unmatched references are dropped.
func ProcessReplies(replies []ConverseReply) []TurnResult {
	results := make([]TurnResult, 0, len(replies))

	msgIndex := 0
	for _, reply := range replies {
		turn := TurnResult{
			Answer:     reply.Summary.Text,
			References: []Citation{},
		}
		if msgIndex < len(reply.Messages) {
			turn.Prompt = reply.Messages[msgIndex].UserInput
		}
		msgIndex += 2

		for _, refIndex := range citedReferenceIndices(reply.Summary.CitationMetadata) {
			if refIndex < 0 || refIndex >= len(reply.Summary.References) {
				continue
			}

			refID := referenceID(reply.Summary.References[refIndex])
			for _, result := range reply.SearchResults {
				if result.ID != refID {
					continue
				}
				turn.References = append(turn.References, buildCitation(refIndex, result))
			}
		}

		results = append(results, turn)
	}

	return results
}

// ToMarkdown renders the final answer text of a turn.
func ToMarkdown(turn TurnResult) string {
	return turn.Answer
}

// citedReferenceIndices flattens citation sources into a deduplicated index
// list in order of first appearance.
func citedReferenceIndices(md CitationMetadata) []int {
	seen := make(map[int]bool)
	var indices []int
	for _, citation := range md.Citations {
		for _, source := range citation.Sources {
			if seen[source.ReferenceIndex] {
				continue
			}
			seen[source.ReferenceIndex] = true
			indices = append(indices, source.ReferenceIndex)
		}
	}
	return indices
}

// referenceID extracts the document identifier from a reference resource
// path.
func referenceID(ref Reference) string {
	parts := strings.Split(ref.Document, "/")
	return parts[len(parts)-1]
}

// buildCitation assembles one citation from a matched search result.
// Citation ids are 1-based.
func buildCitation(refIndex int, result SearchResult) Citation {
	contents := make([]GroundContent, 0, len(result.ExtractiveAnswers))
	for _, answer := range result.ExtractiveAnswers {
		page := defaultPageNumber
		if answer.PageNumber != nil {
			page = *answer.PageNumber
		}
		content := answer.Content
		if content == "" {
			content = noContentMessage
		}
		contents = append(contents, GroundContent{Page: page, Content: content})
	}

	return Citation{
		ID:      refIndex + 1,
		Name:    result.StructData.FileName,
		Link:    result.StructData.SharepointURL,
		Path:    result.StructData.PathInDir,
		Content: contents,
	}
}
