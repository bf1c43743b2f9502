package discovery

import "testing"

func intPtr(v int) *int { return &v }

func TestProcessReplies(t *testing.T) {
	t.Run("AssemblesTurnWithCitations", func(t *testing.T) {
		reply := ConverseReply{
			Messages: []Message{
				{UserInput: "Was regelt die Richtlinie?"},
				{Reply: "..."},
			},
			Summary: Summary{
				Text: "Die Richtlinie regelt Meldepflichten.",
				CitationMetadata: CitationMetadata{
					Citations: []SummaryCitation{
						{Sources: []CitationSource{{ReferenceIndex: 0}}},
					},
				},
				References: []Reference{
					{Document: "projects/p/dataStores/d/documents/doc-1"},
				},
			},
			SearchResults: []SearchResult{
				{
					ID: "doc-1",
					StructData: StructData{
						PathInDir:     "richtlinien/2024",
						FileName:      "meldepflichten.pdf",
						SharepointURL: "https://sharepoint.example.com/meldepflichten",
					},
					ExtractiveAnswers: []ExtractiveAnswer{
						{PageNumber: intPtr(4), Content: "Meldung binnen 24 Stunden."},
					},
				},
			},
		}

		turns := ProcessReplies([]ConverseReply{reply})
		if len(turns) != 1 {
			t.Fatalf("Expected one turn, got %d", len(turns))
		}

		turn := turns[0]
		if turn.Prompt != "Was regelt die Richtlinie?" {
			t.Errorf("Wrong prompt: %q", turn.Prompt)
		}
		if turn.Answer != "Die Richtlinie regelt Meldepflichten." {
			t.Errorf("Wrong answer: %q", turn.Answer)
		}
		if len(turn.References) != 1 {
			t.Fatalf("Expected one reference, got %d", len(turn.References))
		}

		ref := turn.References[0]
		if ref.ID != 1 {
			t.Errorf("Citation ids are 1-based, got %d", ref.ID)
		}
		if ref.Name != "meldepflichten.pdf" || ref.Path != "richtlinien/2024" {
			t.Errorf("Citation metadata wrong: %+v", ref)
		}
		if len(ref.Content) != 1 || ref.Content[0].Page != 4 {
			t.Errorf("Citation content wrong: %+v", ref.Content)
		}
	})

	t.Run("PromptIndexAdvancesByTwo", func(t *testing.T) {
		replies := []ConverseReply{
			{Messages: []Message{{UserInput: "erste"}, {Reply: "a"}, {UserInput: "zweite"}, {Reply: "b"}}},
			{Messages: []Message{{UserInput: "erste"}, {Reply: "a"}, {UserInput: "zweite"}, {Reply: "b"}}},
		}

		turns := ProcessReplies(replies)
		if len(turns) != 2 {
			t.Fatalf("Expected two turns, got %d", len(turns))
		}
		if turns[0].Prompt != "erste" {
			t.Errorf("First turn prompt: %q", turns[0].Prompt)
		}
		if turns[1].Prompt != "zweite" {
			t.Errorf("Second turn prompt: %q", turns[1].Prompt)
		}
	})

	t.Run("DeduplicatesReferenceIndicesInFirstSeenOrder", func(t *testing.T) {
		reply := ConverseReply{
			Summary: Summary{
				CitationMetadata: CitationMetadata{
					Citations: []SummaryCitation{
						{Sources: []CitationSource{{ReferenceIndex: 1}, {ReferenceIndex: 0}}},
						{Sources: []CitationSource{{ReferenceIndex: 1}}},
					},
				},
				References: []Reference{
					{Document: "docs/a"},
					{Document: "docs/b"},
				},
			},
			SearchResults: []SearchResult{
				{ID: "a"},
				{ID: "b"},
			},
		}

		turns := ProcessReplies([]ConverseReply{reply})
		refs := turns[0].References
		if len(refs) != 2 {
			t.Fatalf("Expected two references, got %d", len(refs))
		}
		// Reference index 1 was cited first, so it leads with id 2
		if refs[0].ID != 2 || refs[1].ID != 1 {
			t.Errorf("Reference order wrong: %+v", refs)
		}
	})

	t.Run("DefaultsForMissingPageAndContent", func(t *testing.T) {
		reply := ConverseReply{
			Summary: Summary{
				CitationMetadata: CitationMetadata{
					Citations: []SummaryCitation{
						{Sources: []CitationSource{{ReferenceIndex: 0}}},
					},
				},
				References: []Reference{{Document: "docs/x"}},
			},
			SearchResults: []SearchResult{
				{
					ID:                "x",
					ExtractiveAnswers: []ExtractiveAnswer{{}},
				},
			},
		}

		turns := ProcessReplies([]ConverseReply{reply})
		content := turns[0].References[0].Content
		if len(content) != 1 {
			t.Fatalf("Expected one content entry, got %d", len(content))
		}
		if content[0].Page != 999 {
			t.Errorf("Expected default page 999, got %d", content[0].Page)
		}
		if content[0].Content != "Kein Inhalt erhalten" {
			t.Errorf("Expected the no-content message, got %q", content[0].Content)
		}
	})

	t.Run("UnmatchedReferencesDropped", func(t *testing.T) {
		reply := ConverseReply{
			Summary: Summary{
				CitationMetadata: CitationMetadata{
					Citations: []SummaryCitation{
						{Sources: []CitationSource{{ReferenceIndex: 0}, {ReferenceIndex: 7}}},
					},
				},
				References: []Reference{{Document: "docs/missing"}},
			},
			SearchResults: []SearchResult{{ID: "other"}},
		}

		turns := ProcessReplies([]ConverseReply{reply})
		if len(turns[0].References) != 0 {
			t.Errorf("Expected no references, got %+v", turns[0].References)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		if turns := ProcessReplies(nil); len(turns) != 0 {
			t.Errorf("Expected no turns, got %d", len(turns))
		}
	})
}
