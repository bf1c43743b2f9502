package dlp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
)

// fakeInspector returns scripted results keyed by the inspected text.
type fakeInspector struct {
	results map[string]InspectResult
	err     error
	calls   []string
}

func (f *fakeInspector) Inspect(ctx context.Context, text, jurisdiction string) (InspectResult, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return InspectResult{}, f.err
	}
	return f.results[text], nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func newTestRedactor(inspector Inspector, maxChunkSize int) *Redactor {
	det := config.DetectionConfig{MaxChunkSize: maxChunkSize}
	red := config.RedactionConfig{Seed: 1}
	detector := NewDetector(inspector, nil, testLogger())
	return NewRedactor(detector, det, red, testLogger())
}

// findingFor computes codepoint offsets of quote within text, the way an
// inspector reports them.
func findingFor(text, quote string, infoType InfoType) Finding {
	byteStart := strings.Index(text, quote)
	if byteStart < 0 {
		panic("quote not in text: " + quote)
	}
	start := utf8.RuneCountInString(text[:byteStart])
	return Finding{
		InfoType:   infoType,
		Quote:      quote,
		Start:      CodepointOffset(start),
		End:        CodepointOffset(start + utf8.RuneCountInString(quote)),
		Likelihood: LikelihoodLikely,
	}
}

func TestAnonymize(t *testing.T) {
	ctx := context.Background()

	t.Run("MasksFindingsPreservingLength", func(t *testing.T) {
		text := "Kontakt: Jürgen Müller, Tel 0151 2345678."
		f1 := findingFor(text, "Jürgen Müller", InfoTypeFirstName)
		f2 := findingFor(text, "0151 2345678", InfoTypePhoneNumber)

		inspector := &fakeInspector{results: map[string]InspectResult{
			text: {Findings: []Finding{f1, f2}},
		}}
		r := newTestRedactor(inspector, 400000)

		masked, info, err := r.Anonymize(ctx, text, "europe-west3")
		if err != nil {
			t.Fatalf("Anonymize failed: %v", err)
		}
		if info != NoticeAnonymized {
			t.Errorf("Expected anonymization notice, got %q", info)
		}

		want := "Kontakt: *************, Tel ************."
		if masked != want {
			t.Errorf("Masked text mismatch:\n got %q\nwant %q", masked, want)
		}
		if utf8.RuneCountInString(masked) != utf8.RuneCountInString(text) {
			t.Errorf("Masking changed codepoint length: %d != %d",
				utf8.RuneCountInString(masked), utf8.RuneCountInString(text))
		}
	})

	t.Run("NoFindingsReturnsOriginal", func(t *testing.T) {
		text := "Die Hauptstadt von Frankreich ist Paris."
		inspector := &fakeInspector{results: map[string]InspectResult{
			text: {},
		}}
		r := newTestRedactor(inspector, 400000)

		masked, info, err := r.Anonymize(ctx, text, "europe-west3")
		if err != nil {
			t.Fatalf("Anonymize failed: %v", err)
		}
		if masked != text {
			t.Errorf("Clean text was altered: %q", masked)
		}
		if info != "" {
			t.Errorf("Expected empty info for clean text, got %q", info)
		}
	})

	t.Run("StripsReservedDelimiter", func(t *testing.T) {
		inspector := &fakeInspector{results: map[string]InspectResult{
			"a b c": {},
		}}
		r := newTestRedactor(inspector, 400000)

		masked, _, err := r.Anonymize(ctx, "a|b|c", "europe-west3")
		if err != nil {
			t.Fatalf("Anonymize failed: %v", err)
		}
		if masked != "a b c" {
			t.Errorf("Delimiter not stripped: %q", masked)
		}
		if len(inspector.calls) != 1 || inspector.calls[0] != "a b c" {
			t.Errorf("Inspector saw %v, want the stripped text", inspector.calls)
		}
	})

	t.Run("ChunksLargeDocuments", func(t *testing.T) {
		// 10 codepoints, chunk size 4: chunks of 4, 4, 2
		text := "aaaabbbbcc"
		inspector := &fakeInspector{results: map[string]InspectResult{
			"aaaa": {}, "bbbb": {}, "cc": {},
		}}
		r := newTestRedactor(inspector, 4)

		masked, _, err := r.Anonymize(ctx, text, "europe-west3")
		if err != nil {
			t.Fatalf("Anonymize failed: %v", err)
		}
		if len(inspector.calls) != 3 {
			t.Fatalf("Expected 3 inspections, got %d: %v", len(inspector.calls), inspector.calls)
		}
		// No findings anywhere, so the original text survives unjoined
		if masked != text {
			t.Errorf("Clean chunked text was altered: %q", masked)
		}
	})

	t.Run("ChunkedFindingsRejoinedWithSpace", func(t *testing.T) {
		text := "aaaabbbb"
		f := findingFor("bbbb", "bb", InfoTypeLastName)
		inspector := &fakeInspector{results: map[string]InspectResult{
			"aaaa": {},
			"bbbb": {Findings: []Finding{f}},
		}}
		r := newTestRedactor(inspector, 4)

		masked, info, err := r.Anonymize(ctx, text, "europe-west3")
		if err != nil {
			t.Fatalf("Anonymize failed: %v", err)
		}
		if masked != "aaaa **bb" {
			t.Errorf("Masked chunked text mismatch: %q", masked)
		}
		if info != NoticeAnonymized {
			t.Errorf("Expected notice, got %q", info)
		}
	})

	t.Run("TruncatedFindingsAbort", func(t *testing.T) {
		text := "zu viele Daten"
		inspector := &fakeInspector{results: map[string]InspectResult{
			text: {Truncated: true},
		}}
		r := newTestRedactor(inspector, 400000)

		_, _, err := r.Anonymize(ctx, text, "europe-west3")
		if !errors.Is(err, ErrTooManyFindings) {
			t.Fatalf("Expected ErrTooManyFindings, got %v", err)
		}
	})

	t.Run("InspectorFailurePropagates", func(t *testing.T) {
		inspector := &fakeInspector{err: errors.New("backend down")}
		r := newTestRedactor(inspector, 400000)

		_, _, err := r.Anonymize(ctx, "text", "europe-west3")
		if err == nil {
			t.Fatal("Expected error from failing inspector")
		}
	})
}

func TestPseudonymize(t *testing.T) {
	ctx := context.Background()

	t.Run("ReplacesQuotesAndRecordsMapping", func(t *testing.T) {
		text := "Herr Schmidt wohnt in der Hauptstraße 5."
		f1 := findingFor(text, "Schmidt", InfoTypeLastName)
		f2 := findingFor(text, "Hauptstraße 5", InfoTypeStreetAddress)

		inspector := &fakeInspector{results: map[string]InspectResult{
			text: {Findings: []Finding{f1, f2}},
		}}
		r := newTestRedactor(inspector, 400000)

		out, mapping, err := r.Pseudonymize(ctx, text, "europe-west3")
		if err != nil {
			t.Fatalf("Pseudonymize failed: %v", err)
		}
		if strings.Contains(out, "Schmidt") {
			t.Errorf("Original surname survived: %q", out)
		}
		if strings.Contains(out, "Hauptstraße 5") {
			t.Errorf("Original address survived: %q", out)
		}

		entry, ok := mapping[InfoTypeLastName]
		if !ok {
			t.Fatal("No mapping entry for last name")
		}
		if !strings.HasPrefix(entry, "Schmidt -> ") {
			t.Errorf("Mapping entry format wrong: %q", entry)
		}
	})

	t.Run("LastWriteWinsPerInfoType", func(t *testing.T) {
		text := "Anna und Petra"
		f1 := findingFor(text, "Anna", InfoTypeFirstName)
		f2 := findingFor(text, "Petra", InfoTypeFirstName)

		inspector := &fakeInspector{results: map[string]InspectResult{
			text: {Findings: []Finding{f1, f2}},
		}}
		r := newTestRedactor(inspector, 400000)

		_, mapping, err := r.Pseudonymize(ctx, text, "europe-west3")
		if err != nil {
			t.Fatalf("Pseudonymize failed: %v", err)
		}
		if len(mapping) != 1 {
			t.Fatalf("Expected one mapping entry, got %d", len(mapping))
		}
		if !strings.HasPrefix(mapping[InfoTypeFirstName], "Petra -> ") {
			t.Errorf("Expected the later finding to win, got %q", mapping[InfoTypeFirstName])
		}
	})

	t.Run("UnknownInfoTypeFails", func(t *testing.T) {
		text := "irgendwas"
		inspector := &fakeInspector{results: map[string]InspectResult{
			text: {Findings: []Finding{{InfoType: InfoType("PASSPORT"), Quote: "irgendwas"}}},
		}}
		r := newTestRedactor(inspector, 400000)

		_, _, err := r.Pseudonymize(ctx, text, "europe-west3")
		if !errors.Is(err, ErrPseudonymization) {
			t.Fatalf("Expected ErrPseudonymization, got %v", err)
		}
	})

	t.Run("TruncatedFindingsAbort", func(t *testing.T) {
		text := "zu viel"
		inspector := &fakeInspector{results: map[string]InspectResult{
			text: {Truncated: true},
		}}
		r := newTestRedactor(inspector, 400000)

		_, _, err := r.Pseudonymize(ctx, text, "europe-west3")
		if !errors.Is(err, ErrTooManyFindings) {
			t.Fatalf("Expected ErrTooManyFindings, got %v", err)
		}
	})

	t.Run("GenderAwareFirstNames", func(t *testing.T) {
		text := "Anna fragt"
		f := findingFor(text, "Anna", InfoTypeFirstName)
		inspector := &fakeInspector{results: map[string]InspectResult{
			text: {Findings: []Finding{f}},
		}}
		r := newTestRedactor(inspector, 400000)

		_, mapping, err := r.Pseudonymize(ctx, text, "europe-west3")
		if err != nil {
			t.Fatalf("Pseudonymize failed: %v", err)
		}

		replacement := strings.TrimPrefix(mapping[InfoTypeFirstName], "Anna -> ")
		found := false
		for _, name := range femaleFirstNames {
			if name == replacement {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Replacement %q is not from the female name list", replacement)
		}
	})
}

func TestMaskSection(t *testing.T) {
	t.Run("RejectsOutOfBoundsFinding", func(t *testing.T) {
		_, err := maskSection("kurz", []Finding{{Start: 0, End: 10}})
		if err == nil {
			t.Fatal("Expected error for out-of-bounds finding")
		}
	})

	t.Run("RejectsOverlappingFindings", func(t *testing.T) {
		_, err := maskSection("abcdef", []Finding{
			{Start: 0, End: 4},
			{Start: 2, End: 6},
		})
		if err == nil {
			t.Fatal("Expected error for overlapping findings")
		}
	})

	t.Run("MasksMultibyteRunes", func(t *testing.T) {
		out, err := maskSection("Grüße", []Finding{{Start: 0, End: 5}})
		if err != nil {
			t.Fatalf("maskSection failed: %v", err)
		}
		if out != "*****" {
			t.Errorf("Expected five mask runes, got %q", out)
		}
	})
}

func TestSplitChunks(t *testing.T) {
	t.Run("SmallTextSingleChunk", func(t *testing.T) {
		chunks := splitChunks("hallo", 10)
		if len(chunks) != 1 || chunks[0] != "hallo" {
			t.Errorf("Unexpected chunks: %v", chunks)
		}
	})

	t.Run("SplitsOnCodepointBoundaries", func(t *testing.T) {
		chunks := splitChunks("äöüäöü", 2)
		if len(chunks) != 3 {
			t.Fatalf("Expected 3 chunks, got %v", chunks)
		}
		for _, c := range chunks {
			if !utf8.ValidString(c) {
				t.Errorf("Chunk %q is not valid UTF-8", c)
			}
			if utf8.RuneCountInString(c) != 2 {
				t.Errorf("Chunk %q has wrong codepoint count", c)
			}
		}
	})
}
