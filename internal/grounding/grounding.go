// Package grounding reconstructs an annotated answer from the grounding
// metadata a generation backend attaches when it cites retrieved sources.
package grounding

import (
	"fmt"
	"strings"
)

// ByteOffset is a byte position within the answer text. Grounding spans are
// byte-indexed, unlike detection findings which are codepoint-indexed; the
// distinct type keeps the two offset domains from being mixed.
type ByteOffset int

// Support links a span of the answer text to the chunks it cites. The span
// runs from the previous support's end (or the start of the text) to
// SegmentEnd.
type Support struct {
	SegmentEnd   ByteOffset `json:"segment_end"`
	ChunkIndices []int      `json:"chunk_indices"`
}

// ChunkKind says where a grounding chunk came from.
type ChunkKind string

const (
	ChunkWeb       ChunkKind = "web"
	ChunkRetrieved ChunkKind = "retrieved_context"
	// ChunkNone marks a chunk carrying neither a web nor a retrieved
	// record; such chunks are silently skipped when rendering sources.
	ChunkNone ChunkKind = ""
)

// Chunk is one indexed unit of cited source content.
type Chunk struct {
	Title string    `json:"title"`
	URI   string    `json:"uri"`
	Kind  ChunkKind `json:"kind"`
}

// Metadata is the grounding payload of one generation response.
type Metadata struct {
	Supports []Support `json:"supports"`
	Chunks   []Chunk   `json:"chunks"`
}

const sourcesHeader = "### Relevante Quellen\n"

// Render interleaves footnote markers into the answer and appends a
// deduplicated source list.
//
// The answer is walked as a byte sequence because segment offsets are
// byte-based. Each support emits the bytes since the previous cursor plus
// one "[n+1]" marker per cited chunk; bytes after the last support are
// appended verbatim. The source list iterates supports again, not the chunk
// list, so citations appear in the order the answer first used them; a
// chunk index already rendered is skipped on later encounters, and chunks
// without a web or retrieved record are skipped outright.
func Render(answer string, md *Metadata) string {
	if md == nil || len(md.Supports) == 0 {
		return answer
	}

	textBytes := []byte(answer)

	var b strings.Builder
	cursor := ByteOffset(0)
	for _, support := range md.Supports {
		end := support.SegmentEnd
		if end > ByteOffset(len(textBytes)) {
			end = ByteOffset(len(textBytes))
		}
		if end < cursor {
			continue
		}

		b.Write(textBytes[cursor:end])
		b.WriteString(" ")
		for _, chunkIndex := range support.ChunkIndices {
			fmt.Fprintf(&b, "[%d]", chunkIndex+1)
		}
		b.WriteString("\n")
		cursor = end
	}

	if int(cursor) < len(textBytes) {
		b.Write(textBytes[cursor:])
	}

	b.WriteString(sourcesHeader)

	rendered := make(map[int]bool)
	for _, support := range md.Supports {
		for _, chunkIndex := range support.ChunkIndices {
			if chunkIndex < 0 || chunkIndex >= len(md.Chunks) {
				continue
			}
			if rendered[chunkIndex] {
				continue
			}

			chunk := md.Chunks[chunkIndex]
			if chunk.Kind == ChunkNone {
				continue
			}

			rendered[chunkIndex] = true
			fmt.Fprintf(&b, "[%d] [%s] \n \n", chunkIndex+1, folderPath(chunk.URI))
		}
	}

	return b.String()
}

// folderPath strips the scheme and authority from a chunk URI, leaving the
// path portion the reader recognizes the document by.
func folderPath(uri string) string {
	parts := strings.Split(uri, "/")
	if len(parts) <= 3 {
		return uri + "/"
	}
	return strings.Join(parts[3:], "/") + "/"
}
