package indexer

import "strings"

const (
	DefaultChunkSizeWords = 150
	DefaultChunkOverlap   = 0.15
)

// Chunk splits text into overlapping word windows.
//
// Words are whitespace-separated. Each window holds sizeWords words and the
// window start advances by step = max(1, floor(sizeWords*(1-overlap))), so the
// final window may be shorter. The output is deterministic for identical input.
//
// onlyIndices, when non-nil, restricts the output to windows whose sequential
// index is in the set; the pointer still advances through every window, so
// filtering never changes which words land in which window. This allows
// re-materializing a subset of chunks without recomputing the earlier ones.
func Chunk(text string, sizeWords int, overlap float64, onlyIndices []int) []string {
	if sizeWords <= 0 {
		sizeWords = DefaultChunkSizeWords
	}
	if overlap < 0 || overlap >= 1 {
		overlap = DefaultChunkOverlap
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var wanted map[int]bool
	if onlyIndices != nil {
		wanted = make(map[int]bool, len(onlyIndices))
		for _, idx := range onlyIndices {
			wanted[idx] = true
		}
	}

	step := int(float64(sizeWords) * (1 - overlap))
	if step < 1 {
		step = 1
	}

	var chunks []string
	chunkIndex := 0
	for i := 0; i < len(words); i += step {
		if wanted == nil || wanted[chunkIndex] {
			end := i + sizeWords
			if end > len(words) {
				end = len(words)
			}
			chunks = append(chunks, strings.Join(words[i:end], " "))
		}
		chunkIndex++
	}

	return chunks
}

// ChunkCount returns the number of windows Chunk produces for a word count,
// without materializing them.
func ChunkCount(wordCount, sizeWords int, overlap float64) int {
	if wordCount <= 0 {
		return 0
	}
	if sizeWords <= 0 {
		sizeWords = DefaultChunkSizeWords
	}
	if overlap < 0 || overlap >= 1 {
		overlap = DefaultChunkOverlap
	}
	step := int(float64(sizeWords) * (1 - overlap))
	if step < 1 {
		step = 1
	}
	return (wordCount + step - 1) / step
}
