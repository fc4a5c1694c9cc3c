package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TextChunker splits regulation text into overlapping chunks sized for the
// embedding model. Splits happen on article boundaries first, then
// paragraphs, then sentences.
type TextChunker interface {
	ChunkText(text string, maxChunkSize int, overlap int) []Chunk
}

// Chunk is one embeddable slice of a regulation document. Article carries
// the nearest preceding article heading (e.g. "제32조") when one was seen,
// so the retrieval layer can label citations.
type Chunk struct {
	Text    string
	Article string
}

var articleHeadingRe = regexp.MustCompile(`제\s*\d+\s*조(?:의\s*\d+)?`)

type textChunker struct{}

func NewTextChunker() TextChunker {
	return &textChunker{}
}

// ChunkText implements TextChunker.
func (tc *textChunker) ChunkText(text string, maxChunkSize int, overlap int) []Chunk {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	paragraphs := strings.Split(text, "\n\n")

	var chunks []Chunk
	var currentChunk strings.Builder
	currentArticle := ""

	flush := func() {
		if currentChunk.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:    currentChunk.String(),
			Article: currentArticle,
		})

		// Seed the next chunk with trailing overlap from this one.
		prev := currentChunk.String()
		currentChunk.Reset()
		if overlap > 0 {
			overlapText := lastNRunes(prev, overlap)
			if overlapText != "" {
				currentChunk.WriteString(overlapText)
				currentChunk.WriteString(" ")
			}
		}
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if heading := articleHeadingRe.FindString(para); heading != "" {
			currentArticle = heading
		}

		if utf8.RuneCountInString(para) > maxChunkSize {
			for _, sentence := range splitIntoSentences(para) {
				if currentChunk.Len()+len(sentence)+1 > maxChunkSize {
					flush()
				}
				if currentChunk.Len() > 0 {
					currentChunk.WriteString(" ")
				}
				currentChunk.WriteString(sentence)
			}
			continue
		}

		if currentChunk.Len()+len(para)+2 > maxChunkSize {
			flush()
		}
		if currentChunk.Len() > 0 {
			currentChunk.WriteString("\n\n")
		}
		currentChunk.WriteString(para)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, Chunk{
			Text:    currentChunk.String(),
			Article: currentArticle,
		})
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var result []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func lastNRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	return string(runes[len(runes)-n:])
}
