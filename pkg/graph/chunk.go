package graph

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/scilab-ai/scilab/backend/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoder = "o200k_base"

// ChunkParams controls how document text is split into chunks.
// ChunkSize and ChunkOverlap are measured in tokens of Encoder.
type ChunkParams struct {
	Encoder      string
	ChunkSize    int
	ChunkOverlap int
}

type sentence struct {
	text   string
	tokens int
}

// SplitText splits text into token bounded chunks made of whole sentences.
// Consecutive chunks share up to ChunkOverlap tokens of trailing sentences.
// Sentences longer than ChunkSize are cut on token boundaries.
func SplitText(text string, documentID string, params ChunkParams) ([]common.Chunk, error) {
	if params.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", params.ChunkSize)
	}
	if params.ChunkOverlap < 0 || params.ChunkOverlap >= params.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", params.ChunkOverlap, params.ChunkSize)
	}
	encoder := params.Encoder
	if encoder == "" {
		encoder = DefaultEncoder
	}
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}

	var sentences []sentence
	for _, s := range splitIntoSentences(text) {
		tokens := enc.Encode(s, nil, nil)
		if len(tokens) <= params.ChunkSize {
			sentences = append(sentences, sentence{text: s, tokens: len(tokens)})
			continue
		}
		for start := 0; start < len(tokens); start += params.ChunkSize {
			end := min(start+params.ChunkSize, len(tokens))
			part := strings.TrimSpace(enc.Decode(tokens[start:end]))
			if part != "" {
				sentences = append(sentences, sentence{text: part, tokens: end - start})
			}
		}
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []common.Chunk
	flush := func(from, to int) error {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		parts := make([]string, 0, to-from)
		for _, s := range sentences[from:to] {
			parts = append(parts, s.text)
		}
		index := len(chunks)
		chunks = append(chunks, common.Chunk{
			ID:         id,
			DocumentID: documentID,
			Index:      index,
			Start:      from,
			End:        to,
			Text:       strings.Join(parts, " "),
			Metadata: map[string]string{
				common.PropDocumentID: documentID,
				common.PropChunkID:    id,
				"chunk_index":         strconv.Itoa(index),
			},
		})
		return nil
	}

	start, tokens := 0, 0
	for i, s := range sentences {
		// +1 for the joining space
		cost := s.tokens
		if i > start {
			cost++
		}
		if tokens+cost <= params.ChunkSize || i == start {
			tokens += cost
			continue
		}
		if err := flush(start, i); err != nil {
			return nil, err
		}

		next, carried := i, 0
		for next > start+1 && carried+sentences[next-1].tokens+1+s.tokens <= params.ChunkSize {
			if carried+sentences[next-1].tokens > params.ChunkOverlap {
				break
			}
			next--
			carried += sentences[next].tokens + 1
		}
		start = next
		tokens = carried + s.tokens
	}
	if err := flush(start, len(sentences)); err != nil {
		return nil, err
	}

	return chunks, nil
}

func endsSentence(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), "\"')]}")
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

// splitIntoSentences joins wrapped lines and breaks on sentence punctuation.
// Blank lines always end the current sentence.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	push := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for line := range strings.SplitSeq(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			push()
			continue
		}
		for _, part := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(part)
			if endsSentence(part) {
				push()
			}
		}
	}
	push()

	return sentences
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] != '.' && line[i] != '!' && line[i] != '?' {
			continue
		}
		// "1. item" style numbering
		if line[i] == '.' && i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
			continue
		}
		// decimals and abbreviations like "e.g." keep going
		if i+1 < len(line) && line[i+1] != ' ' && line[i+1] != '"' && line[i+1] != '\'' &&
			line[i+1] != ')' && line[i+1] != ']' && line[i+1] != '.' && line[i+1] != '!' && line[i+1] != '?' {
			continue
		}

		j := i + 1
		for j < len(line) && strings.IndexByte(".!?\"')]}", line[j]) >= 0 {
			current.WriteByte(line[j])
			j++
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
