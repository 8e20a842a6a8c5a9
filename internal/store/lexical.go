package store

import "context"

// Document is a unit of text submitted to the lexical (BM25) index: a
// chunk's id, its project tag (for per-project filtering), and its
// rendered text (spec.md §4.5 lexical store).
type Document struct {
	ID      string
	Project string
	Text    string
}

// BM25Result is a single lexical search hit, in decreasing-score order.
type BM25Result struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// IndexStats reports lexical index occupancy.
type IndexStats struct {
	DocumentCount int
}

// BM25Config configures BM25 scoring and tokenization.
type BM25Config struct {
	K1             float64
	B              float64
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 parameters, with stop words tuned
// for transcript text that mixes prose and code (spec.md chunks carry both).
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultTranscriptStopWords,
		MinTokenLength: 2,
	}
}

// DefaultTranscriptStopWords filters common programming keywords and
// generic identifiers that would otherwise dominate BM25 term frequency
// across nearly every code-bearing chunk.
var DefaultTranscriptStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// BM25Index provides BM25-like keyword search over chunk text with an
// optional project filter (spec.md §4.5).
type BM25Index interface {
	Index(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, limit int, project string) ([]BM25Result, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() ([]string, error)
	Stats() IndexStats
	Save(path string) error
	Load(path string) error
	Close() error
}
