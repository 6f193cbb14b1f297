package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"

	contractx "github.com/techflowhq/support-agent/agent/contract"
)

const (
	defaultTopK  = 3
	chunkSize    = 800
	chunkOverlap = 150
)

type policyChunk struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Index is the queryable policy-document index, built once at startup from a
// fixed corpus and never mutated afterwards.
type Index struct {
	idx  bleve.Index
	topK int
	docs int
}

// Build loads every .md file under docsDir, splits it into overlapping
// chunks, and indexes the chunks in memory. A missing or empty corpus is
// valid; searches then return no snippets.
func Build(docsDir string, topK int) (*Index, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create policy index: %w", err)
	}
	out := &Index{idx: idx, topK: topK}

	entries, err := os.ReadDir(docsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read policy docs dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(docsDir, name))
		if err != nil {
			continue
		}
		for i, chunk := range chunkText(string(raw), chunkSize, chunkOverlap) {
			id := fmt.Sprintf("%s#%d", name, i)
			doc := policyChunk{Source: name, Content: chunk}
			if err := idx.Index(id, doc); err != nil {
				return nil, fmt.Errorf("index policy chunk %s: %w", id, err)
			}
		}
		out.docs++
	}

	return out, nil
}

// Search returns up to topK ranked snippets for the query. Zero results is a
// normal outcome the agent must handle without fabricating content.
func (i *Index) Search(ctx context.Context, query string) ([]contractx.Snippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), i.topK, 0, false)
	req.Fields = []string{"source", "content"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("policy search: %w", err)
	}

	snippets := make([]contractx.Snippet, 0, len(res.Hits))
	for _, hit := range res.Hits {
		s := contractx.Snippet{Score: hit.Score}
		if v, ok := hit.Fields["source"].(string); ok {
			s.Source = v
		}
		if v, ok := hit.Fields["content"].(string); ok {
			s.Content = v
		}
		if s.Content == "" {
			continue
		}
		snippets = append(snippets, s)
	}
	return snippets, nil
}

// DocCount reports how many source documents were indexed.
func (i *Index) DocCount() int {
	return i.docs
}

// Close releases the in-memory index.
func (i *Index) Close() error {
	return i.idx.Close()
}

func chunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		// Break on a whitespace boundary where possible.
		cut := end
		for cut > start && !isSpace(text[cut-1]) {
			cut--
		}
		if cut == start {
			cut = end
		}
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
