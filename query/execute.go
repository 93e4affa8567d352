package query

import (
	"sort"
	"strings"

	"github.com/cyberpath/sentinel/document"
	"github.com/cyberpath/sentinel/value"
)

// Result is the outcome of executing a query: the paginated documents
// and the total number of matches before pagination.
type Result struct {
	Documents  []*document.Document `json:"documents"`
	TotalCount int                  `json:"total_count"`
}

// Execute evaluates q against a snapshot of documents. It is a pure
// function of the snapshot: the input documents are never modified.
func Execute(q Query, docs []*document.Document) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	matched := make([]*document.Document, 0, len(docs))
	for _, doc := range docs {
		if Matches(doc, q.Filters) {
			matched = append(matched, doc)
		}
	}
	total := len(matched)

	sortDocuments(matched, q.Sort)

	matched = paginate(matched, q.Offset, q.Limit)

	if len(q.Projection) > 0 {
		projected := make([]*document.Document, len(matched))
		for i, doc := range matched {
			projected[i] = doc.Project(q.Projection)
		}
		matched = projected
	}

	return &Result{Documents: matched, TotalCount: total}, nil
}

// sortDocuments applies a stable multi-key sort, breaking remaining
// ties by document id for full determinism.
func sortDocuments(docs []*document.Document, keys []SortKey) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		for _, key := range keys {
			av, aok := a.Data.Lookup(key.Field)
			bv, bok := b.Data.Lookup(key.Field)
			if !aok {
				av = value.Null
			}
			if !bok {
				bv = value.Null
			}
			c := value.Compare(av, bv)
			if key.Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return strings.Compare(a.ID, b.ID) < 0
	})
}

func paginate(docs []*document.Document, offset, limit int) []*document.Document {
	if offset >= len(docs) {
		return nil
	}
	docs = docs[offset:]
	if limit >= 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
