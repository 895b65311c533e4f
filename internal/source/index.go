package source

import (
	"context"
	"fmt"
	"log"

	"github.com/blevesearch/bleve"
)

// IndexSource fetches log records from a local bleve search index. The
// configured query string selects which records to triage; stored fields
// of each hit become the raw record.
type IndexSource struct {
	Path       string
	Query      string
	MaxResults int

	logger *log.Logger
}

// NewIndexSource creates a search-index log source. An empty query matches
// everything; maxResults <= 0 falls back to a sane cap.
func NewIndexSource(path, query string, maxResults int) *IndexSource {
	if maxResults <= 0 {
		maxResults = 1000
	}
	return &IndexSource{
		Path:       path,
		Query:      query,
		MaxResults: maxResults,
		logger:     log.New(log.Writer(), "[SOURCE] ", log.LstdFlags),
	}
}

func (s *IndexSource) Fetch(_ context.Context) ([]map[string]interface{}, error) {
	idx, err := bleve.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", s.Path, err)
	}
	defer idx.Close()

	var req *bleve.SearchRequest
	if s.Query == "" {
		req = bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), s.MaxResults, 0, false)
	} else {
		req = bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(s.Query), s.MaxResults, 0, false)
	}
	req.Fields = []string{"*"}

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out := make([]map[string]interface{}, 0, len(res.Hits))
	for _, hit := range res.Hits {
		record := make(map[string]interface{}, len(hit.Fields))
		for k, v := range hit.Fields {
			record[k] = v
		}
		out = append(out, record)
	}

	s.logger.Printf("fetched %d records from index %s", len(out), s.Path)
	return out, nil
}
