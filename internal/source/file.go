package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource reads log records from a JSON file. It accepts a search-engine
// export ({"hits":{"hits":[{"_source":{...}}]}}), a wrapped list
// ({"logs":[...]} or {"items":[...]}) or a plain top-level array.
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed log source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Fetch(_ context.Context) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	var export struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Logs  []map[string]interface{} `json:"logs"`
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal(data, &export); err == nil {
		if len(export.Hits.Hits) > 0 {
			out := make([]map[string]interface{}, 0, len(export.Hits.Hits))
			for _, h := range export.Hits.Hits {
				if h.Source == nil {
					h.Source = map[string]interface{}{}
				}
				out = append(out, h.Source)
			}
			return out, nil
		}
		if len(export.Logs) > 0 {
			return export.Logs, nil
		}
		if len(export.Items) > 0 {
			return export.Items, nil
		}
	}

	var plain []map[string]interface{}
	if err := json.Unmarshal(data, &plain); err == nil {
		return plain, nil
	}

	// a valid object with no recognized records is an empty run, not an error
	var probe map[string]interface{}
	if err := json.Unmarshal(data, &probe); err == nil {
		return nil, nil
	}

	return nil, fmt.Errorf("log file %s: unrecognized format", s.Path)
}
