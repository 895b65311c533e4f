package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/logsift/config"
)

// MockReportSink logs the intent to publish and does nothing else.
type MockReportSink struct {
	logger *log.Logger
	// Published records the markdown bodies handed to Publish.
	Published []string
}

// NewMockReportSink creates a sink that never touches the network.
func NewMockReportSink() *MockReportSink {
	return &MockReportSink{logger: log.New(log.Writer(), "[REPORT-SINK] ", log.LstdFlags)}
}

func (s *MockReportSink) Publish(_ context.Context, markdown string) (string, error) {
	s.Published = append(s.Published, markdown)
	s.logger.Printf("[MOCK] would publish report (%d bytes)", len(markdown))
	return "", nil
}

// HTTPReportSink appends the report to a wiki page through its REST API.
// Missing configuration degrades to a logged warning and a no-op.
type HTTPReportSink struct {
	config config.ReportsConfig
	client *http.Client
	logger *log.Logger
}

// NewHTTPReportSink creates the real report sink.
func NewHTTPReportSink(cfg config.ReportsConfig) *HTTPReportSink {
	return &HTTPReportSink{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: log.New(log.Writer(), "[REPORT-SINK] ", log.LstdFlags),
	}
}

func (s *HTTPReportSink) configured() bool {
	return s.config.BaseURL != "" && s.config.PageID != "" && s.config.User != "" && s.config.Token != ""
}

type wikiPage struct {
	Title   string `json:"title"`
	Version struct {
		Number int `json:"number"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

func (s *HTTPReportSink) Publish(ctx context.Context, markdown string) (string, error) {
	if !s.configured() {
		s.logger.Printf("report sink configuration missing (base_url/page_id/user/token), skipping publish")
		return "", nil
	}

	page, err := s.fetchPage(ctx)
	if err != nil {
		return "", err
	}

	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(markdown)
	newBody := page.Body.Storage.Value + "\n<pre>\n" + escaped + "\n</pre>\n"

	payload := map[string]interface{}{
		"id":    s.config.PageID,
		"type":  "page",
		"title": page.Title,
		"version": map[string]int{
			"number": page.Version.Number + 1,
		},
		"body": map[string]interface{}{
			"storage": map[string]string{
				"value":          newBody,
				"representation": "storage",
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal page: %w", err)
	}

	url := s.pageURL()
	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.config.User, s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("report sink status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	s.logger.Printf("updated report page %s", s.config.PageID)
	return s.config.PageID, nil
}

func (s *HTTPReportSink) pageURL() string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/rest/api/content/" + s.config.PageID
}

func (s *HTTPReportSink) fetchPage(ctx context.Context) (*wikiPage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.pageURL()+"?expand=body.storage,version", nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.config.User, s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("report sink status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var page wikiPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if page.Version.Number == 0 {
		page.Version.Number = 1
	}
	return &page, nil
}
