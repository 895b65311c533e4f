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

// MockTicketSink logs the intent to create a ticket and does nothing else.
type MockTicketSink struct {
	logger *log.Logger
	// Submitted records the summaries handed to Submit, for inspection.
	Submitted []string
}

// NewMockTicketSink creates a sink that never touches the network.
func NewMockTicketSink() *MockTicketSink {
	return &MockTicketSink{logger: log.New(log.Writer(), "[TICKET-SINK] ", log.LstdFlags)}
}

func (s *MockTicketSink) Submit(_ context.Context, summary, _ string) (string, error) {
	s.Submitted = append(s.Submitted, summary)
	s.logger.Printf("[MOCK] would create ticket: %s", summary)
	return "", nil
}

// HTTPTicketSink creates issues through a REST tracker API. Missing
// configuration degrades to a logged warning and a no-op, not a crash.
type HTTPTicketSink struct {
	config config.TicketsConfig
	client *http.Client
	logger *log.Logger
}

// NewHTTPTicketSink creates the real ticket sink.
func NewHTTPTicketSink(cfg config.TicketsConfig) *HTTPTicketSink {
	return &HTTPTicketSink{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: log.New(log.Writer(), "[TICKET-SINK] ", log.LstdFlags),
	}
}

func (s *HTTPTicketSink) configured() bool {
	return s.config.BaseURL != "" && s.config.Project != "" && s.config.User != "" && s.config.Token != ""
}

func (s *HTTPTicketSink) Submit(ctx context.Context, summary, description string) (string, error) {
	if !s.configured() {
		s.logger.Printf("ticket sink configuration missing (base_url/project/user/token), skipping submission")
		return "", nil
	}

	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"key": s.config.Project},
			"summary":     summary,
			"description": description,
			"issuetype":   map[string]string{"name": "Bug"},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal issue: %w", err)
	}

	url := strings.TrimRight(s.config.BaseURL, "/") + "/rest/api/3/issue"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.config.User, s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ticket sink status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	s.logger.Printf("created ticket %s: %s", out.Key, summary)
	return out.Key, nil
}
