package agents

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mohammad-safakhou/logsift/internal/oracle"
)

const reportSystemPrompt = `You are an assistant that writes concise markdown reports
summarizing an automated log review session in an enterprise backend.

You MUST respond with ONLY a single valid JSON object.
No markdown fences, no backticks, no extra text.

The JSON MUST have exactly this schema:
{
  "markdown": "report-ready markdown content as a single string"
}

The "markdown" field must contain ONLY the markdown content of the report.
Do NOT include any other top-level keys.
Keep the report reasonably short:
- At most ~30 lines of markdown.
- Tables should have at most 10 rows.

You will receive:
- ticket drafts (if any)
- filter suggestions (if any)

Include each drafted issue as ONE table row with these columns:
- service name (the affected service)
- short error summary (usually the first line of the stack trace)
- ticket reference (a link if available, otherwise the draft summary)
- exclusion filter (e.g. not log: "XXX")
- error count

DO NOT include any headings, titles, or description text in the markdown.`

const fallbackReport = "# Log Review Summary\n\n(No content generated.)"

// ReportDraft is the report agent's result.
type ReportDraft struct {
	Markdown string `json:"markdown"`
	Length   int    `json:"length"`
}

// ReportAgent writes the session summary report from the other agents'
// outputs.
type ReportAgent struct {
	oracle oracle.Client
	model  string
	logger *log.Logger
}

// NewReportAgent creates the report drafting agent.
func NewReportAgent(client oracle.Client, model string) *ReportAgent {
	return &ReportAgent{
		oracle: client,
		model:  model,
		logger: log.New(log.Writer(), "[REPORT] ", log.LstdFlags),
	}
}

// Draft produces the markdown report. A failed or unusable oracle call
// yields a placeholder document rather than an error.
func (a *ReportAgent) Draft(ctx context.Context, tickets TicketDrafts, filters FilterSuggestions, sections []string) ReportDraft {
	ticketsJSON, err := json.MarshalIndent(tickets, "", "  ")
	if err != nil {
		a.logger.Printf("marshal tickets: %v", err)
		return ReportDraft{Markdown: fallbackReport, Length: len(fallbackReport)}
	}
	filtersJSON, err := json.MarshalIndent(filters, "", "  ")
	if err != nil {
		a.logger.Printf("marshal filters: %v", err)
		return ReportDraft{Markdown: fallbackReport, Length: len(fallbackReport)}
	}

	raw, err := a.oracle.Complete(ctx, a.model, reportPrompt(string(ticketsJSON), string(filtersJSON), sections))
	if err != nil {
		a.logger.Printf("report draft failed: %v", err)
		return ReportDraft{Markdown: fallbackReport, Length: len(fallbackReport)}
	}

	var resp struct {
		Markdown string `json:"markdown"`
	}
	if err := json.Unmarshal([]byte(oracle.ExtractJSON(raw)), &resp); err != nil || resp.Markdown == "" {
		return ReportDraft{Markdown: fallbackReport, Length: len(fallbackReport)}
	}

	return ReportDraft{Markdown: resp.Markdown, Length: len(resp.Markdown)}
}

func reportPrompt(ticketsJSON, filtersJSON string, sections []string) string {
	var b strings.Builder
	b.WriteString(reportSystemPrompt)
	if len(sections) > 0 {
		b.WriteString("\n\nInclude only these sections: ")
		b.WriteString(strings.Join(sections, ", "))
		b.WriteString(".")
	}
	b.WriteString("\n\nTicket drafts (JSON):\n")
	b.WriteString(ticketsJSON)
	b.WriteString("\n\nFilter suggestions (JSON):\n")
	b.WriteString(filtersJSON)
	b.WriteString("\n\nReturn JSON with this exact schema: {\"markdown\": \"full markdown document as a string\"}")
	return b.String()
}
