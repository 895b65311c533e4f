package sink

import "context"

// TicketSink submits an approved ticket draft to the tracker. The returned
// key is empty when nothing was created (mock mode or degraded real mode).
type TicketSink interface {
	Submit(ctx context.Context, summary, description string) (string, error)
}

// ReportSink publishes the session report. The returned page id is empty
// when nothing was published.
type ReportSink interface {
	Publish(ctx context.Context, markdown string) (string, error)
}
