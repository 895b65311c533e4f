package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mohammad-safakhou/logsift/internal/agents"
	"github.com/mohammad-safakhou/logsift/internal/runner"
)

var stdin = bufio.NewReader(os.Stdin)

// consoleDecision presents one ticket draft on the terminal and reads the
// reviewer's verdict.
func consoleDecision(draft agents.TicketDraft) (runner.Decision, string) {
	fmt.Println("\n" + strings.Repeat("-", 80))
	fmt.Printf("Draft for cluster idx=%d, fingerprint=%s\n", draft.Idx, draft.Fingerprint)
	fmt.Printf("Service:   %s\n", draft.Service)
	fmt.Printf("Component: %s\n", draft.Component)
	fmt.Printf("Triage:    label=%s, priority=%s, severity=%s, confidence=%.2f\n",
		draft.Triage.Label, draft.Triage.Priority, draft.Triage.Severity, draft.Triage.Confidence)
	fmt.Printf("\nSummary:\n%s\n", draft.Ticket.Summary)

	desc := draft.Ticket.IssueDescription
	if len(desc) > 600 {
		desc = desc[:600] + " ... [truncated]"
	}
	fmt.Printf("\nIssue description:\n%s\n", desc)

	for {
		fmt.Print("\n[y] approve  [n] reject  [s] skip  [q] quit\nYour choice: ")
		choice, err := stdin.ReadString('\n')
		if err != nil {
			return runner.DecisionSkipAll, ""
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "q":
			return runner.DecisionSkipAll, ""
		case "s":
			return runner.DecisionSkip, ""
		case "y":
			return runner.DecisionApprove, readReason()
		case "n":
			return runner.DecisionReject, readReason()
		default:
			fmt.Println("Invalid choice.")
		}
	}
}

func readReason() string {
	fmt.Print("Optional short reason/comment (enter to skip): ")
	reason, err := stdin.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(reason)
}
