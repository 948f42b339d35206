package readiness

import (
	"net/mail"
	"time"

	"github.com/theoremz/black/core"
)

const reportTemplate = "readiness_report"

// ReportMessage builds the ops email sent after a job run. Returns nil without recipients.
func ReportMessage(res Result, recipients []string) *core.EmailMessage {
	to := make([]mail.Address, 0, len(recipients))
	for _, r := range recipients {
		if addr, err := mail.ParseAddress(r); err == nil {
			to = append(to, *addr)
		}
	}
	if len(to) == 0 {
		return nil
	}
	return &core.EmailMessage{
		To:           to,
		Subject:      "Readiness " + res.Action + " completed",
		Categories:   []string{reportTemplate, "readiness_" + res.Action},
		TemplateName: reportTemplate,
		TemplateData: map[string]interface{}{
			"Action":     res.Action,
			"FinishedAt": res.FinishedAt.Format(time.RFC3339),
			"Processed":  res.Processed,
			"Updated":    res.Updated,
			"Took":       res.Took.Round(time.Millisecond).String(),
		},
	}
}
