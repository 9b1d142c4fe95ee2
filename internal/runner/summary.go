package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
)

// quotaPerDollar is the new-api accounting unit: 500000 quota equals one dollar.
const quotaPerDollar = 500000

// FormatQuota renders a raw quota value as a dollar amount
func FormatQuota(quota int64) string {
	return "$" + humanize.CommafWithDigits(float64(quota)/quotaPerDollar, 2)
}

// FormatSummary renders a human-readable report of a run, one line per
// account in configuration order followed by the aggregate counts.
func FormatSummary(summary *domain.RunSummary) string {
	var b strings.Builder

	for _, outcome := range summary.Outcomes {
		marker := "FAIL"
		if outcome.Status.Succeeded() {
			marker = " OK "
		}
		fmt.Fprintf(&b, "[%s] %s (%s): %s", marker, outcome.Account, outcome.Provider, outcome.Status)
		if outcome.Detail != "" {
			fmt.Fprintf(&b, " - %s", outcome.Detail)
		}
		if outcome.Quota > 0 {
			fmt.Fprintf(&b, " | balance %s, used %s", FormatQuota(outcome.Quota), FormatQuota(outcome.UsedQuota))
		}
		b.WriteString("\n")
	}

	success := summary.SuccessCount()
	failure := summary.FailureCount()
	fmt.Fprintf(&b, "%d succeeded, %d failed, took %s\n",
		success, failure, summary.FinishedAt.Sub(summary.StartedAt).Round(100*time.Millisecond))
	return b.String()
}
