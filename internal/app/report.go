package app

import (
	"fmt"
	"strings"
	"time"

	"wedding-quiz/internal/domain"
)

// DefaultReportMinScore is the score threshold used when the export omits one.
const DefaultReportMinScore = 2000

// ScoreRange selects leaderboard entries with Min <= score (<= *Max when set).
type ScoreRange struct {
	Min int
	Max *int
}

func (r ScoreRange) contains(score int) bool {
	if score < r.Min {
		return false
	}
	return r.Max == nil || score <= *r.Max
}

func (r ScoreRange) String() string {
	if r.Max == nil {
		return fmt.Sprintf(">=%d", r.Min)
	}
	return fmt.Sprintf("%d~%d", r.Min, *r.Max)
}

// ScoreReport renders the players of snap within rng as plain text, best first.
func ScoreReport(snap domain.Snapshot, rng ScoreRange, generatedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\n", snap.Code)
	fmt.Fprintf(&b, "Range: %s\n", rng)
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("\n")

	n := 0
	for _, p := range snap.Players {
		if !rng.contains(p.Score) {
			continue
		}
		n++
		name := p.Name
		if name == "" {
			name = domain.DefaultName
		}
		fmt.Fprintf(&b, "%d. %s - %d\n", n, name, p.Score)
	}
	if n == 0 {
		b.WriteString("No matching players\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ReportFilename names the attachment for a report.
func ReportFilename(code string, rng ScoreRange) string {
	if rng.Max == nil {
		return fmt.Sprintf("score-%s-ge%d.txt", code, rng.Min)
	}
	return fmt.Sprintf("score-%s-%dto%d.txt", code, rng.Min, *rng.Max)
}
