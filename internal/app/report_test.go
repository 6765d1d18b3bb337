package app

import (
	"strings"
	"testing"
	"time"

	"wedding-quiz/internal/domain"
)

func TestScoreReportFiltersRange(t *testing.T) {
	snap := domain.Snapshot{
		Code: "ABC234",
		Players: []domain.PlayerView{
			{UserID: "u1", Name: "1111", Score: 4200},
			{UserID: "u2", Name: "2222", Score: 2600},
			{UserID: "u3", Name: "", Score: 2000},
			{UserID: "u4", Name: "4444", Score: 900},
		},
	}
	upper := 3000
	at := time.Date(2026, 5, 2, 18, 30, 0, 0, time.UTC)

	got := ScoreReport(snap, ScoreRange{Min: 2000, Max: &upper}, at)
	want := strings.Join([]string{
		"Room: ABC234",
		"Range: 2000~3000",
		"Generated: 2026-05-02 18:30:00",
		"",
		"1. 2222 - 2600",
		"2. Guest - 2000",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected report:\n%s\nwant:\n%s", got, want)
	}
	if name := ReportFilename("ABC234", ScoreRange{Min: 2000, Max: &upper}); name != "score-ABC234-2000to3000.txt" {
		t.Fatalf("unexpected filename %s", name)
	}
}

func TestScoreReportOpenRange(t *testing.T) {
	snap := domain.Snapshot{Code: "ABC234", Players: []domain.PlayerView{{Name: "1111", Score: 100}}}

	got := ScoreReport(snap, ScoreRange{Min: DefaultReportMinScore}, time.Now())
	if !strings.Contains(got, "Range: >=2000") || !strings.HasSuffix(got, "No matching players") {
		t.Fatalf("unexpected report:\n%s", got)
	}
	if name := ReportFilename("ABC234", ScoreRange{Min: 2000}); name != "score-ABC234-ge2000.txt" {
		t.Fatalf("unexpected filename %s", name)
	}
}
