package app

import (
	"sort"

	"wedding-quiz/internal/domain"
)

const leaderboardSize = 10

func (r *Room) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Code:         r.code,
		State:        r.state,
		QIndex:       r.qIndex,
		Total:        len(r.questions),
		DurationMs:   int(r.duration.Milliseconds()),
		AnswersCount: len(r.answers),
		Players:      r.rankedPlayersLocked(),
	}
	if !r.startAt.IsZero() {
		snap.StartAt = r.startAt.UnixMilli()
	}
	if r.qIndex < len(r.questions) {
		q := r.questions[r.qIndex]
		snap.Question = &domain.QuestionView{
			Text:    q.Text,
			Choices: append([]string(nil), q.Choices...),
		}
		if r.state == domain.StateReveal {
			correct := q.CorrectIndex
			snap.CorrectIndex = &correct
		}
	}
	return snap
}

// rankedPlayersLocked orders players by score descending, then name, then id.
func (r *Room) rankedPlayersLocked() []domain.PlayerView {
	views := make([]domain.PlayerView, 0, len(r.players))
	for _, p := range r.players {
		views = append(views, domain.PlayerView{
			UserID:    p.UserID,
			Name:      p.Name,
			Score:     p.Score,
			Connected: p.Connected,
		})
	}
	sortPlayers(views)
	return views
}

func sortPlayers(views []domain.PlayerView) {
	sort.Slice(views, func(i, j int) bool {
		if views[i].Score != views[j].Score {
			return views[i].Score > views[j].Score
		}
		if views[i].Name != views[j].Name {
			return views[i].Name < views[j].Name
		}
		return views[i].UserID < views[j].UserID
	})
}

func topPlayers(ranked []domain.PlayerView, n int) []domain.PlayerView {
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return append([]domain.PlayerView(nil), ranked...)
}
