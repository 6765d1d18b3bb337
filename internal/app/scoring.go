package app

import (
	"math"
	"time"

	"wedding-quiz/internal/domain"
)

const (
	maxPoints = 1000
	minPoints = 200
)

// Points awards a correct answer given after elapsed within a window.
// It decays linearly from 1000 at zero to 200 at the end of the window.
func Points(elapsed, window time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := 1.0
	if window > 0 {
		ratio = math.Min(1, float64(elapsed)/float64(window))
	}
	return int(math.Round(maxPoints - (maxPoints-minPoints)*ratio))
}

// scoreAnswers adds points for every correct answer and returns how many were correct.
// Answers from unknown players are ignored.
func scoreAnswers(q domain.Question, startAt time.Time, window time.Duration, answers map[string]domain.Answer, players map[string]*domain.Player) int {
	correct := 0
	for userID, ans := range answers {
		player, ok := players[userID]
		if !ok || ans.ChoiceIndex != q.CorrectIndex {
			continue
		}
		player.Score += Points(ans.ReceivedAt.Sub(startAt), window)
		correct++
	}
	return correct
}
