package domain

import "time"

// State is the lifecycle state of a room.
type State string

const (
	StateLobby    State = "lobby"
	StateQuestion State = "question"
	StateReveal   State = "reveal"
	StateEnded    State = "ended"
)

// Role is the part a connection plays in a room.
type Role string

const (
	RoleHost    Role = "host"
	RolePlayer  Role = "player"
	RoleDisplay Role = "display"
)

// ChoiceCount is the fixed number of choices per question.
const ChoiceCount = 4

// Question models a four-choice question with a single correct choice.
type Question struct {
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
}

// QuestionSet is a named, reusable list of questions.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// QuestionInput is an unvalidated question as submitted by a host.
type QuestionInput struct {
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex *int     `json:"correctIndex"`
}

// Player is a quiz participant keyed by an external identity.
type Player struct {
	UserID       string
	Name         string
	Score        int
	LastQuestion int // -1 until the first answer
	ConnID       string
	Connected    bool
}

// Answer is a player's choice for the running question.
type Answer struct {
	ChoiceIndex int
	ReceivedAt  time.Time
}

// PlayerView is the client-safe projection of a player.
type PlayerView struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// QuestionView is a question without its answer.
type QuestionView struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
}

// Snapshot is the client-safe view of a room.
type Snapshot struct {
	Code         string        `json:"code"`
	State        State         `json:"state"`
	QIndex       int           `json:"qIndex"`
	Total        int           `json:"total"`
	Question     *QuestionView `json:"question"`
	CorrectIndex *int          `json:"correctIndex"`
	StartAt      int64         `json:"startAt"` // unix millis, 0 before the first start
	DurationMs   int           `json:"durationMs"`
	AnswersCount int           `json:"answersCount"`
	Players      []PlayerView  `json:"players"`
}

// RevealEvent is pushed once per question when answers are scored.
type RevealEvent struct {
	CorrectIndex int          `json:"correctIndex"`
	Top10        []PlayerView `json:"top10"`
}

// AnswersCountEvent is pushed on every accepted submission.
type AnswersCountEvent struct {
	AnswersCount int `json:"answersCount"`
}

// Event types fanned out to room subscribers.
const (
	EventRoomUpdate     = "room:update"
	EventAnswersCount   = "room:answersCount"
	EventQuestionReveal = "question:reveal"
)

// Event is a typed broadcast for a room.
type Event struct {
	Room    string `json:"-"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
