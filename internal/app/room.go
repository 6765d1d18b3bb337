package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"wedding-quiz/internal/domain"
)

const (
	defaultDuration = 15 * time.Second
	minDuration     = 5 * time.Second
	maxDuration     = 60 * time.Second
	// revealGrace lets answers sent at the buzzer arrive before the timer reveals.
	revealGrace = 200 * time.Millisecond

	subscriberBuffer = 16
)

// revealTicket identifies the question run a scheduled reveal belongs to.
type revealTicket struct {
	QIndex int
	Round  uint64
}

// scheduleFunc arms a reveal for ticket after d and returns its timer.
type scheduleFunc func(t revealTicket, d time.Duration) clockwork.Timer

// Room is the authoritative state of one quiz. All mutations hold mu.
type Room struct {
	code     string
	clock    clockwork.Clock
	schedule scheduleFunc
	mirror   Publisher

	mu          sync.Mutex
	state       domain.State
	qIndex      int
	questions   []domain.Question
	startAt     time.Time
	duration    time.Duration
	round       uint64 // bumped whenever the current question run is invalidated
	players     map[string]*domain.Player
	answers     map[string]domain.Answer
	hostConn    string
	revealTimer clockwork.Timer
	subscribers map[chan domain.Event]struct{}
}

func newRoom(code string, questions []domain.Question, clock clockwork.Clock, schedule scheduleFunc, mirror Publisher) *Room {
	return &Room{
		code:        code,
		clock:       clock,
		schedule:    schedule,
		mirror:      mirror,
		state:       domain.StateLobby,
		questions:   questions,
		duration:    defaultDuration,
		players:     make(map[string]*domain.Player),
		answers:     make(map[string]domain.Answer),
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// Code returns the room code.
func (r *Room) Code() string {
	return r.code
}

// Snapshot returns the client-safe view of the room.
func (r *Room) Snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) attachHost(connID string) domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostConn = connID
	return r.broadcastSnapshotLocked()
}

func (r *Room) setQuestions(questions []domain.Question) domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelRevealLocked()
	r.questions = questions
	r.qIndex = 0
	r.state = domain.StateLobby
	r.resetRunLocked()
	return r.broadcastSnapshotLocked()
}

func (r *Room) start(durationMs int) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.qIndex >= len(r.questions) {
		return domain.Snapshot{}, domain.ErrNoQuestion
	}
	switch r.state {
	case domain.StateLobby:
	case domain.StateEnded:
		return domain.Snapshot{}, domain.ErrAlreadyEnded
	default:
		return domain.Snapshot{}, domain.ErrAlreadyStarted
	}

	r.cancelRevealLocked()
	r.state = domain.StateQuestion
	r.duration = clampDuration(durationMs)
	r.startAt = r.clock.Now()
	r.resetRunLocked()

	snap := r.broadcastSnapshotLocked()
	if r.schedule != nil {
		r.revealTimer = r.schedule(revealTicket{QIndex: r.qIndex, Round: r.round}, r.duration+revealGrace)
	}
	return snap, nil
}

// reveal scores the running question if ticket still names it.
// A nil ticket means the question currently running.
func (r *Room) reveal(ticket *revealTicket) (domain.Snapshot, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != domain.StateQuestion {
		return r.snapshotLocked(), 0, false
	}
	if ticket != nil && (ticket.QIndex != r.qIndex || ticket.Round != r.round) {
		return r.snapshotLocked(), 0, false
	}

	r.cancelRevealLocked()
	q := r.questions[r.qIndex]
	correct := scoreAnswers(q, r.startAt, r.duration, r.answers, r.players)
	r.state = domain.StateReveal

	snap := r.broadcastSnapshotLocked()
	r.broadcastLocked(domain.EventQuestionReveal, domain.RevealEvent{
		CorrectIndex: q.CorrectIndex,
		Top10:        topPlayers(snap.Players, leaderboardSize),
	})
	return snap, correct, true
}

func (r *Room) next() (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.questions) == 0 {
		return domain.Snapshot{}, domain.ErrNoQuestion
	}
	if r.state == domain.StateEnded {
		return domain.Snapshot{}, domain.ErrAlreadyEnded
	}

	r.cancelRevealLocked()
	if r.qIndex >= len(r.questions)-1 {
		r.state = domain.StateEnded
	} else {
		r.qIndex++
		r.state = domain.StateLobby
	}
	r.resetRunLocked()
	return r.broadcastSnapshotLocked(), nil
}

// joinPlayer adds or reattaches a player. It reports whether the player went from offline to online.
func (r *Room) joinPlayer(userID, name, connID string) (domain.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cameOnline := true
	if existing, ok := r.players[userID]; ok {
		cameOnline = !existing.Connected
		existing.Name = name
		existing.ConnID = connID
		existing.Connected = true
	} else {
		r.players[userID] = &domain.Player{
			UserID:       userID,
			Name:         name,
			LastQuestion: -1,
			ConnID:       connID,
			Connected:    true,
		}
	}
	return r.broadcastSnapshotLocked(), cameOnline
}

// submitAnswer records the first answer of a player for the running question.
func (r *Room) submitAnswer(userID string, choice int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != domain.StateQuestion {
		return 0, domain.ErrNotAcceptingAnswers
	}
	if !domain.ValidChoice(choice) {
		return 0, domain.ErrInvalidChoice
	}
	player, ok := r.players[userID]
	if !ok {
		return 0, domain.ErrNotJoined
	}
	if _, answered := r.answers[userID]; answered {
		return 0, domain.ErrAlreadyAnswered
	}

	player.LastQuestion = r.qIndex
	r.answers[userID] = domain.Answer{ChoiceIndex: choice, ReceivedAt: r.clock.Now()}
	count := len(r.answers)
	r.broadcastLocked(domain.EventAnswersCount, domain.AnswersCountEvent{AnswersCount: count})
	return count, nil
}

// disconnect flags every player bound to connID as offline and drops a matching host reference.
func (r *Room) disconnect(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for _, p := range r.players {
		if p.ConnID == connID && p.Connected {
			p.Connected = false
			dropped++
		}
	}
	if r.hostConn == connID {
		r.hostConn = ""
	}
	if dropped > 0 {
		r.broadcastSnapshotLocked()
	}
	return dropped
}

func (r *Room) resetRunLocked() {
	r.round++
	r.answers = make(map[string]domain.Answer)
}

func (r *Room) cancelRevealLocked() {
	if r.revealTimer != nil {
		r.revealTimer.Stop()
		r.revealTimer = nil
	}
}

func clampDuration(ms int) time.Duration {
	if ms == 0 {
		return defaultDuration
	}
	d := time.Duration(ms) * time.Millisecond
	if d < minDuration {
		return minDuration
	}
	if d > maxDuration {
		return maxDuration
	}
	return d
}

func (r *Room) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Room) broadcastSnapshotLocked() domain.Snapshot {
	snap := r.snapshotLocked()
	r.broadcastLocked(domain.EventRoomUpdate, snap)
	return snap
}

func (r *Room) broadcastLocked(eventType string, payload any) {
	ev := domain.Event{Room: r.code, Type: eventType, Payload: payload}
	for ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop its oldest pending event.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
				log.Warn().Str("code", r.code).Str("event", eventType).Msg("subscriber full, event dropped")
			}
		}
	}
	if r.mirror != nil {
		r.mirror.Publish(ev)
	}
}
