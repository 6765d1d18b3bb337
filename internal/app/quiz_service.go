package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"wedding-quiz/internal/domain"
)

// RoomRepository owns every room for the life of the process (in-memory, Redis-reserved, etc).
type RoomRepository interface {
	// Add stores room unless its code is already taken.
	Add(room *Room) bool
	Get(code string) (*Room, bool)
	Len() int
}

// QuestionBank loads question sets (from cache/backing store). An empty id selects the default set.
type QuestionBank interface {
	Questions(ctx context.Context, setID string) ([]domain.Question, error)
}

// Publisher mirrors room events outside the process.
type Publisher interface {
	Publish(ev domain.Event)
}

// Recorder receives operational counters.
type Recorder interface {
	RoomCreated()
	PlayerConnected()
	PlayersDisconnected(n int)
	AnswerAccepted()
	QuestionRevealed(correct int)
	CommandHandled(command string, err error)
}

// QuizService contains the room use cases. It never hands out rooms, only snapshots.
type QuizService struct {
	rooms    RoomRepository
	bank     QuestionBank
	clock    clockwork.Clock
	mirror   Publisher
	recorder Recorder
	newCode  func() string
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *QuizService) { s.clock = clock }
}

// WithPublisher mirrors every room event to p.
func WithPublisher(p Publisher) Option {
	return func(s *QuizService) { s.mirror = p }
}

// WithRecorder reports counters to rec.
func WithRecorder(rec Recorder) Option {
	return func(s *QuizService) { s.recorder = rec }
}

// WithCodeGenerator replaces NewRoomCode.
func WithCodeGenerator(gen func() string) Option {
	return func(s *QuizService) { s.newCode = gen }
}

func NewQuizService(rooms RoomRepository, bank QuestionBank, opts ...Option) *QuizService {
	s := &QuizService{
		rooms:    rooms,
		bank:     bank,
		clock:    clockwork.NewRealClock(),
		recorder: nopRecorder{},
		newCode:  NewRoomCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom builds a room with the given question set and registers hostConn as its host.
func (s *QuizService) CreateRoom(ctx context.Context, setID, hostConn string) (domain.Snapshot, error) {
	questions, err := s.bank.Questions(ctx, setID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load question set %q: %w", setID, err)
	}

	var room *Room
	for {
		code := s.newCode()
		room = newRoom(code, questions, s.clock, s.scheduler(code), s.mirror)
		if s.rooms.Add(room) {
			break
		}
	}
	s.recorder.RoomCreated()
	log.Info().Str("code", room.Code()).Int("questions", len(questions)).Msg("room created")
	return room.attachHost(hostConn), nil
}

// AttachHost makes connID the host of the room.
func (s *QuizService) AttachHost(code, connID string) (domain.Snapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return room.attachHost(connID), nil
}

// SetQuestions validates and installs a new question list, rewinding the room to the lobby.
func (s *QuizService) SetQuestions(code string, in []domain.QuestionInput) (domain.Snapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.Snapshot{}, err
	}
	questions, err := domain.CleanQuestions(in)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if dropped := len(in) - len(questions); dropped > 0 {
		log.Debug().Str("code", room.Code()).Int("dropped", dropped).Msg("dropped malformed questions")
	}
	return room.setQuestions(questions), nil
}

// Start opens the answer window for the current question.
func (s *QuizService) Start(code string, durationMs int) (domain.Snapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return room.start(durationMs)
}

// Reveal scores the running question. Outside the question state it is a no-op.
func (s *QuizService) Reveal(code string) (domain.Snapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap, correct, revealed := room.reveal(nil)
	if revealed {
		s.revealed(room.Code(), correct, "manual")
	}
	return snap, nil
}

// Next advances to the following question or ends the quiz after the last one.
func (s *QuizService) Next(code string) (domain.Snapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return room.next()
}

// JoinPlayer registers userID or reattaches it to connID, keeping its score.
func (s *QuizService) JoinPlayer(code, userID, name, connID string) (domain.Snapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap, cameOnline := room.joinPlayer(userID, name, connID)
	if cameOnline {
		s.recorder.PlayerConnected()
	}
	return snap, nil
}

// SubmitAnswer records a choice and returns the number of answers received so far.
func (s *QuizService) SubmitAnswer(code, userID string, choice int) (int, error) {
	room, err := s.room(code)
	if err != nil {
		return 0, err
	}
	count, err := room.submitAnswer(userID, choice)
	if err != nil {
		return 0, err
	}
	s.recorder.AnswerAccepted()
	return count, nil
}

// Snapshot returns the current view of a room.
func (s *QuizService) Snapshot(code string) (domain.Snapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return room.Snapshot(), nil
}

// Subscribe returns a channel of room events.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(code string) (<-chan domain.Event, func(), error) {
	room, err := s.room(code)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := room.subscribe()
	return ch, cancel, nil
}

// Disconnect marks whatever connID held in the room as offline.
func (s *QuizService) Disconnect(code, connID string) {
	room, err := s.room(code)
	if err != nil {
		return
	}
	if n := room.disconnect(connID); n > 0 {
		s.recorder.PlayersDisconnected(n)
	}
}

// RoomCount reports how many rooms exist.
func (s *QuizService) RoomCount() int {
	return s.rooms.Len()
}

func (s *QuizService) room(code string) (*Room, error) {
	room, ok := s.rooms.Get(NormalizeCode(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// scheduler arms reveal timers that report back by code, so a timer never holds a room.
func (s *QuizService) scheduler(code string) scheduleFunc {
	return func(t revealTicket, d time.Duration) clockwork.Timer {
		return s.clock.AfterFunc(d, func() { s.onRevealTimer(code, t) })
	}
}

func (s *QuizService) onRevealTimer(code string, t revealTicket) {
	room, err := s.room(code)
	if err != nil {
		return
	}
	if _, correct, revealed := room.reveal(&t); revealed {
		s.revealed(code, correct, "timer")
	}
}

func (s *QuizService) revealed(code string, correct int, trigger string) {
	s.recorder.QuestionRevealed(correct)
	log.Info().Str("code", code).Int("correct", correct).Str("trigger", trigger).Msg("question revealed")
}

type nopRecorder struct{}

func (nopRecorder) RoomCreated() {}
func (nopRecorder) PlayerConnected() {}
func (nopRecorder) PlayersDisconnected(int) {}
func (nopRecorder) AnswerAccepted() {}
func (nopRecorder) QuestionRevealed(int) {}
func (nopRecorder) CommandHandled(string, error) {}
