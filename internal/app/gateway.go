package app

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"wedding-quiz/internal/domain"
)

// Authorizer checks the admin capability carried by host commands.
type Authorizer interface {
	Authorize(key string) bool
}

// KeyAuthorizer accepts a single shared admin key.
type KeyAuthorizer string

func (k KeyAuthorizer) Authorize(key string) bool {
	if k == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1
}

// Sink receives room events for one transport connection.
type Sink interface {
	Deliver(ev domain.Event)
}

// Gateway maps transport connections to room memberships and runs role-scoped commands.
// It holds codes and identities only; room state stays with the QuizService.
type Gateway struct {
	service  *QuizService
	auth     Authorizer
	names    domain.NamePolicy
	recorder Recorder

	mu    sync.Mutex
	conns map[string]*connSession
}

type connSession struct {
	sink  Sink
	rooms map[string]*membership // room code -> membership
}

type membership struct {
	role   domain.Role
	userID string
	cancel func()
}

func NewGateway(service *QuizService, auth Authorizer, names domain.NamePolicy) *Gateway {
	return &Gateway{
		service:  service,
		auth:     auth,
		names:    names,
		recorder: service.recorder,
		conns:    make(map[string]*connSession),
	}
}

// Connect registers a transport connection and where its room events go.
func (g *Gateway) Connect(connID string, sink Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[connID] = &connSession{sink: sink, rooms: make(map[string]*membership)}
}

// Disconnect drops the connection's subscriptions and flags whatever it held as offline.
// Players are kept so they can rejoin with their score.
func (g *Gateway) Disconnect(connID string) {
	g.mu.Lock()
	sess, ok := g.conns[connID]
	delete(g.conns, connID)
	g.mu.Unlock()
	if !ok {
		return
	}
	for code, m := range sess.rooms {
		m.cancel()
		g.service.Disconnect(code, connID)
	}
}

// Membership reports the role and identity connID holds in a room.
func (g *Gateway) Membership(connID, code string) (domain.Role, string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.conns[connID]
	if !ok {
		return "", "", false
	}
	m, ok := sess.rooms[NormalizeCode(code)]
	if !ok {
		return "", "", false
	}
	return m.role, m.userID, true
}

func (g *Gateway) CreateRoom(ctx context.Context, connID, adminKey, setID string) (snap domain.Snapshot, err error) {
	defer func() { g.done("host:create", connID, snap.Code, err) }()
	if !g.auth.Authorize(adminKey) {
		return domain.Snapshot{}, domain.ErrUnauthorized
	}
	snap, err = g.service.CreateRoom(ctx, setID, connID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := g.attach(connID, snap.Code, domain.RoleHost, ""); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

func (g *Gateway) JoinHost(connID, code, adminKey string) (snap domain.Snapshot, err error) {
	defer func() { g.done("host:join", connID, code, err) }()
	if err := g.authorizeHost(code, adminKey); err != nil {
		return domain.Snapshot{}, err
	}
	if err := g.attach(connID, code, domain.RoleHost, ""); err != nil {
		return domain.Snapshot{}, err
	}
	return g.service.AttachHost(code, connID)
}

func (g *Gateway) SetQuestions(connID, code, adminKey string, questions []domain.QuestionInput) (snap domain.Snapshot, err error) {
	defer func() { g.done("host:setQuestions", connID, code, err) }()
	if err := g.authorizeHost(code, adminKey); err != nil {
		return domain.Snapshot{}, err
	}
	return g.service.SetQuestions(code, questions)
}

func (g *Gateway) Start(connID, code, adminKey string, durationMs int) (snap domain.Snapshot, err error) {
	defer func() { g.done("host:start", connID, code, err) }()
	if err := g.authorizeHost(code, adminKey); err != nil {
		return domain.Snapshot{}, err
	}
	return g.service.Start(code, durationMs)
}

func (g *Gateway) Reveal(connID, code, adminKey string) (snap domain.Snapshot, err error) {
	defer func() { g.done("host:reveal", connID, code, err) }()
	if err := g.authorizeHost(code, adminKey); err != nil {
		return domain.Snapshot{}, err
	}
	return g.service.Reveal(code)
}

func (g *Gateway) Next(connID, code, adminKey string) (snap domain.Snapshot, err error) {
	defer func() { g.done("host:next", connID, code, err) }()
	if err := g.authorizeHost(code, adminKey); err != nil {
		return domain.Snapshot{}, err
	}
	return g.service.Next(code)
}

// JoinDisplay subscribes an observer; displays never appear among players.
func (g *Gateway) JoinDisplay(connID, code string) (snap domain.Snapshot, err error) {
	defer func() { g.done("display:join", connID, code, err) }()
	if err := g.attach(connID, code, domain.RoleDisplay, ""); err != nil {
		return domain.Snapshot{}, err
	}
	return g.service.Snapshot(code)
}

func (g *Gateway) JoinPlayer(connID, code, userID, rawName string) (snap domain.Snapshot, err error) {
	defer func() { g.done("player:join", connID, code, err) }()
	if _, err := g.service.Snapshot(code); err != nil {
		return domain.Snapshot{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Snapshot{}, domain.ErrMissingUserID
	}
	name, err := g.names.Normalize(rawName)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := g.attach(connID, code, domain.RolePlayer, userID); err != nil {
		return domain.Snapshot{}, err
	}
	return g.service.JoinPlayer(code, userID, name, connID)
}

func (g *Gateway) SubmitAnswer(connID, code, userID string, choice int) (count int, err error) {
	defer func() { g.done("player:answer", connID, code, err) }()
	return g.service.SubmitAnswer(code, strings.TrimSpace(userID), choice)
}

func (g *Gateway) authorizeHost(code, adminKey string) error {
	if _, err := g.service.Snapshot(code); err != nil {
		return err
	}
	if !g.auth.Authorize(adminKey) {
		return domain.ErrUnauthorized
	}
	return nil
}

// attach records the membership and, on first contact with the room, subscribes the connection's sink.
// Subscribing before the mutation lets the joining connection see its own broadcast.
func (g *Gateway) attach(connID, code string, role domain.Role, userID string) error {
	code = NormalizeCode(code)

	g.mu.Lock()
	defer g.mu.Unlock()

	sess, ok := g.conns[connID]
	if !ok {
		sess = &connSession{rooms: make(map[string]*membership)}
		g.conns[connID] = sess
	}
	if m, ok := sess.rooms[code]; ok {
		m.role = role
		if userID != "" {
			m.userID = userID
		}
		return nil
	}

	ch, cancel, err := g.service.Subscribe(code)
	if err != nil {
		return err
	}
	sess.rooms[code] = &membership{role: role, userID: userID, cancel: cancel}
	go forward(ch, sess.sink)
	return nil
}

func forward(ch <-chan domain.Event, sink Sink) {
	for ev := range ch {
		if sink != nil {
			sink.Deliver(ev)
		}
	}
}

func (g *Gateway) done(command, connID, code string, err error) {
	g.recorder.CommandHandled(command, err)
	if err != nil {
		log.Debug().Str("command", command).Str("conn", connID).Str("code", code).Err(err).Msg("command rejected")
		return
	}
	log.Info().Str("command", command).Str("conn", connID).Str("code", code).Msg("command handled")
}
