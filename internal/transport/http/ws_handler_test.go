package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"wedding-quiz/internal/app"
	"wedding-quiz/internal/domain"
	"wedding-quiz/internal/infra/memory"
)

const testKey = "secret"

func TestWebSocketQuizFlow(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	host := dial(t, server)
	defer host.Close()
	player := dial(t, server)
	defer player.Close()

	send(t, host, "1", "host:create", map[string]any{"adminKey": testKey})
	ack := readAck(t, host, "1")
	if !ack.OK || ack.Room == nil || ack.Room.State != domain.StateLobby {
		t.Fatalf("unexpected create ack %+v", ack)
	}
	code := ack.Room.Code

	send(t, player, "a", "player:join", map[string]any{"code": strings.ToLower(code), "userId": "u1", "name": "1234"})
	if ack := readAck(t, player, "a"); !ack.OK || len(ack.Room.Players) != 1 {
		t.Fatalf("unexpected join ack %+v", ack)
	}

	send(t, host, "2", "host:start", map[string]any{"code": code, "adminKey": testKey, "durationMs": 5000})
	if ack := readAck(t, host, "2"); !ack.OK || ack.Room.State != domain.StateQuestion || ack.Room.CorrectIndex != nil {
		t.Fatalf("unexpected start ack %+v", ack)
	}

	send(t, player, "b", "player:answer", map[string]any{"code": code, "userId": "u1", "choiceIndex": 1})
	if ack := readAck(t, player, "b"); !ack.OK || ack.Room != nil {
		t.Fatalf("unexpected answer ack %+v", ack)
	}
	send(t, player, "c", "player:answer", map[string]any{"code": code, "userId": "u1", "choiceIndex": 2})
	if ack := readAck(t, player, "c"); ack.OK || ack.Error != domain.ErrAlreadyAnswered.Error() {
		t.Fatalf("expected already answered, got %+v", ack)
	}

	send(t, host, "3", "host:reveal", map[string]any{"code": code, "adminKey": testKey})
	if ack := readAck(t, host, "3"); !ack.OK || ack.Room.State != domain.StateReveal {
		t.Fatalf("unexpected reveal ack %+v", ack)
	}

	raw := readEvent(t, player, domain.EventQuestionReveal)
	var reveal domain.RevealEvent
	if err := json.Unmarshal(raw, &reveal); err != nil {
		t.Fatalf("unmarshal reveal: %v", err)
	}
	if reveal.CorrectIndex != 1 || len(reveal.Top10) != 1 || reveal.Top10[0].Score != 1000 {
		t.Fatalf("unexpected reveal %+v", reveal)
	}
}

func TestWebSocketRejectionsAreAcked(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	send(t, conn, 7, "host:create", map[string]any{"adminKey": "nope"})
	if ack := readAck(t, conn, "7"); ack.OK || ack.Error != domain.ErrUnauthorized.Error() {
		t.Fatalf("expected unauthorized ack, got %+v", ack)
	}
	send(t, conn, 8, "display:join", map[string]any{"code": "ZZZZZZ"})
	if ack := readAck(t, conn, "8"); ack.OK || ack.Error != domain.ErrRoomNotFound.Error() {
		t.Fatalf("expected room not found ack, got %+v", ack)
	}
	send(t, conn, 9, "host:dance", nil)
	if ack := readAck(t, conn, "9"); ack.OK || ack.Error != "unsupported message type" {
		t.Fatalf("expected unsupported type ack, got %+v", ack)
	}
}

func TestWebSocketCloseMarksPlayerOffline(t *testing.T) {
	server, service := newTestServer(t)
	defer server.Close()

	host := dial(t, server)
	defer host.Close()
	send(t, host, "1", "host:create", map[string]any{"adminKey": testKey})
	code := readAck(t, host, "1").Room.Code

	player := dial(t, server)
	send(t, player, "1", "player:join", map[string]any{"code": code, "userId": "u1", "name": "1234"})
	readAck(t, player, "1")
	_ = player.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, _ := service.Snapshot(code)
		if len(snap.Players) == 1 && !snap.Players[0].Connected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected player flagged offline after close")
}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuizService) {
	t.Helper()
	return newTestServerWith(t, RouterConfig{BaseURL: "https://quiz.example.com"})
}

func newTestServerWith(t *testing.T, cfg RouterConfig) (*httptest.Server, *app.QuizService) {
	t.Helper()
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(domain.QuestionSet{
		ID: "one",
		Questions: []domain.Question{
			{Text: "Pick B", Choices: []string{"A", "B", "C", "D"}, CorrectIndex: 1},
		},
	}), "one", time.Minute)
	service := app.NewQuizService(memory.NewRoomStore(), bank, app.WithClock(clockwork.NewFakeClock()))
	names, err := domain.NewNamePolicy(domain.DefaultNamePattern, domain.DefaultNameRule)
	if err != nil {
		t.Fatalf("name policy: %v", err)
	}
	auth := app.KeyAuthorizer(testKey)
	gateway := app.NewGateway(service, auth, names)
	router := NewRouter(service, NewWSHandler(gateway), auth, cfg)
	return httptest.NewServer(router), service
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, id any, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "id": id, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

type message struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(message) bool) message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

// readAck skips room events until the ack for id arrives.
func readAck(t *testing.T, conn *websocket.Conn, id string) ackPayload {
	t.Helper()
	msg := readUntil(t, conn, func(m message) bool {
		return m.Type == "ack" && strings.Trim(string(m.ID), `"`) == id
	})
	var ack ackPayload
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

func readEvent(t *testing.T, conn *websocket.Conn, eventType string) json.RawMessage {
	t.Helper()
	return readUntil(t, conn, func(m message) bool { return m.Type == eventType }).Payload
}
