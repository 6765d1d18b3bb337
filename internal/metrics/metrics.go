package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"wedding-quiz/internal/domain"
)

// Metrics implements app.Recorder on top of Prometheus collectors.
type Metrics struct {
	ActiveRooms       prometheus.Gauge
	OnlinePlayers     prometheus.Gauge
	RoomsCreated      prometheus.Counter
	AnswersAccepted   prometheus.Counter
	QuestionsRevealed prometheus.Counter
	CorrectAnswers    prometheus.Counter
	Commands          *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms held by this process",
		}),
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Total number of rooms created",
		}),
		AnswersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_accepted_total",
			Help:      "Total number of accepted answers",
		}),
		QuestionsRevealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_revealed_total",
			Help:      "Total number of revealed questions",
		}),
		CorrectAnswers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correct_answers_total",
			Help:      "Total number of answers scored as correct",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Client commands by name and outcome",
		}, []string{"command", "result"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.ActiveRooms,
		m.OnlinePlayers,
		m.RoomsCreated,
		m.AnswersAccepted,
		m.QuestionsRevealed,
		m.CorrectAnswers,
		m.Commands,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Rooms are never evicted, so the gauge only grows.
func (m *Metrics) RoomCreated() {
	m.RoomsCreated.Inc()
	m.ActiveRooms.Inc()
}

func (m *Metrics) PlayerConnected() {
	m.OnlinePlayers.Inc()
}

func (m *Metrics) PlayersDisconnected(n int) {
	m.OnlinePlayers.Sub(float64(n))
}

func (m *Metrics) AnswerAccepted() {
	m.AnswersAccepted.Inc()
}

func (m *Metrics) QuestionRevealed(correct int) {
	m.QuestionsRevealed.Inc()
	m.CorrectAnswers.Add(float64(correct))
}

func (m *Metrics) CommandHandled(command string, err error) {
	m.Commands.WithLabelValues(command, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsAuthorization(err):
		return "unauthorized"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsValidation(err):
		return "invalid"
	case domain.IsStateConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
