package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"wedding-quiz/internal/app"
	"wedding-quiz/internal/domain"
)

const qrSize = 320

// RouterConfig carries what the plain HTTP endpoints expose to clients.
type RouterConfig struct {
	BaseURL        string
	LiffIDPlayer   string
	LiffIDHost     string
	AllowedOrigins []string
	Metrics        http.Handler
}

type api struct {
	service *app.QuizService
	auth    app.Authorizer
	cfg     RouterConfig
	now     func() time.Time
}

// NewRouter wires the websocket endpoint and the HTTP side endpoints behind CORS.
func NewRouter(service *app.QuizService, ws *WSHandler, auth app.Authorizer, cfg RouterConfig) http.Handler {
	a := &api{service: service, auth: auth, cfg: cfg, now: time.Now}

	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/ws", ws.ServeWS)
	router.GET("/config", a.serveConfig)
	router.GET("/export/score", a.exportScore)
	router.GET("/rooms/:code/qr", a.joinQR)
	router.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", cfg.Metrics)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

type clientConfig struct {
	Role    string `json:"role"`
	LiffID  string `json:"liffId"`
	BaseURL string `json:"baseUrl"`
}

func (a *api) serveConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	role := q.Get("role")
	if role == "" {
		role = string(domain.RolePlayer)
	}
	liffID := q.Get("liffId")
	if liffID == "" {
		liffID = a.cfg.LiffIDPlayer
		if role == string(domain.RoleHost) {
			liffID = a.cfg.LiffIDHost
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(clientConfig{Role: role, LiffID: liffID, BaseURL: a.cfg.BaseURL})
}

func (a *api) exportScore(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	code := app.NormalizeCode(q.Get("code"))
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	if !a.auth.Authorize(q.Get("adminKey")) {
		http.Error(w, domain.ErrUnauthorized.Error(), http.StatusForbidden)
		return
	}
	snap, err := a.service.Snapshot(code)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	rng := scoreRangeFromQuery(q)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+app.ReportFilename(code, rng)+`"`)
	_, _ = w.Write([]byte(app.ScoreReport(snap, rng, a.now())))
	log.Info().Str("code", code).Str("range", rng.String()).Msg("score exported")
}

// scoreRangeFromQuery reads minScore/maxScore; a missing or unparsable minScore means the default,
// a missing or unparsable maxScore means no upper bound.
func scoreRangeFromQuery(q url.Values) app.ScoreRange {
	rng := app.ScoreRange{Min: app.DefaultReportMinScore}
	if v, err := strconv.Atoi(q.Get("minScore")); err == nil {
		rng.Min = max(0, v)
	}
	if v, err := strconv.Atoi(q.Get("maxScore")); err == nil {
		rng.Max = &v
	}
	return rng
}

func (a *api) joinQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	snap, err := a.service.Snapshot(ps.ByName("code"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	base := a.cfg.BaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}

	png, err := qrcode.Encode(base+"/player?code="+url.QueryEscape(snap.Code), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func statusFor(err error) int {
	switch {
	case domain.IsAuthorization(err):
		return http.StatusForbidden
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsStateConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
