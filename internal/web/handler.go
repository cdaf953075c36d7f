package web

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/config"
	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/journal"
	"github.com/winctx/winctx/internal/lifecycle"
	"github.com/winctx/winctx/pkg/environ"
	"github.com/winctx/winctx/pkg/window"
)

// Deps are the service pieces the status endpoints read from.
type Deps struct {
	Config *config.Config
	Hub    *hub.Hub
	Env    environ.Info
	Kind   window.Kind
	Life   *lifecycle.Lifecycle

	// Journal is nil when journaling is disabled; the history
	// endpoints answer 404 in that case.
	Journal *journal.Repository

	Log zerolog.Logger
}

// Handler serves the status endpoints of one adapter service.
type Handler struct {
	d        Deps
	reporter *journal.Reporter
	started  time.Time
}

func NewHandler(d Deps) *Handler {
	h := &Handler{d: d, started: time.Now()}
	if d.Journal != nil {
		h.reporter = journal.NewReporter(d.Journal)
	}
	return h
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/context", h.handleContext)
	mux.HandleFunc("/api/environment", h.handleEnvironment)
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/report", h.handleReport)
	mux.HandleFunc("/api/status", h.handleStatus)

	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/health", h.handleHealth)

	mux.HandleFunc("/", h.handleIndex)
}

func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cur, ok := h.d.Hub.Current()

	if r.Header.Get("HX-Request") == "true" {
		h.respondContextHTML(w, cur, ok)
		return
	}

	resp := map[string]interface{}{
		"present": ok,
		"fresh":   h.d.Hub.Fresh(),
	}
	if reason := h.d.Hub.StaleReason(); reason != "" {
		resp["stale_reason"] = reason
	}
	if ok {
		resp["context"] = contextJSON(cur)
	}
	h.respondJSON(w, resp)
}

func (h *Handler) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.respondJSON(w, map[string]string{
		"distro_id":    h.d.Env.DistroID,
		"distro_ver":   h.d.Env.DistroVer,
		"variant_id":   h.d.Env.VariantID,
		"session_type": h.d.Env.SessionType,
		"desktop_env":  h.d.Env.DesktopEnv,
		"de_maj_ver":   h.d.Env.DEMajorVer,
		"window_mgr":   h.d.Env.WindowManager,
	})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.d.Journal == nil {
		http.Error(w, "Journal is disabled", http.StatusNotFound)
		return
	}

	query := r.URL.Query()

	var events []*journal.ContextEvent
	var err error
	if periodType := query.Get("period"); periodType != "" {
		period, perr := journal.PeriodFor(periodType, time.Now())
		if perr != nil {
			http.Error(w, perr.Error(), http.StatusBadRequest)
			return
		}
		events, err = h.d.Journal.ContextsSince(period.Start)
	} else {
		limit := 50
		if s := query.Get("limit"); s != "" {
			if n, aerr := strconv.Atoi(s); aerr == nil && n > 0 {
				limit = n
			}
		}
		events, err = h.d.Journal.RecentContexts(limit)
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch events: %v", err), http.StatusInternalServerError)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		h.respondEventsHTML(w, events)
		return
	}
	h.respondJSON(w, events)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.reporter == nil {
		http.Error(w, "Journal is disabled", http.StatusNotFound)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	report, err := h.reporter.Generate(periodType)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusBadRequest)
		return
	}
	h.respondJSON(w, report)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"adapter":        string(h.d.Kind),
		"state":          string(h.d.Life.State()),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"subscribers":    h.d.Hub.Subscribers(),
		"fresh":          h.d.Hub.Fresh(),
		"journal":        h.d.Journal != nil,
		"poll_interval":  h.d.Config.Adapter.PollInterval.String(),
	}
	if detail := h.d.Life.Detail(); detail != "" {
		status["state_detail"] = detail
	}
	if cur, ok := h.d.Hub.Current(); ok {
		status["context"] = contextJSON(cur)
	}
	h.respondJSON(w, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) respondContextHTML(w http.ResponseWriter, cur window.Context, ok bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if !ok {
		w.Write([]byte(`<div class="loading">No window focused yet</div>`))
		return
	}

	badge := ""
	if !h.d.Hub.Fresh() {
		badge = `<span class="badge stale">stale</span>`
	}
	fmt.Fprintf(w, `
	<div class="context">
		<div class="context-title">%s%s</div>
		<div class="context-field"><span>app_id</span>%s</div>
		<div class="context-field"><span>app_class</span>%s</div>
		<div class="context-field"><span>observed</span>%s</div>
	</div>`,
		html.EscapeString(cur.Title), badge,
		html.EscapeString(cur.AppID),
		html.EscapeString(cur.AppClass),
		cur.ObservedAt.Format("15:04:05"))
}

func (h *Handler) respondEventsHTML(w http.ResponseWriter, events []*journal.ContextEvent) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if len(events) == 0 {
		w.Write([]byte(`<div class="loading">No events recorded</div>`))
		return
	}

	out := `<div class="listing">`
	for _, ev := range events {
		out += fmt.Sprintf(`
		<div class="event-item">
			<span class="event-time">%s</span>
			<span class="event-app">%s</span>
			<span class="event-title">%s</span>
		</div>`,
			ev.Timestamp.Format("15:04:05"),
			html.EscapeString(ev.AppClass),
			html.EscapeString(ev.Title))
	}
	out += `</div>`

	w.Write([]byte(out))
}

func contextJSON(c window.Context) map[string]interface{} {
	return map[string]interface{}{
		"app_id":       c.AppID,
		"app_class":    c.AppClass,
		"window_title": c.Title,
		"observed_at":  c.ObservedAt.Format(time.RFC3339Nano),
		"source":       string(c.Source),
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.d.Log.Warn().Err(err).Msg("failed to encode JSON response")
	}
}
