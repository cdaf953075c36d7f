package web

import (
	"fmt"
	"html"
	"net/http"
)

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexPage,
		html.EscapeString(string(h.d.Kind)),
		html.EscapeString(string(h.d.Kind)),
		html.EscapeString(string(h.d.Life.State())),
		html.EscapeString(h.d.Env.DistroID),
		html.EscapeString(h.d.Env.DistroVer),
		html.EscapeString(h.d.Env.SessionType),
		html.EscapeString(h.d.Env.DesktopEnv),
		html.EscapeString(h.d.Env.DEMajorVer),
		html.EscapeString(h.d.Env.WindowManager),
	)
}

// indexPage is the status dashboard. The current-window card and the
// event list refresh themselves over htmx; the environment table is
// fixed for the life of the process, so it is rendered once.
const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>winctx %s</title>
    <script src="https://unpkg.com/htmx.org@1.9.10"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --bg-primary: #f5f5f5;
            --bg-secondary: white;
            --text-primary: #333;
            --text-muted: #7f8c8d;
            --border-color: #eee;
            --accent-color: #3498db;
            --heading-color: #2c3e50;
            --shadow: rgba(0,0,0,0.1);
        }

        @media (prefers-color-scheme: dark) {
            :root {
                --bg-primary: #1a1a1a;
                --bg-secondary: #2d2d2d;
                --text-primary: #e0e0e0;
                --text-muted: #a0a0a0;
                --border-color: #404040;
                --accent-color: #5dade2;
                --heading-color: #5dade2;
                --shadow: rgba(0,0,0,0.3);
            }
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            padding: 2rem;
            max-width: 720px;
            margin: 0 auto;
        }

        h1 { color: var(--heading-color); margin-bottom: 0.25rem; }
        h2 { color: var(--heading-color); font-size: 1rem; margin-bottom: 0.75rem; }

        .state { color: var(--text-muted); margin-bottom: 1.5rem; }

        .card {
            background: var(--bg-secondary);
            border-radius: 8px;
            padding: 1.25rem;
            margin-bottom: 1.5rem;
            box-shadow: 0 1px 3px var(--shadow);
        }

        .context-title { font-size: 1.1rem; font-weight: 600; margin-bottom: 0.75rem; }
        .context-field { font-size: 0.9rem; padding: 0.15rem 0; }
        .context-field span {
            display: inline-block;
            width: 7rem;
            color: var(--text-muted);
        }

        .badge.stale {
            background: #e67e22;
            color: white;
            border-radius: 4px;
            font-size: 0.7rem;
            padding: 0.1rem 0.4rem;
            margin-left: 0.5rem;
            vertical-align: middle;
        }

        table { width: 100%%; border-collapse: collapse; font-size: 0.9rem; }
        td { padding: 0.25rem 0; border-bottom: 1px solid var(--border-color); }
        td:first-child { color: var(--text-muted); width: 9rem; }

        .event-item {
            display: flex;
            gap: 0.75rem;
            padding: 0.3rem 0;
            border-bottom: 1px solid var(--border-color);
            font-size: 0.85rem;
        }
        .event-time { color: var(--text-muted); white-space: nowrap; }
        .event-app { color: var(--accent-color); white-space: nowrap; }
        .event-title { overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }

        .loading { color: var(--text-muted); font-size: 0.9rem; }
    </style>
</head>
<body>
    <h1>winctx</h1>
    <div class="state">adapter %s &middot; state %s</div>

    <div class="card">
        <h2>Current window</h2>
        <div hx-get="/api/context" hx-trigger="load, every 1s">
            <div class="loading">Loading&hellip;</div>
        </div>
    </div>

    <div class="card">
        <h2>Environment</h2>
        <table>
            <tr><td>DISTRO_ID</td><td>%s</td></tr>
            <tr><td>DISTRO_VER</td><td>%s</td></tr>
            <tr><td>SESSION_TYPE</td><td>%s</td></tr>
            <tr><td>DESKTOP_ENV</td><td>%s</td></tr>
            <tr><td>DE_MAJ_VER</td><td>%s</td></tr>
            <tr><td>WINDOW_MGR</td><td>%s</td></tr>
        </table>
    </div>

    <div class="card">
        <h2>Recent focus changes</h2>
        <div hx-get="/api/events?limit=15" hx-trigger="load, every 3s">
            <div class="loading">Loading&hellip;</div>
        </div>
    </div>
</body>
</html>
`
