// Package dashboard serves the Weather Intelligence page, a web view of the
// active NWS alerts returned by the get_alerts tool of an MCP weather server.
package dashboard

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp/weather"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "dashboard")

//go:embed templates/*.html
var templatesFS embed.FS

// Names used by the page
const (
	DefaultServer    = "weather"
	AlertsTool       = "get_alerts"
	ThemeCookie      = "theme"
	ThemeDark        = "dark"
	ThemeLight       = "light"
	RequestIDHeader  = "X-Request-ID"
	UpdatedFormat    = "03:04PM"
	DefaultAddr      = ":8501"
	defaultCallLimit = 30 * time.Second
)

// TimeNowFn returns the time shown as Updated
var TimeNowFn = time.Now

// AlertSource provides the MCP tools of the weather server.
type AlertSource interface {
	ListTools(ctx context.Context, server string) ([]*mcp.Tool, error)
	CallTool(ctx context.Context, server, name string, args map[string]any) (string, error)
}

// Option configures the Dashboard
type Option func(*Dashboard)

// WithServer sets the name of the MCP server in the source
func WithServer(name string) Option {
	return func(d *Dashboard) {
		d.server = name
	}
}

// WithTimeout sets the limit of each MCP call
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dashboard) {
		d.timeout = timeout
	}
}

// Dashboard is the http.Handler of the page.
type Dashboard struct {
	source  AlertSource
	server  string
	timeout time.Duration
	tmpl    *template.Template
	mux     *http.ServeMux

	lock  sync.Mutex
	tools []ToolInfo
}

// ToolInfo is the listed tool
type ToolInfo struct {
	Name        string
	Description string
}

// Palette holds the colors of a theme
type Palette struct {
	Background template.CSS
	Card       template.CSS
	Text       template.CSS
	Secondary  template.CSS
	Accent     template.CSS
	InputBg    template.CSS
	Border     template.CSS
}

var palettes = map[string]Palette{
	ThemeLight: {
		Background: "#e0f2fe",
		Card:       "#ffffff",
		Text:       "#0f172a",
		Secondary:  "#475569",
		Accent:     "#38bdf8",
		InputBg:    "#f8fafc",
		Border:     "#cbd5e1",
	},
	ThemeDark: {
		Background: "#0f172a",
		Card:       "#1e293b",
		Text:       "#f1f5f9",
		Secondary:  "#94a3b8",
		Accent:     "#38bdf8",
		InputBg:    "#1e293b",
		Border:     "#334155",
	},
}

// Page is the data rendered by the template
type Page struct {
	Theme   string
	Colors  Palette
	State   string
	Error   string
	Tools   []ToolInfo
	Results *Results
}

// Results of the alerts lookup
type Results struct {
	State   string
	Count   int
	Updated string
	Clear   bool
	Failed  bool
	Alerts  []Alert
}

// New returns the dashboard over the source.
func New(source AlertSource, opts ...Option) (*Dashboard, error) {
	tmpl, err := template.New("dashboard").
		Funcs(sprig.FuncMap()).
		ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse templates")
	}

	d := &Dashboard{
		source:  source,
		server:  DefaultServer,
		timeout: defaultCallLimit,
		tmpl:    tmpl,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.mux = http.NewServeMux()
	d.mux.HandleFunc("GET /{$}", d.handleIndex)
	d.mux.HandleFunc("GET /theme", d.handleTheme)
	return d, nil
}

// ServeHTTP implements http.Handler
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := values.StringsCoalesce(r.Header.Get(RequestIDHeader), uuid.NewString())
	w.Header().Set(RequestIDHeader, id)
	logger.ContextKV(r.Context(), xlog.DEBUG,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", id,
	)
	d.mux.ServeHTTP(w, r)
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := &Page{
		Theme: theme(r),
		Tools: d.listTools(ctx),
	}
	page.Colors = palettes[page.Theme]

	state := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("state")))
	page.State = state
	if state != "" {
		if len(state) != 2 {
			page.Error = "Enter a two-letter state code"
		} else if code, err := weather.NormalizeState(state); err != nil {
			page.Error = "Unknown state code " + state
		} else {
			page.Results = d.fetchAlerts(ctx, code)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.tmpl.ExecuteTemplate(w, "index.html", page); err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "render", "err", err.Error())
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

func (d *Dashboard) handleTheme(w http.ResponseWriter, r *http.Request) {
	next := ThemeDark
	if theme(r) == ThemeDark {
		next = ThemeLight
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ThemeCookie,
		Value:    next,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	target := "/"
	if state := r.URL.Query().Get("state"); state != "" {
		target += "?state=" + url.QueryEscape(state)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func theme(r *http.Request) string {
	c, err := r.Cookie(ThemeCookie)
	if err == nil && c.Value == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// listTools returns the tools of the server, cached after the first success
func (d *Dashboard) listTools(ctx context.Context) []ToolInfo {
	d.lock.Lock()
	cached := d.tools
	d.lock.Unlock()
	if cached != nil {
		return cached
	}

	// not locked while listing, concurrent first requests may both list
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	list, err := d.source.ListTools(ctx, d.server)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "list_tools",
			"server", d.server,
			"err", err.Error(),
		)
		return nil
	}

	res := make([]ToolInfo, 0, len(list))
	for _, t := range list {
		res = append(res, ToolInfo{Name: t.Name, Description: t.Description})
	}
	d.lock.Lock()
	if d.tools == nil {
		d.tools = res
	}
	d.lock.Unlock()
	return res
}

func (d *Dashboard) fetchAlerts(ctx context.Context, state string) *Results {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	text, err := d.source.CallTool(ctx, d.server, AlertsTool, map[string]any{"state": state})
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "get_alerts",
			"state", state,
			"err", err.Error(),
		)
		text = "Error: " + err.Error()
	}

	res := &Results{
		State:   state,
		Updated: TimeNowFn().Format(UpdatedFormat),
	}
	switch {
	case isClear(text):
		res.Clear = true
	case isFailed(text):
		res.Failed = true
	default:
		res.Count = CountAlerts(text)
		for _, part := range SplitAlerts(text) {
			if strings.TrimSpace(part) != "" {
				res.Alerts = append(res.Alerts, NewAlert(part))
			}
		}
	}
	return res
}
