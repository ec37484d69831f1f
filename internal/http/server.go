package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/cache"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/middleware/ratelimit"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/middleware/security"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/middleware/trace"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/ui"
	appweb "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/web"
)

// Config holds the web server settings.
type Config struct {
	Addr           string
	SessionTTL     time.Duration
	MaxSessions    int
	CurrencySymbol string
	DisplayLocale  string
	// WritesPerMinute bounds POST requests per client.
	WritesPerMinute int
	// FormOptions are applied to every new session's form.
	FormOptions []ui.FormOption
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 1000
	}
	if c.DisplayLocale == "" {
		c.DisplayLocale = "en-IN"
	}
	if c.CurrencySymbol == "" {
		c.CurrencySymbol = "₹"
	}
	if c.WritesPerMinute <= 0 {
		c.WritesPerMinute = 60
	}
	return c
}

// Server renders the expense tracker and routes browser events to the
// session's view-models.
type Server struct {
	http.Server
	cfg       Config
	api       ui.API
	templates *template.Template
	logger    *applog.Logger
	started   time.Time

	sessions     *sessionStore
	cacheManager *cache.Manager
	rateLimiter  *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes, middleware and templates. api is the remote
// expense API every session talks to.
func NewServer(cfg Config, api ui.API, logger *applog.Logger) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentHTTP)
	}

	s := &Server{
		cfg:          cfg,
		api:          api,
		logger:       logger,
		started:      time.Now(),
		cacheManager: cache.NewManager(logger.WithComponent(applog.ComponentSession)),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.WritesPerMinute}),
		detector:     security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	formatter := ui.NewFormatter(cfg.DisplayLocale, cfg.CurrencySymbol)
	uiLogger := logger.WithComponent(applog.ComponentUI)
	s.sessions = newSessionStore(cfg.MaxSessions, cfg.SessionTTL, func() *ui.Root {
		return ui.NewRoot(api, formatter, uiLogger, cfg.FormOptions...)
	}, logger.WithComponent(applog.ComponentSession))
	s.cacheManager.Register(s.sessions.roots)

	t, err := template.New("").ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /expenses", s.handleSubmitExpense)
	mux.HandleFunc("GET /ui/form", s.handleForm)
	mux.HandleFunc("POST /ui/form/field", s.handleFieldUpdate)
	mux.HandleFunc("GET /ui/expenses", s.handleList)

	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start launches the background sweepers. ListenAndServe does not need it,
// but idle sessions and rate limit entries are only reclaimed once started.
func (s *Server) Start() {
	s.cacheManager.StartCleanup(time.Minute)
	s.rateLimiter.Start()
}

// Shutdown stops the sweepers, drops sessions and shuts the listener down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
		s.sessions.close()
	})
	return err
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.NewFields().
			WithClientIP(s.detector.ExtractClientIP(r)).
			WithHTTPRequest(r.Method, r.URL.Path, "").
			ToSlice()...)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").Write(w)
}

// render executes a template into a buffer first so a template failure
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		InternalServerError("Templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.NewFields().WithOperation(applog.OpRender).WithError(err).ToSlice()...)
		InternalServerError("Failed to render page").Write(w)
		return
	}
	b.BodyHTML(buf.Bytes()).Write(w)
}
