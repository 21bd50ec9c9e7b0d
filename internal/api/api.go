// Package api serves the Synergy HTTP surface: the HR REST endpoints, resume
// screening and interview analysis, the browser voice bridges and the MCP
// tool endpoint.
//
// Routes:
//
//	GET    /api/employees              list employees
//	POST   /api/employees              add an employee
//	GET    /api/employees/{id}         get one employee
//	PUT    /api/employees/{id}         replace an employee
//	DELETE /api/employees/{id}         delete an employee
//	GET    /api/jobs                   job openings
//	GET    /api/hires                  recent hires
//	GET    /api/reviews                performance reviews (?employeeId=)
//	GET    /api/views                  dashboard views for ?role=
//	GET    /api/users                  demo identities, one per role
//	POST   /api/resume/screen          score a resume
//	POST   /api/interview/analyze      analyse an interview transcript
//	GET    /ws/assistant               general assistant voice bridge
//	GET    /ws/interviewer             interviewer voice bridge
//	*      /mcp/{role}                 MCP server with the role's tools
//
// Errors are JSON objects {"error": code, "message": text}.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/mcp"
	"github.com/MrWong99/synergy/internal/observe"
	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/internal/tools"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// Screener scores resumes and interviews. [*screening.Service] implements it.
type Screener interface {
	ScreenResume(ctx context.Context, req screening.ResumeRequest) (screening.ResumeResult, error)
	AnalyzeInterview(ctx context.Context, req screening.InterviewRequest) (screening.InterviewResult, error)
}

var _ Screener = (*screening.Service)(nil)

// VoiceSettings are the per-session defaults of the voice bridges. They may
// change at runtime; new sessions use the latest value.
type VoiceSettings struct {
	AssistantModel  string
	AssistantVoice  string
	PanelCloseDelay time.Duration

	InterviewerModel string
	InterviewerVoice string
	JobRole          string
	Tone             string
	Guidance         string

	FrameSize int
}

// DefaultVoiceSettings mirror the built-in profile defaults.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		AssistantVoice:   session.DefaultVoice,
		PanelCloseDelay:  tools.DefaultPanelCloseDelay,
		InterviewerVoice: session.DefaultVoice,
		JobRole:          session.DefaultJobRole,
		Tone:             string(session.ToneFriendly),
		Guidance:         session.DefaultInterviewerGuidance,
		FrameSize:        session.DefaultFrameSize,
	}
}

// Option is a functional option for [New].
type Option func(*Server)

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics records HTTP, bridge and session metrics into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAllowedOrigins sets the browser origins allowed to open voice bridges.
// "*" allows any origin. Without this option only same-origin requests pass.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithMaxBodyBytes caps JSON request bodies. The default fits a base64
// resume of [screening.DefaultMaxDocumentSize].
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithAnalysisTimeout overrides [DefaultAnalysisTimeout].
func WithAnalysisTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.analysisTimeout = d
		}
	}
}

// WithVersion sets the version reported by the MCP endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server holds the dependencies of every route. It is safe for concurrent use.
type Server struct {
	store    hr.Store
	screener Screener
	live     s2s.Provider

	log      *slog.Logger
	metrics  *observe.Metrics
	origins  []string
	maxBody  int64

	analysisTimeout time.Duration
	version  string
	settings atomic.Pointer[VoiceSettings]
	upgrader websocket.Upgrader
	bridges  bridgeSet
}

// New creates a Server. live may be nil, in which case the voice bridges
// answer 503.
func New(store hr.Store, screener Screener, live s2s.Provider, opts ...Option) *Server {
	s := &Server{
		store:    store,
		screener: screener,
		live:     live,
		log:      slog.Default(),
		maxBody:  int64(screening.DefaultMaxDocumentSize)*4/3 + 64<<10,
		version:  "dev",

		analysisTimeout: DefaultAnalysisTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	def := DefaultVoiceSettings()
	s.settings.Store(&def)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  16 << 10,
		WriteBufferSize: 16 << 10,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// SetVoiceSettings replaces the defaults used by sessions started from now on.
func (s *Server) SetVoiceSettings(v VoiceSettings) {
	s.settings.Store(&v)
}

// VoiceSettings returns the current session defaults.
func (s *Server) VoiceSettings() VoiceSettings {
	return *s.settings.Load()
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := s.Register(mux); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		return observe.Middleware(s.metrics)(mux), nil
	}
	return mux, nil
}

// Register adds every route to mux.
func (s *Server) Register(mux *http.ServeMux) error {
	mux.HandleFunc("GET /api/employees", s.listEmployees)
	mux.HandleFunc("POST /api/employees", s.addEmployee)
	mux.HandleFunc("GET /api/employees/{id}", s.getEmployee)
	mux.HandleFunc("PUT /api/employees/{id}", s.updateEmployee)
	mux.HandleFunc("DELETE /api/employees/{id}", s.deleteEmployee)
	mux.HandleFunc("GET /api/jobs", s.listJobs)
	mux.HandleFunc("GET /api/hires", s.listHires)
	mux.HandleFunc("GET /api/reviews", s.listReviews)
	mux.HandleFunc("GET /api/views", s.listViews)
	mux.HandleFunc("GET /api/users", s.listUsers)
	mux.HandleFunc("POST /api/resume/screen", s.screenResume)
	mux.HandleFunc("POST /api/interview/analyze", s.analyzeInterview)
	mux.HandleFunc("GET /ws/assistant", s.assistantBridge)
	mux.HandleFunc("GET /ws/interviewer", s.interviewerBridge)

	servers, err := s.mcpServers(context.Background())
	if err != nil {
		return err
	}
	mux.Handle("/mcp/{role}", mcp.RoleHandler(servers))
	return nil
}

// Shutdown closes every open voice bridge and waits for them to finish or
// for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.bridges.closeAll(ctx)
}

// mcpServers builds one MCP server per role, acting as the role's demo user.
func (s *Server) mcpServers(ctx context.Context) (map[string]*mcpsdk.Server, error) {
	out := make(map[string]*mcpsdk.Server, len(hr.Roles))
	for _, role := range hr.Roles {
		user, err := hr.DemoUser(ctx, s.store, role)
		if err != nil {
			return nil, fmt.Errorf("api: mcp %s: %w", role, err)
		}
		reg, err := tools.ForRole(role, user, s.store)
		if err != nil {
			return nil, fmt.Errorf("api: mcp %s: %w", role, err)
		}
		out[string(role)] = mcp.NewServer("synergy-"+string(role), reg,
			mcp.WithVersion(s.version),
			mcp.WithLogger(s.log),
			mcp.WithMetrics(s.metrics),
		)
	}
	return out, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin) {
		return true
	}
	// Same origin.
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
