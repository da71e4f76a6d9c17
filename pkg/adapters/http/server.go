// Package http serves flows, editing sessions and reports over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/presentation/graph"
	"github.com/aretw0/stepgraph/pkg/adapters/breaker"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/observability"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/aretw0/stepgraph/pkg/report"
	"github.com/aretw0/stepgraph/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mitchellh/mapstructure"
)

// Server exposes a DocumentStore and the editing sessions over it.
type Server struct {
	store    ports.DocumentStore
	sessions *session.Manager
	streams  *StreamManager
	metrics  *observability.Metrics
	reports  report.Source
	spec     *openapi3.T
	router   routers.Router
	logger   *slog.Logger
	now      func() time.Time

	sessionOpts []session.Option
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics instruments editors and requests and serves /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithReports enables /api/report over the given session source.
func WithReports(src report.Source) Option {
	return func(s *Server) {
		s.reports = src
	}
}

// WithSessionOptions passes options to the session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Server) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithClock overrides time.Now, used for report defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer loads the API description and builds the session manager.
func NewServer(ctx context.Context, store ports.DocumentStore, opts ...Option) (*Server, error) {
	s := &Server{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	spec, err := LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	router, err := newRouter(spec)
	if err != nil {
		return nil, err
	}
	s.spec = spec
	s.router = router
	s.streams = NewStreamManager(s.logger)

	sessionOpts := []session.Option{
		session.WithLogger(s.logger),
		session.WithSurfaceFactory(s.streams.Surface),
	}
	if s.metrics != nil {
		sessionOpts = append(sessionOpts, session.WithEditorOptions(stepgraph.WithHooks(s.metrics.Hooks())))
	}
	s.sessions = session.NewManager(store, append(sessionOpts, s.sessionOpts...)...)
	return s, nil
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))
	if s.metrics != nil {
		r.Use(s.instrument)
	}

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(requestValidator(s.router))

		r.Get("/flows", s.listFlows)
		r.Get("/flows/{name}", s.getFlow)
		r.Get("/flows/{name}/graph", s.getFlowGraph)
		r.Get("/report", s.getReport)

		r.Get("/sessions", s.listSessions)
		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.closeSession)
			r.Get("/document", s.getDocument)
			r.Post("/save", s.saveSession)
			r.Get("/events", s.subscribeEvents)
			r.Get("/ws", s.handleWebSocket)
			r.Post("/nodes", s.addNode)
			r.Delete("/nodes/{node}", s.removeNode)
			r.Put("/nodes/{node}/position", s.moveNode)
			r.Put("/nodes/{node}/step", s.bindStep)
			r.Post("/edges", s.connect)
			r.Delete("/edges/{edge}", s.removeEdge)
		})
	})
	return r
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(r.Method, route, status, time.Since(start))
	})
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, _ *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "stepgraph-http",
		"version":     stepgraph.Version,
		"api_version": apiVersion,
	})
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) getFlowGraph(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ed := stepgraph.New(nil)
	if err := ed.LoadDocument(r.Context(), doc); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(ed.Nodes(), ed.Edges(), nil))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusNotFound, errors.New("reports are not configured"))
		return
	}
	q := r.URL.Query()
	filter, err := report.ParseFilter(s.now(), q.Get("from_date"), q.Get("to_date"), q.Get("group_by"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := report.Run(r.Context(), s.reports, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Flow string `json:"flow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	info, err := s.sessions.Create(r.Context(), body.Flow)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// sessionView is the full state of a session.
type sessionView struct {
	session.Info
	Nodes []domain.GraphNode `json:"nodes"`
	Edges []domain.Edge      `json:"edges"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var view sessionView
	err := s.sessions.WithEditor(r.Context(), id, func(_ context.Context, ed *stepgraph.Editor) error {
		view.Nodes = ed.Nodes()
		view.Edges = ed.Edges()
		return nil
	})
	if err == nil {
		view.Info, err = s.sessions.Get(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	var doc domain.FlowDocument
	err := s.sessions.WithEditor(r.Context(), chi.URLParam(r, "id"), func(_ context.Context, ed *stepgraph.Editor) error {
		var err error
		doc, err = ed.Document()
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Save(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	info, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) addNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind string  `json:"kind"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	kind, err := domain.ParseNodeKind(body.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var node domain.GraphNode
	err = s.sessions.WithEditor(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, ed *stepgraph.Editor) error {
		var err error
		node, err = ed.AddNode(ctx, kind, domain.Position{X: body.X, Y: body.Y})
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) removeNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(w, r)
	if !ok {
		return
	}
	var removed int
	err := s.sessions.WithEditor(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, ed *stepgraph.Editor) error {
		var err error
		removed, err = ed.RemoveNode(ctx, id)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed_edges": removed})
}

func (s *Server) moveNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(w, r)
	if !ok {
		return
	}
	var pos domain.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var node domain.GraphNode
	err := s.sessions.WithEditor(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, ed *stepgraph.Editor) error {
		if err := ed.Move(ctx, id, pos); err != nil {
			return err
		}
		node, _ = ed.Node(id)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) bindStep(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(w, r)
	if !ok {
		return
	}
	step, err := decodeStep(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var node domain.GraphNode
	err = s.sessions.WithEditor(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, ed *stepgraph.Editor) error {
		var err error
		node, err = ed.BindStep(ctx, id, step)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		From     domain.NodeID `json:"from"`
		To       domain.NodeID `json:"to"`
		FromPort string        `json:"from_port"`
		ToPort   string        `json:"to_port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if body.FromPort == "" {
		body.FromPort = domain.DefaultOutput
	}
	if body.ToPort == "" {
		body.ToPort = domain.DefaultInput
	}

	var edge domain.Edge
	err := s.sessions.WithEditor(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, ed *stepgraph.Editor) error {
		var err error
		edge, err = ed.Connect(ctx, body.From, body.FromPort, body.To, body.ToPort)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

func (s *Server) removeEdge(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.Atoi(chi.URLParam(r, "edge"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid edge id: %w", err))
		return
	}
	err = s.sessions.WithEditor(r.Context(), chi.URLParam(r, "id"), func(ctx context.Context, ed *stepgraph.Editor) error {
		return ed.RemoveEdge(ctx, domain.EdgeID(v))
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// subscribeEvents streams the session's canvas commands as server-sent events.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(id)
	defer cancel()

	s.logger.Info("SSE: Subscribing to session", "session_id", id)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", id)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

// decodeStep reads a step record. Unknown fields are rejected.
func decodeStep(body io.Reader) (domain.Step, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return domain.Step{}, fmt.Errorf("invalid request body: %w", err)
	}

	var rec domain.StepRecord
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &rec,
		ErrorUnused: true,
	})
	if err != nil {
		return domain.Step{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Step{}, fmt.Errorf("invalid step: %w", err)
	}
	return rec.Step()
}

func nodeParam(w http.ResponseWriter, r *http.Request) (domain.NodeID, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, "node"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid node id: %w", err))
		return 0, false
	}
	return domain.NodeID(v), true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, breaker.ErrOpenState), errors.Is(err, breaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrStore):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, stepgraph.ErrNoStore):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	if isRejection(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

var rejections = []error{
	domain.ErrEmptyDocument,
	domain.ErrDuplicateEdge,
	domain.ErrCycleDetected,
	domain.ErrUnknownPort,
	domain.ErrPortInUse,
	domain.ErrDuplicateStep,
	domain.ErrMultipleRoots,
	domain.ErrDisconnected,
	domain.ErrAmbiguousBranch,
	domain.ErrUnboundNode,
	domain.ErrInvalidStep,
}

func isRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
