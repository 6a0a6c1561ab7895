package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Aleph-Alpha/schemawatch/v1/pipeline"
	"github.com/Aleph-Alpha/schemawatch/v1/versioning"
)

// Producer sends raw records into the pipeline. *kafka.KafkaClient implements it.
type Producer interface {
	PublishTo(ctx context.Context, topic, key string, body []byte, headers map[string]string) error
}

type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Features reports which backing services are configured.
type Features struct {
	Postgres       bool `json:"postgresql"`
	SchemaRegistry bool `json:"schema_registry"`
	Kafka          bool `json:"kafka"`
	Notifications  bool `json:"notifications"`
	Quarantine     bool `json:"quarantine"`
}

// Deps are the services the handlers read from.
type Deps struct {
	Registry *versioning.Registry
	Versions versioning.Reader
	Metadata pipeline.MetadataStore

	// Producer is optional; /produce answers 503 without it.
	Producer Producer

	Features Features
}

type Server struct {
	cfg    Config
	deps   Deps
	log    Logger
	router *mux.Router
	http   *http.Server
}

func NewServer(cfg Config, deps Deps, log Logger) *Server {
	cfg = cfg.withDefaults()
	if log == nil {
		log = nopLogger{}
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		log:    log,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	s.setupMiddleware()

	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/produce", s.handleProduce).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()

	messages := api.PathPrefix("/messages").Subrouter()
	messages.HandleFunc("", s.listMessages).Methods(http.MethodGet)
	messages.HandleFunc("/topic/{topic}", s.listMessages).Methods(http.MethodGet)
	messages.HandleFunc("/service/{service}", s.listMessages).Methods(http.MethodGet)
	messages.HandleFunc("/level/{level}", s.listMessages).Methods(http.MethodGet)

	api.HandleFunc("/stats/topic/{topic}", s.topicStats).Methods(http.MethodGet)

	schemas := api.PathPrefix("/schemas").Subrouter()
	schemas.HandleFunc("", s.listSchemas).Methods(http.MethodGet)
	schemas.HandleFunc("/active", s.listActiveSchemas).Methods(http.MethodGet)
	schemas.HandleFunc("/infer", s.inferSchema).Methods(http.MethodPost)
	schemas.HandleFunc("/registry/subjects", s.registrySubjects).Methods(http.MethodGet)
	schemas.HandleFunc("/id/{id:[0-9]+}", s.schemaByID).Methods(http.MethodGet)
	schemas.HandleFunc("/subject/{subject}", s.subjectVersions).Methods(http.MethodGet)
	schemas.HandleFunc("/subject/{subject}/versions/{version:[0-9]+}", s.subjectVersion).Methods(http.MethodGet)
	schemas.HandleFunc("/subject/{subject}/check", s.checkSchema).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", r.URL.Path)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", r.Method)
	})
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.recoverMiddleware)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
			}
			next.ServeHTTP(w, r)
		})
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Address
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, details string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message, Message: details, Status: statusCode})
}

type nopLogger struct{}

func (nopLogger) Info(string, error, ...map[string]interface{})  {}
func (nopLogger) Error(string, error, ...map[string]interface{}) {}
func (nopLogger) WarnWithContext(context.Context, string, error, ...map[string]interface{}) {}
