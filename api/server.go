// Package api serves the encrypt, decrypt, download and operations routes
// over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/stegokey/backend-go/internal/metrics"
	"github.com/stegokey/backend-go/internal/store"
	"github.com/stegokey/backend-go/pkg/client"
	"github.com/stegokey/backend-go/pkg/ledger"
)

const defaultMaxUpload = 64 << 20

// CarrierStore holds encoded carriers until they are downloaded.
type CarrierStore interface {
	Put(obj store.Object, b []byte) (store.Object, error)
	Get(id string) (store.Object, []byte, error)
	Delete(id string) error
}

type Config struct {
	// BaseURL prefixes download links. Empty uses the request's host.
	BaseURL        string
	MaxUploadBytes int64
	CORSOrigins    []string
	// Auth guards every route except healthz and metrics when set.
	Auth func(http.Handler) http.Handler
}

type Server struct {
	client  *client.Client
	store   CarrierStore
	ledger  ledger.Recorder
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	cfg     Config
}

type ServerOptions struct {
	Client  *client.Client
	Store   CarrierStore
	Ledger  ledger.Recorder
	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger
	Config  Config
}

func NewServer(op ServerOptions) *Server {
	s := &Server{
		client:  op.Client,
		store:   op.Store,
		ledger:  op.Ledger,
		metrics: op.Metrics,
		log:     op.Logger,
		cfg:     op.Config,
	}
	if s.ledger == nil {
		s.ledger = ledger.Nop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.cfg.MaxUploadBytes <= 0 {
		s.cfg.MaxUploadBytes = defaultMaxUpload
	}
	return s
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.Auth != nil {
			r.Use(s.cfg.Auth)
		}
		r.Post("/encrypt", s.encrypt)
		r.Post("/decrypt", s.decrypt)
		r.Get("/download/{id}", s.download)
		r.Delete("/download/{id}", s.deleteDownload)
		if l, ok := s.ledger.(ledger.Lister); ok {
			r.Get("/operations", s.operations(l))
		}
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// record reports a finished operation to metrics and the ledger. Ledger
// failures are logged and never fail the request.
func (s *Server) record(ctx context.Context, op string, start time.Time, rec ledger.Record) {
	s.metrics.Observe(op, rec.Outcome, time.Since(start))
	if err := s.ledger.Record(ctx, rec); err != nil {
		s.log.WithError(err).WithField("op", op).Error("could not write ledger record")
	}
}
