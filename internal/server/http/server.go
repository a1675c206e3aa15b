package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nestjam/yap-shortlink/internal/domain"
	"github.com/nestjam/yap-shortlink/internal/domain/service"
	"github.com/nestjam/yap-shortlink/internal/middleware"
)

const (
	locationHeader      = "Location"
	contentTypeHeader   = "Content-Type"
	contentLengthHeader = "Content-Length"
	applicationJSON     = "application/json"
	codeParam           = "code"
)

// Сообщения об ошибках в ответах сервера.
const (
	validURLRequiredMessage  = "Valid URL required"
	codeRequiredMessage      = "Code required"
	notFoundMessage          = "Not found"
	invalidBodyMessage       = "Invalid request body"
	failedToGenerateMessage  = "Failed to generate unique code"
	internalErrorMessage     = "Internal error"
	failedToWriteResponseMsg = "Failed to write response"
)

// Server предоставляет HTTP API сокращения ссылок, перехода по ним и статистики переходов.
type Server struct {
	store       domain.Store
	shortener   *service.Shortener
	redirector  *service.Redirector
	recorder    *service.ClickRecorder
	router      chi.Router
	logger      *zap.Logger
	middlewares []func(http.Handler) http.Handler
	serviceOpts []service.Option
}

// ShortenRequest представляет тело запроса и содержит исходный URL.
type ShortenRequest struct {
	URL string `json:"url"` // исходный URL
}

// ShortenResponse содержит короткий и исходный URL.
type ShortenResponse struct {
	ShortURL string `json:"shortUrl"` // короткий URL
	LongURL  string `json:"longUrl"`  // исходный URL
}

// StatsResponse содержит сведения о короткой ссылке.
type StatsResponse struct {
	CreatedAt time.Time `json:"createdAt"` // время создания
	Code      string    `json:"code"`      // короткий код
	LongURL   string    `json:"longUrl"`   // исходный URL
	Clicks    int64     `json:"clicks"`    // количество переходов
}

// ErrorResponse содержит описание ошибки.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Option определяет опцию настройки сервера.
type Option func(*Server)

// New создает сервер. Конструктор принимает на вход хранилище ссылок, базовый URL и набор опций.
func New(store domain.Store, baseURL string, options ...Option) *Server {
	r := chi.NewRouter()
	s := &Server{
		store:  store,
		router: r,
		logger: zap.NewNop(),
	}

	for _, opt := range options {
		opt(s)
	}

	opts := append([]service.Option{service.WithLogger(s.logger)}, s.serviceOpts...)
	s.shortener = service.NewShortener(store, baseURL, opts...)
	s.redirector = service.NewRedirector(store, opts...)
	if s.recorder != nil {
		s.redirector.SetClickRecorder(s.recorder)
	}

	r.Use(middleware.ResponseLogger(s.logger))
	r.Use(s.middlewares...)

	r.Get("/ping", s.ping)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestDecoder, middleware.ResponseEncoder)

		r.Post("/shorten", s.shorten)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ResponseEncoder)

		r.Get("/", s.codeRequired)
		r.Get("/stats/{code}", s.stats)
		r.Get("/{code}", s.redirect)
	})

	return s
}

// ServeHTTP обрабатывает запрос.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) shorten(w http.ResponseWriter, r *http.Request) {
	var req ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, invalidBodyMessage)
		return
	}

	result, err := s.shortener.Shorten(r.Context(), req.URL)
	if err != nil {
		s.fail(w, r, err, validURLRequiredMessage)
		return
	}

	s.writeJSON(w, http.StatusOK, ShortenResponse{
		ShortURL: result.ShortURL,
		LongURL:  result.LongURL,
	})
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, codeParam)

	url, err := s.redirector.Resolve(r.Context(), code)
	if err != nil {
		s.fail(w, r, err, codeRequiredMessage)
		return
	}

	w.Header().Set(locationHeader, url)
	w.WriteHeader(http.StatusMovedPermanently)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, codeParam)

	link, err := s.redirector.Describe(r.Context(), code)
	if err != nil {
		s.fail(w, r, err, codeRequiredMessage)
		return
	}

	s.writeJSON(w, http.StatusOK, StatsResponse{
		Code:      link.Code,
		LongURL:   link.LongURL,
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt,
	})
}

func (s *Server) codeRequired(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusBadRequest, codeRequiredMessage)
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	status := http.StatusInternalServerError
	if s.store.IsAvailable(r.Context()) {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

// fail отвечает клиенту по виду ошибки. Подробности серверных ошибок пишутся только в лог.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, invalidInputMessage string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, invalidInputMessage)
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, domain.ErrAllocationExhausted):
		s.internalError(w, r, err, failedToGenerateMessage)
	default:
		s.internalError(w, r, err, internalErrorMessage)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	s.logger.Error("Request failed",
		zap.String("uri", r.RequestURI),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err))

	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}

	s.writeError(w, http.StatusInternalServerError, message)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	content, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to prepare response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set(contentTypeHeader, applicationJSON)
	w.Header().Set(contentLengthHeader, strconv.Itoa(len(content)))
	w.WriteHeader(status)
	if _, err := w.Write(content); err != nil {
		s.logger.Warn(failedToWriteResponseMsg, zap.Error(err))
	}
}

// WithLogger задает логер для сервера и сервисов.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClickRecorder задает компонент, который учитывает переходы асинхронно.
func WithClickRecorder(recorder *service.ClickRecorder) Option {
	return func(s *Server) {
		s.recorder = recorder
	}
}

// WithServiceOptions передает опции сервисам сокращения и перехода.
func WithServiceOptions(opts ...service.Option) Option {
	return func(s *Server) {
		s.serviceOpts = append(s.serviceOpts, opts...)
	}
}

// WithMiddlewares добавляет посредников, которые выполняются для всех запросов.
func WithMiddlewares(middlewares ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, middlewares...)
	}
}
