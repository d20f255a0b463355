package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/mmo-region/internal/auth"
	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/metrics"
	"github.com/annel0/mmo-region/internal/middleware"
	"github.com/annel0/mmo-region/internal/world"
)

// ErrTimeout поток тика не ответил вовремя
var ErrTimeout = errors.New("world did not respond in time")

// WorldAccess доступ к миру из HTTP-горутин. Stats безопасен из любого
// потока, остальное выполняется через Submit в потоке тика.
type WorldAccess interface {
	Stats() world.Stats
	Submit(fn func(*world.World)) error
}

// ProcessStats источник метрик процесса, может быть nil
type ProcessStats interface {
	Sample() (metrics.Snapshot, error)
}

// Config параметры админского сервера
type Config struct {
	Addr       string
	World      WorldAccess
	Process    ProcessStats
	Gatherer   prometheus.Gatherer
	Registerer prometheus.Registerer
	// CallTimeout ожидание ответа потока тика
	CallTimeout time.Duration
	// Auth если задан, изменяющие маршруты требуют токен оператора
	Auth *auth.Authenticator
	// TracerProvider для otelgin, nil - глобальный
	TracerProvider trace.TracerProvider
}

// Server админский HTTP-сервер: здоровье, статистика, настройки, метрики
type Server struct {
	router  *gin.Engine
	http    *http.Server
	world   WorldAccess
	process ProcessStats
	timeout time.Duration
	auth    *auth.Authenticator
	log     *logging.Logger
}

// GenericResponse общий формат ответа
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewServer создаёт сервер и настраивает маршруты
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	var otelOpts []otelgin.Option
	if cfg.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	router.Use(otelgin.Middleware("admin_api", otelOpts...))
	router.Use(middleware.NewRequestLogger().Handler())
	router.Use(middleware.NewPrometheusMiddleware("admin_api", cfg.Registerer).Handler())

	s := &Server{
		router:  router,
		world:   cfg.World,
		process: cfg.Process,
		timeout: cfg.CallTimeout,
		auth:    cfg.Auth,
		log:     logging.GetComponentLogger("api"),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/settings", s.handleGetSettings)
		api.GET("/clients", s.handleClients)
	}

	protected := api.Group("")
	if s.auth != nil {
		protected.Use(s.operatorMiddleware())
	}
	{
		protected.PUT("/settings", s.handlePutSettings)
		protected.POST("/clients/:id/kick", s.handleKick)
	}

	return s
}

// Handler HTTP-обработчик сервера
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает адрес до отмены контекста, затем плавно останавливается
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Админский API слушает %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

const (
	callPending int32 = iota
	callRunning
	callAbandoned
)

// call выполняет fn в потоке тика и ждёт завершения. После ErrTimeout
// fn уже не выполнится: поток тика пропустит брошенную команду.
func (s *Server) call(ctx context.Context, fn func(*world.World)) error {
	var state atomic.Int32
	done := make(chan struct{})
	if err := s.world.Submit(func(w *world.World) {
		if !state.CompareAndSwap(callPending, callRunning) {
			return
		}
		fn(w)
		close(done)
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	if state.CompareAndSwap(callPending, callAbandoned) {
		return ErrTimeout
	}
	// команда уже выполняется, дожидаемся её
	<-done
	return nil
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, world.ErrRunnerBusy) || errors.Is(err, ErrTimeout) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}
