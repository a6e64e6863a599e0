package webd

import (
	"context"
	"errors"
	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/params"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Controller is the part of the fusion scheduler the web daemon drives.
type Controller interface {
	Status() fusion.Status
	Rate() int
	SetRate(rate int) error
	Subscribe(ch chan<- fusion.Output) event.Subscription
}

type WebDaemon struct {
	Config *params.WebDaemonConfig

	fusion         Controller
	logger         *slog.Logger
	melodyInstance *melody.Melody
	recent         *common.RingBuffer[fusion.Output]
	started        time.Time

	outputs chan fusion.Output
	sub     event.Subscription
	done    chan struct{}
}

// NewWebDaemon subscribes to ctl's outputs; Close releases the subscription.
func NewWebDaemon(config *params.WebDaemonConfig, ctl Controller) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	if ctl == nil {
		return nil, errors.New("nil fusion controller")
	}
	s := &WebDaemon{
		Config:  config,
		fusion:  ctl,
		logger:  slog.With("d", "web"),
		recent:  common.NewRingBuffer[fusion.Output](config.ReplaySize),
		started: time.Now(),
		outputs: make(chan fusion.Output, params.DefaultBufferSize),
		done:    make(chan struct{}),
	}
	s.initMelody()
	s.sub = ctl.Subscribe(s.outputs)
	go s.broadcastLoop()
	return s, nil
}

// Run serves HTTP on the configured listener until ctx is done.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *WebDaemon) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web daemon", "address", ln.Addr().String())
		errs <- server.Serve(ln)
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.melodyInstance.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close unsubscribes from the scheduler and closes websocket sessions.
func (s *WebDaemon) Close() error {
	s.sub.Unsubscribe()
	<-s.done
	if s.melodyInstance.IsClosed() {
		return nil
	}
	return s.melodyInstance.Close()
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	// Handle websocket.
	router.Path("/socat").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/last").HandlerFunc(s.handleLast).Methods(http.MethodGet)
	apiJSONRoutes.Path("/recent").HandlerFunc(s.handleRecent).Methods(http.MethodGet)

	// Reading the rate is open, changing it is authenticated.
	setRate := tokenAuthenticationMiddleware(http.HandlerFunc(s.handleSetRate))
	apiJSONRoutes.Path("/rate").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			s.handleGetRate(w, r)
			return
		}
		setRate.ServeHTTP(w, r)
	}).Methods(http.MethodGet, http.MethodPut, http.MethodPost)

	return router
}
