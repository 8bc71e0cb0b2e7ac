package node

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NethermindEth/feedermirror/gateway"
	"github.com/NethermindEth/feedermirror/service"
	"github.com/NethermindEth/feedermirror/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sourcegraph/conc"
)

type httpService struct {
	srv *http.Server
	log utils.SimpleLogger
}

var _ service.Service = (*httpService)(nil)

// Run serves until ctx is cancelled, then shuts the listener down
// gracefully so in-flight requests finish.
func (h *httpService) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	var wg conc.WaitGroup
	defer wg.Wait()
	wg.Go(func() {
		h.log.Infow("HTTP server listening", "addr", h.srv.Addr)
		if err := h.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		return h.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func makeReadAPI(addr string, handler *gateway.Handler, log utils.SimpleLogger) *httpService {
	return &httpService{
		srv: &http.Server{
			Addr:    addr,
			Handler: cors.Default().Handler(handler.Router()),
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		log: log,
	}
}

func makeMetrics(addr string) *httpService {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer,
		promhttp.HandlerOpts{Registry: prometheus.DefaultRegisterer}))
	return &httpService{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		log: utils.NewNopZapLogger(),
	}
}
