package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
)

// HealthFunc reports the state of the last polling cycle. A nil health func
// is always healthy.
type HealthFunc func() error

func CreateMetricsServer(conf config.Metrics, gatherer prometheus.Gatherer, health HealthFunc) *http.Server {
	ret := &http.Server{Addr: fmt.Sprintf(":%v", conf.Port)}
	ret.SetKeepAlivesEnabled(true)
	ret.IdleTimeout = 5 * time.Second
	ret.ReadHeaderTimeout = 5 * time.Second

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/healthz", healthHandler(health))

	ret.Handler = router

	return ret
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if health != nil {
			err := health()
			if err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(err.Error()))

				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
