package server

import (
	"context"
	"net"
	"net/http"

	"github.com/go-kit/kit/metrics/provider"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricNamespace = "webterm"
	metricSubsystem = "webtermd"
)

func newMetricsProvider(metricAddr string) provider.Provider {
	if metricAddr == "" {
		return provider.NewDiscardProvider()
	}
	return provider.NewPrometheusProvider(metricNamespace, metricSubsystem)
}

// metricServer exposes the Prometheus registry on its own listener.
type metricServer struct {
	server *http.Server
}

func newMetricServer() *metricServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &metricServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

func (m *metricServer) Serve(ln net.Listener) error {
	return m.server.Serve(ln)
}

func (m *metricServer) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
