package bridge

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/provider"
	wmetrics "github.com/owenthereal/webterm/metrics"
)

var discardInstruments = newInstruments(nil)

type instruments struct {
	conn           wmetrics.Connection
	authRejections metrics.Counter
	launchErrors   metrics.Counter
	bytesIn        metrics.Counter
	bytesOut       metrics.Counter
	resizes        metrics.Counter
}

func newInstruments(p provider.Provider) *instruments {
	if p == nil {
		p = provider.NewDiscardProvider()
	}

	return &instruments{
		conn: wmetrics.Connection{
			Total:    p.NewCounter("bridge_connections_count"),
			Active:   p.NewGauge("bridge_active_connections_count"),
			Duration: p.NewHistogram("bridge_connection_duration_ms", 50),
		},
		authRejections: p.NewCounter("bridge_auth_rejections_count"),
		launchErrors:   p.NewCounter("bridge_launch_errors_count"),
		bytesIn:        p.NewCounter("bridge_bytes_in_count"),
		bytesOut:       p.NewCounter("bridge_bytes_out_count"),
		resizes:        p.NewCounter("bridge_resizes_count"),
	}
}
