// Package metrics implements the Prometheus metrics service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/puppetmaster-fpga/pm-host/common/service"
)

// CfgMetricsAddr configures the address the metrics server listens on.
const CfgMetricsAddr = "metrics.address"

// Flags has the metrics flags.
var Flags = flag.NewFlagSet("", flag.ContinueOnError)

type metricsService struct {
	*service.BaseBackgroundService

	server *http.Server
}

// Start starts the metrics server.
func (s *metricsService) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Error("metrics server terminated",
				"err", err,
			)
		}
	}()
	return nil
}

// Stop halts the metrics server.
func (s *metricsService) Stop() {
	_ = s.server.Close()
	s.BaseBackgroundService.Stop()
}

// Enabled returns true if a metrics server address is configured.
func Enabled() bool {
	return viper.GetString(CfgMetricsAddr) != ""
}

// New creates a new metrics service.
func New() service.BackgroundService {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &metricsService{
		BaseBackgroundService: service.NewBaseBackgroundService("metrics"),
		server: &http.Server{
			Addr:    viper.GetString(CfgMetricsAddr),
			Handler: mux,
		},
	}
}

func init() {
	Flags.String(CfgMetricsAddr, "", "metrics server address (empty to disable)")
	_ = viper.BindPFlags(Flags)
}
