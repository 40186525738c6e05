package server

import (
	"context"
	"fmt"

	"github.com/kumarabd/gokit/logger"
	"github.com/kumarabd/ingestion-plane/logcontract/internal/metrics"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/contract"
)

// Checker runs a contract check over a corpus of lines
type Checker interface {
	Run(ctx context.Context, lines []string) (*contract.Report, error)
}

// Config contains configuration for all server types
type Config struct {
	HTTP *HTTPConfig `json:"http" yaml:"http"`
}

type Handler struct {
	HTTP   *HTTP
	config *Config
	log    *logger.Handler
}

// New creates a new server handler. l and m may be nil; without m there is no
// /metrics route.
func New(l *logger.Handler, m *metrics.Handler, serverConfig *Config, checker Checker) (*Handler, error) {
	if serverConfig == nil || serverConfig.HTTP == nil {
		return nil, fmt.Errorf("http server config cannot be nil")
	}
	if checker == nil {
		return nil, fmt.Errorf("checker cannot be nil")
	}

	return &Handler{
		HTTP:   NewHTTP(serverConfig.HTTP, checker, l, m),
		config: serverConfig,
		log:    l,
	}, nil
}

// Start starts the server; ch receives a value once it has stopped
func (h *Handler) Start(ch chan struct{}) {
	go func() {
		if err := h.HTTP.Start(); err != nil && h.log != nil {
			h.log.Error().Err(err).Msg("HTTP server failed")
		}
		ch <- struct{}{}
	}()
}

// Stop shuts the server down gracefully
func (h *Handler) Stop(ctx context.Context) error {
	return h.HTTP.Stop(ctx)
}
