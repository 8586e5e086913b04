// Package server exposes the process metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Borislavv/go-estimator/pkg/config"
	"github.com/VictoriaMetrics/metrics"
	"github.com/fasthttp/router"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const shutdownTimeout = 5 * time.Second

var AlreadyServingError = errors.New("metrics server is already serving")

type Server struct {
	ctx     context.Context
	cfg     *config.Metrics
	srv     *fasthttp.Server
	serving chan struct{}
}

func New(ctx context.Context, cfg *config.Metrics) *Server {
	r := router.New()
	r.GET("/metrics", handleMetrics)
	r.GET("/healthz", handleHealth)

	return &Server{
		ctx: ctx,
		cfg: cfg,
		srv: &fasthttp.Server{
			Name:         "estimator",
			Handler:      r.Handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		serving: make(chan struct{}, 1),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until ctx is done, then shuts the server down gracefully.
func (s *Server) Serve(ln net.Listener) error {
	select {
	case s.serving <- struct{}{}:
	default:
		return AlreadyServingError
	}

	go func() {
		<-s.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.ShutdownWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("[metrics] graceful shutdown failed")
		}
	}()

	log.Info().Msgf("[metrics] serving on %s", ln.Addr())
	if err := s.srv.Serve(ln); err != nil {
		return fmt.Errorf("serve metrics: %w", err)
	}
	log.Info().Msg("[metrics] stopped")
	return nil
}

func handleMetrics(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/plain; version=0.0.4; charset=utf-8")
	metrics.WritePrometheus(ctx, true)
}

func handleHealth(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString("ok")
}
