// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsServer serves /metrics for the lifetime of a simulation.
type metricsServer struct {
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// startMetrics listens on address and serves collector alongside the
// Go runtime collectors.
func startMetrics(address string, collector prometheus.Collector, logger *slog.Logger) (*metricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector, collectors.NewGoCollector())

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metrics := &metricsServer{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: listener,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(metrics.done)
		if err := metrics.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())
	return metrics, nil
}

// Addr returns the bound address.
func (m *metricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Shutdown stops the server and waits for it to exit.
func (m *metricsServer) Shutdown(ctx context.Context) error {
	err := m.server.Shutdown(ctx)
	<-m.done
	return err
}
