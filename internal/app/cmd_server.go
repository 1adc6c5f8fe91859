// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCmdServer(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.config.Server.Addr
			}
			logger := a.logger.WithField("cmd", "server")
			logger.WithField("v", Version).Info("Starting server...")
			return doServer(logger, a, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, default is server.addr from the configuration")
	return cmd
}

func doServer(logger logrus.FieldLogger, a *app, addr string) error {
	p, err := a.pipeline(logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := newServer(logger, p, a.Geocoder, registry, registry, serverOptions{
		AllowedOrigins: a.config.Server.AllowedOrigins,
		MaxUploadSize:  a.config.Server.MaxUploadSize,
	})

	var g run.Group
	{
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		logger.WithField("addr", ln.Addr().String()).Info("HTTP server listening")

		srv := &http.Server{
			Handler:           s,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Add(func() error {
			return srv.Serve(ln)
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.WithError(err).Warn("Server shutdown")
			}
		})
	}
	{
		cancel := make(chan struct{})

		g.Add(func() error {
			err := interrupt(cancel)
			logger.Warn("Shutting down...")
			return err
		}, func(error) {
			close(cancel)
		})
	}

	return g.Run()
}

func interrupt(cancel <-chan struct{}) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	select {
	case sig := <-c:
		return errors.Wrap(context.Canceled, fmt.Sprintf("received signal %s", sig))
	case <-cancel:
		return errors.New("canceled")
	}
}
