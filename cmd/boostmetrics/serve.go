package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cloudboost-metrics/internal/api"
	"cloudboost-metrics/internal/ingestion"
	"cloudboost-metrics/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API and consume records from Kafka if configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr = serveAddr
		}
		log := logging.Component("serve")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		done := make(chan struct{})
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				log.Info("shutdown requested", "signal", sig.String())
				cancel()
			case <-done:
				return
			}

			// Second signal or a stuck shutdown forces exit.
			select {
			case sig := <-sigCh:
				log.Warn("forcing exit", "signal", sig.String())
				os.Exit(1)
			case <-time.After(cfg.HTTP.ShutdownTimeout + 20*time.Second):
				log.Error("graceful shutdown timed out, forcing exit")
				os.Exit(1)
			case <-done:
			}
		}()

		g, gctx := errgroup.WithContext(ctx)

		server := api.NewServer(a.service, api.Options{
			Addr:            cfg.HTTP.Addr,
			ReadTimeout:     cfg.HTTP.ReadTimeout,
			WriteTimeout:    cfg.HTTP.WriteTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
			MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		})
		g.Go(func() error { return server.Start(gctx) })

		if cfg.Kafka.Enabled {
			consumer, err := ingestion.NewKafkaConsumer(ingestion.KafkaConfig{
				Brokers:    cfg.Kafka.Brokers,
				Topic:      cfg.Kafka.Topic,
				GroupID:    cfg.Kafka.GroupID,
				MaxBackoff: cfg.Kafka.MaxBackoff,
			}, a.service)
			if err != nil {
				return err
			}
			g.Go(func() error { return consumer.Run(gctx) })
		}

		err = g.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("server stopped with error", "error", err)
			return err
		}
		log.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
}
