package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/taproom-client/internal/twin"
)

func runTwin(ctx context.Context, e *env, args []string) error {
	fs := newFlags("twin")
	addr := fs.String("addr", "127.0.0.1:8089", "listen address")
	latency := fs.Duration("latency", 0, "delay added to every response")
	secret := fs.String("secret", "", "token signing secret (random when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	options := []twin.Option{}
	if *secret != "" {
		options = append(options, twin.WithSecret([]byte(*secret)))
	}
	tw, err := twin.New(options...)
	if err != nil {
		return err
	}
	tw.SetLatency(*latency)

	server := &http.Server{Addr: *addr, Handler: tw, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() {
		errs <- listenAndServe(server)
	}()
	fmt.Fprintf(e.out, "Twin listening on http://%s (member %s / %s)\n", *addr, twin.DemoUsername, twin.DemoPassword)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("twin listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
