package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/plinko-sync/internal/config"
	"github.com/DoyleJ11/plinko-sync/internal/console"
	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/httpapi"
	"github.com/DoyleJ11/plinko-sync/internal/lobby"
	"github.com/DoyleJ11/plinko-sync/internal/logging"
	"github.com/DoyleJ11/plinko-sync/internal/session"
	"github.com/DoyleJ11/plinko-sync/internal/transport"
	"github.com/DoyleJ11/plinko-sync/internal/ws"
)

func main() {
	cfg := config.Load()
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "local, host or join")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "address for the state feed, e.g. :8080 (empty disables it)")
	flag.IntVar(&cfg.DefaultBet, "bet", cfg.DefaultBet, "bet used when drop is typed without one")
	flag.Parse()

	log, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("plinko exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	role, ok := session.ParseRole(cfg.Mode)
	if !ok {
		return fmt.Errorf("unknown mode %q (want local, host or join)", cfg.Mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(role)
	var neg *session.Negotiator
	if sess.IsMultiplayer() {
		dialer := &transport.PionDialer{ICEServers: cfg.ICEServers, Label: cfg.ChannelLabel, Log: log}
		neg = session.NewNegotiator(sess, dialer, log)
	}
	l := lobby.NewLobby(ctx, sess, engine.New(engine.Options{}), lobby.Options{
		Negotiator:   neg,
		TickInterval: cfg.TickInterval(),
		Logger:       log,
	})

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: httpapi.SetupRoutes(l, ws.Options{
				DefaultBet:     cfg.DefaultBet,
				OriginPatterns: cfg.OriginPatterns,
				Logger:         log,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		c := &console.Console{
			In:               os.Stdin,
			Out:              os.Stdout,
			Lobby:            l,
			Session:          sess,
			Negotiator:       neg,
			DefaultBet:       cfg.DefaultBet,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Log:              log,
		}
		err := c.Run(gctx)
		// Leaving the console ends the process: say goodbye to the peer first.
		for _, m := range []lobby.Msg{lobby.Disconnect{}, lobby.Shutdown{}} {
			select {
			case l.Inbox() <- m:
			case <-l.Done():
			}
		}
		stop()
		return err
	})

	return g.Wait()
}
