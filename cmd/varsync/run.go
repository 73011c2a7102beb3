package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/varsync/internal/appconfig"
	"pkt.systems/varsync/internal/bookmarks"
	"pkt.systems/varsync/internal/console"
	"pkt.systems/varsync/internal/eventbus"
	"pkt.systems/varsync/internal/logx"
	"pkt.systems/varsync/internal/metrics"
	"pkt.systems/varsync/internal/mpvipc"
	"pkt.systems/varsync/internal/session"
	"pkt.systems/varsync/internal/skip"
	"pkt.systems/varsync/internal/statusapi"
	"pkt.systems/varsync/internal/transport"
	"pkt.systems/varsync/internal/version"
	"pkt.systems/varsync/schema"
)

var errPlayerGone = errors.New("mpv connection closed")

var _ controller = (*session.Session)(nil)

func newRunCmd() *cobra.Command {
	var cfgPath string
	var sessionID string
	var statusAddr string
	var mpvSocket string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Attach to mpv and sync it with the varchive server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if sessionID != "" {
				cfg.Session.ID = sessionID
			}
			if statusAddr != "" {
				cfg.Status.Addr = statusAddr
			}
			if mpvSocket != "" {
				cfg.MPV.Socket = mpvSocket
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session id (random when empty)")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve /metrics, /healthz and /status on this address")
	cmd.Flags().StringVar(&mpvSocket, "mpv-socket", "", "mpv --input-ipc-server socket path")
	return cmd
}

func runSession(ctx context.Context, cfg appconfig.Config) error {
	id := schema.SessionID(cfg.Session.ID)
	if id == "" {
		id = session.NewID()
	}
	serverURL := cfg.ServerURL(string(id))
	base := pslog.Ctx(ctx)
	logger := logx.WithSession(ctx, id)
	ctx = logx.ContextWithSessionLogger(ctx, logger, id)

	player, err := mpvipc.Dial(ctx, mpvipc.Config{
		SocketPath:     cfg.MPV.Socket,
		RequestTimeout: appconfig.Millis(cfg.MPV.RequestTimeoutMS),
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = player.Close() }()

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	ws := transport.NewWebSocket(transport.WebSocketConfig{
		URL:                serverURL,
		HandshakeTimeout:   appconfig.Millis(cfg.Session.ConnectTimeoutMS),
		InsecureSkipVerify: cfg.Server.InsecureSkipVerify,
		Header:             header,
	}, logger)
	defer func() { _ = ws.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bus := eventbus.New(logger)

	sess, err := session.New(sessionConfig(cfg, id, serverURL), session.Deps{
		Transport: ws,
		Player:    player,
		UI:        console.New(logger),
		Bus:       bus,
		Metrics:   metrics.New(registry),
		Logger:    base,
	})
	if err != nil {
		return err
	}

	logger.Info("varsync starting", "server", serverURL, "mpv_socket", cfg.MPV.Socket, "version", version.Current())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(gctx)
	})
	g.Go(func() error {
		if err := sess.Connect(); err != nil {
			return err
		}
		return followPlayer(gctx, sess, player, player.Events(), logger)
	})
	g.Go(func() error {
		return logPluginEvents(gctx, bus, id, logger)
	})
	if cfg.Status.Addr != "" {
		handler := statusapi.Handler(statusapi.Config{Gatherer: registry, Status: sess.Status})
		g.Go(func() error {
			return statusapi.ListenAndServe(gctx, cfg.Status.Addr, handler)
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("varsync stopped")
	return err
}

// followPlayer rebinds the session whenever mpv opens another file and runs
// the operations requested through script messages.
func followPlayer(ctx context.Context, ctl controller, player positioner, events <-chan mpvipc.Event, logger pslog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errPlayerGone
			}
			var err error
			switch ev.Name {
			case "file-loaded":
				logger.Debug("player file loaded")
				if err = ctl.FileChanged(); err == nil {
					err = ctl.FetchBookmarks()
				}
			case mpvipc.EventClientMessage:
				err = handleScriptMessage(ctl, player, ev.Args, logger)
			default:
				continue
			}
			switch {
			case err == nil:
			case errors.Is(err, schema.ErrSessionClosed):
				return err
			case errors.Is(err, schema.ErrNotConnected):
				logger.Info("not connected to varchive server", "event", ev.Name, "args", strings.Join(ev.Args, " "))
			default:
				logger.Warn("player request failed", "event", ev.Name, "args", strings.Join(ev.Args, " "), "err", err)
			}
		}
	}
}

// logPluginEvents stands in for extension hooks: every plugin event and
// connection change of the session is logged.
func logPluginEvents(ctx context.Context, bus *eventbus.Bus, id schema.SessionID, logger pslog.Logger) error {
	events, cancel := bus.Subscribe(id)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev.Type {
			case schema.EventPlugin:
				logger.Info("plugin event", "event", ev.Plugin.Event, "meta_filename", ev.Plugin.MetaFilename)
			case schema.EventState:
				logger.Debug("connection state", "state", ev.State.String())
			}
		}
	}
}

func sessionConfig(cfg appconfig.Config, id schema.SessionID, serverURL string) session.Config {
	return session.Config{
		ID:                id,
		ServerURL:         serverURL,
		ConnectTimeout:    appconfig.Millis(cfg.Session.ConnectTimeoutMS),
		RetryMaxInterval:  appconfig.Millis(cfg.Reconnect.MaxIntervalMS),
		RetryMultiplier:   cfg.Reconnect.Multiplier,
		RetryJitter:       cfg.Reconnect.Jitter,
		ReportInterval:    appconfig.Millis(cfg.Session.ReportIntervalMS),
		KeepaliveInterval: appconfig.Millis(cfg.Session.KeepaliveIntervalMS),
		SeekPollInterval:  appconfig.Millis(cfg.Seek.PollIntervalMS),
		SeekMaxWait:       appconfig.Millis(cfg.Seek.MaxWaitMS),
		Bookmarks: bookmarks.Config{
			InsertEpsilon: cfg.Bookmarks.InsertEpsilon,
			RemoveEpsilon: cfg.Bookmarks.RemoveEpsilon,
		},
		Skip: skip.Config{
			MaxHistory:    cfg.Skip.MaxHistory,
			SkipThreshold: cfg.Skip.Threshold,
			PollInterval:  appconfig.Millis(cfg.Skip.PollIntervalMS),
			MaxSeekWait:   appconfig.Millis(cfg.Skip.MaxWaitMS),
		},
	}
}
