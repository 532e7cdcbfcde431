package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"menuca.ca/restotool/internal/api"
	"menuca.ca/restotool/internal/assets"
	"menuca.ca/restotool/internal/bridge"
	"menuca.ca/restotool/internal/config"
	"menuca.ca/restotool/internal/link"
	"menuca.ca/restotool/internal/logger"
	"menuca.ca/restotool/internal/printer"
	"menuca.ca/restotool/internal/render"
	"menuca.ca/restotool/internal/server"
	"menuca.ca/restotool/internal/store"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "path to restotool.toml")
	listen := pflag.String("listen", "", "address to listen on, overrides server.listen")
	pflag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Exiting", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store.DSN, log.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	t, err := newTransport(cfg.Link, log.Named("link"))
	if err != nil {
		return err
	}
	manager := link.NewManager(link.Config{
		Attempts:        cfg.Link.Attempts,
		RetryDelay:      cfg.Link.RetryDelay,
		WriteTimeout:    cfg.Link.WriteTimeout,
		ReconnectOnSend: cfg.Link.ReconnectOnSend,
	}, t.dialer, t.radio, t.directory, st, log.Named("link"))
	defer manager.Close()

	if err := manager.FindPrinter(ctx); err != nil {
		log.Warn("Couldn't restore printer", zap.Error(err))
	}

	text, err := render.NewTextRenderer(cfg.Render.Font)
	if err != nil {
		return err
	}
	text.Size = cfg.Render.FontSize

	html := render.NewHTMLRenderer(render.HTMLConfig{
		ExecPath:  cfg.Render.ChromePath,
		RemoteURL: cfg.Render.ChromeURL,
		Timeout:   cfg.Render.Timeout,
		NoSandbox: cfg.Render.NoSandbox,
		Logger:    log.Named("render"),
	})
	defer html.Close()

	svc := printer.NewService(manager, printer.NewBuilder(cfg.Printer.PaperWidth),
		printer.WithImageSource(assets.NewLibrary(cfg.Assets.Dir, log.Named("assets"))),
		printer.WithTextRenderer(text),
		printer.WithHTMLRenderer(html),
		printer.WithLogger(log.Named("printer")),
	)
	defer svc.Close()

	b := bridge.New(cfg.Bridge.Workers, log.Named("bridge"))
	defer b.Close()

	srv := server.New(&api.Interface{
		Printers:    manager,
		Printing:    svc,
		Preferences: st,
		Resolver:    net.DefaultResolver,
		Bridge:      b,
		Log:         log.Named("api"),
		HasRadio:    t.hasRadio,
	}, log.Named("server"))
	srv.StaticDir = cfg.Server.StaticDir
	srv.AllowedOrigins = cfg.Server.AllowedOrigins
	manager.OnStateChange(srv.BroadcastLinkState)

	hs := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(cfg.Server.Path),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- hs.ListenAndServe()
	}()
	log.Info("Listening",
		zap.String("addr", cfg.Server.Listen),
		zap.String("path", cfg.Server.Path),
		zap.String("transport", cfg.Link.Transport),
	)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("Couldn't serve:\n%w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
