// Package daemon runs the long-lived studio process: the local HTTP API and
// a periodic credit re-poll, with configuration loaded from TOML.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/adstudio/studio/internal/api"
	"github.com/adstudio/studio/internal/app/studio"
	"github.com/adstudio/studio/internal/infra/logging"
)

const shutdownGrace = 10 * time.Second

// Options converts the configuration into composition-root options.
func (c Config) Options(log *logrus.Logger) (studio.Options, error) {
	dedup, err := c.DedupWindow()
	if err != nil {
		return studio.Options{}, err
	}
	return studio.Options{
		BackendURL:   c.Backend.BaseURL,
		Driver:       c.DataStore.Driver,
		StoreURL:     c.DataStore.URL,
		StoreKey:     c.DataStore.APIKey,
		SQLiteDir:    c.DataStore.SQLiteDir,
		LedgerWindow: c.Ledger.Window,
		CheckoutURL:  c.Checkout.URL,
		DedupWindow:  dedup,
		MaxItems:     c.Notifications.MaxItems,
		UserID:       c.Session.UserID,
		Logger:       log,
	}, nil
}

// Daemon owns the app, the HTTP server and the scheduler.
type Daemon struct {
	cfg   Config
	app   *studio.App
	log   *logrus.Entry
	sched *cron.Cron
	srv   *http.Server
}

// New builds the app and the HTTP server from cfg.
func New(ctx context.Context, cfg Config, log *logrus.Logger) (*Daemon, error) {
	opts, err := cfg.Options(log)
	if err != nil {
		return nil, err
	}
	app, err := studio.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		cfg:   cfg,
		app:   app,
		log:   logging.Component(log, "daemon"),
		sched: cron.New(),
	}

	server := api.NewServer(app, logging.Component(log, "api"))
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}
	d.srv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := d.schedule(); err != nil {
		app.Close()
		return nil, err
	}
	return d, nil
}

// App exposes the wired components.
func (d *Daemon) App() *studio.App { return d.app }

// schedule registers the periodic ledger re-poll. A zero interval disables
// it.
func (d *Daemon) schedule() error {
	every, err := d.cfg.RefreshInterval()
	if err != nil || every == 0 {
		return err
	}
	_, err = d.sched.AddFunc(fmt.Sprintf("@every %s", every), d.repoll)
	if err != nil {
		return fmt.Errorf("schedule credit refresh: %w", err)
	}
	return nil
}

func (d *Daemon) repoll() {
	if !d.app.Session.Authenticated() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := d.app.Ledger.Refresh(ctx); err != nil {
		d.log.WithError(err).Debug("scheduled credit refresh failed")
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.srv.Addr)
	if err != nil {
		d.app.Close()
		return fmt.Errorf("listen %s: %w", d.srv.Addr, err)
	}
	return d.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	defer d.app.Close()

	d.app.Start(ctx)
	d.sched.Start()

	errCh := make(chan error, 1)
	go func() {
		d.log.WithField("addr", ln.Addr().String()).Info("studio API listening")
		if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		<-d.sched.Stop().Done()
		return err
	}

	d.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	<-d.sched.Stop().Done()
	if err := d.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
