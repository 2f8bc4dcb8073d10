// Package studio wires the orchestration layer together: gateway, data
// store, notification bus, ledger, result store, calendar index, invocation
// manager and profile reload.
package studio

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adstudio/studio/internal/app/calendar"
	"github.com/adstudio/studio/internal/app/invocation"
	"github.com/adstudio/studio/internal/app/ledger"
	"github.com/adstudio/studio/internal/app/notify"
	"github.com/adstudio/studio/internal/app/profile"
	"github.com/adstudio/studio/internal/app/results"
	"github.com/adstudio/studio/internal/app/session"
	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/gateway"
	"github.com/adstudio/studio/internal/infra/logging"
	"github.com/adstudio/studio/internal/infra/sqlite"
	"github.com/adstudio/studio/internal/infra/supabase"
)

// Data store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
)

// storeTimeout bounds data-store calls made with the default client.
const storeTimeout = 30 * time.Second

// Options configures an App. HTTPClient, when set, is used for both the
// backend and the data store.
type Options struct {
	BackendURL string
	HTTPClient *http.Client

	Driver    string
	StoreURL  string
	StoreKey  string
	SQLiteDir string
	// Store overrides the driver selection when set.
	Store domain.DataStore

	LedgerWindow int
	CheckoutURL  string

	DedupWindow time.Duration
	MaxItems    int

	UserID string
	Logger *logrus.Logger
}

// App holds every component of the layer.
type App struct {
	Session     *session.Session
	Bus         *notify.Bus
	Gateway     *gateway.Client
	Store       domain.DataStore
	Ledger      *ledger.Ledger
	Results     *results.Store
	Calendar    *calendar.Service
	Invocations *invocation.Manager
	Profiles    *profile.Service

	log    *logrus.Logger
	closer func() error
}

// New builds an App.
func New(ctx context.Context, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logging.New("info", "text")
	}
	gw, err := gateway.New(gateway.Config{
		BaseURL:    opts.BackendURL,
		HTTPClient: generationClient(opts.HTTPClient),
		Logger:     logging.Component(log, "gateway"),
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	app := &App{
		Session: session.New(opts.UserID),
		Gateway: gw,
		log:     log,
		closer:  func() error { return nil },
	}

	// Results and deductions go through the backend either way. With a local
	// store they are mirrored so the local ledger and counters stay coherent.
	var (
		deductor ledger.Deductor = gw
		saver    results.Backend = gw
	)
	switch {
	case opts.Store != nil:
		app.Store = opts.Store
	case opts.Driver == DriverSupabase:
		sb, err := supabase.New(supabase.Config{
			ProjectURL: opts.StoreURL,
			APIKey:     opts.StoreKey,
			HTTPClient: storeClient(opts.HTTPClient),
			Logger:     logging.Component(log, "supabase"),
		})
		if err != nil {
			return nil, fmt.Errorf("supabase: %w", err)
		}
		app.Store = sb
	case opts.Driver == DriverSQLite || opts.Driver == "":
		db, err := sqlite.Open(opts.SQLiteDir)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		app.Store = db
		app.closer = db.Close
		m := &mirror{remote: gw, local: db, log: logging.Component(log, "mirror")}
		deductor, saver = m, m
		if opts.UserID != "" {
			if err := db.UpsertProfile(ctx, domain.Profile{UserID: opts.UserID}); err != nil {
				db.Close()
				return nil, fmt.Errorf("ensure profile: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown data store driver %q", opts.Driver)
	}

	app.Bus = notify.NewBus(notify.Config{
		DedupWindow: opts.DedupWindow,
		MaxItems:    opts.MaxItems,
		Logger:      logging.Component(log, "notify"),
	})

	var checkout ledger.Checkout
	if opts.CheckoutURL != "" {
		checkout = ledger.LinkCheckout{BaseURL: opts.CheckoutURL}
	}
	app.Ledger = ledger.New(ledger.Config{
		Store:    app.Store,
		Deductor: deductor,
		Checkout: checkout,
		Identity: app.Session,
		Notifier: app.Bus,
		Window:   opts.LedgerWindow,
		Logger:   logging.Component(log, "ledger"),
	})

	app.Results = results.New(results.Config{
		Backend:  saver,
		Activity: app.Store,
		Logger:   logging.Component(log, "results"),
	})

	app.Calendar = calendar.New(calendar.Config{
		Backend:  gw,
		Notifier: app.Bus,
		Activity: app.Store,
		Logger:   logging.Component(log, "calendar"),
	})

	app.Invocations = invocation.New(invocation.Config{
		Backend:  gw,
		Credits:  app.Ledger,
		Saver:    app.Results,
		Calendar: app.Calendar,
		Activity: app.Store,
		Notifier: app.Bus,
		Identity: app.Session,
		Logger:   logging.Component(log, "invocation"),
	})
	app.Calendar.SetInvoker(app.Invocations)

	app.Profiles = profile.New(profile.Config{
		Store:    app.Store,
		Ledger:   app.Ledger,
		Identity: app.Session,
		Logger:   logging.Component(log, "profile"),
	})

	return app, nil
}

// generationClient returns the client for backend generation calls, which
// carry no client-side timeout.
func generationClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{}
}

// storeClient returns the client for data-store reads and writes.
func storeClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: storeTimeout}
}

// Logger returns the root logger.
func (a *App) Logger() *logrus.Logger { return a.log }

// Start performs the initial loads for a signed-in session. Failures are
// logged and surfaced through the notification feed, not returned.
func (a *App) Start(ctx context.Context) {
	userID := a.Session.UserID()
	if userID == "" {
		return
	}
	if _, err := a.Ledger.Refresh(ctx); err != nil {
		a.log.WithError(err).Warn("initial credit refresh failed")
	}
	if _, err := a.Calendar.Load(ctx, userID); err != nil {
		a.log.WithError(err).Warn("initial calendar load failed")
	}
}

// Close releases the data store.
func (a *App) Close() error {
	return a.closer()
}
