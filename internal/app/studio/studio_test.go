package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adstudio/studio/internal/app/invocation"
	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/gateway"
	"github.com/adstudio/studio/internal/infra/logging"
)

// backend is an in-memory generation backend.
type backend struct {
	mu       sync.Mutex
	calendar json.RawMessage
	saves    int
	deducted int64
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var body map[string]json.RawMessage
	if r.Method == http.MethodPost {
		json.NewDecoder(r.Body).Decode(&body)
	}
	switch r.URL.Path {
	case "/tools":
		if string(body["toolId"]) == `"content-planner"` {
			io.WriteString(w, `{"success":true,"data":{"calendar":[{"day":2,"posts":[{"content":"Launch","type":"promo","format":"reel"}]},{"day":9,"stories":[{"content":"BTS"}]}],"period":14}}`)
			return
		}
		io.WriteString(w, `{"success":true,"data":{"text":"Fresh roast, every morning."},"generation_id":"g-1"}`)
	case "/generate-ad":
		io.WriteString(w, `{"success":true,"data":{"text":"Sip the art."}}`)
	case "/deduct-credits":
		var n int64
		json.Unmarshal(body["credits_amount"], &n)
		b.deducted += n
		io.WriteString(w, `{"ok":true}`)
	case "/save-result":
		b.saves++
		fmt.Fprintf(w, `{"success":true,"generation_id":"saved-%d"}`, b.saves)
	case "/saved-results":
		io.WriteString(w, `{"success":true,"data":[]}`)
	case "/calendar":
		if r.Method == http.MethodPost {
			b.calendar = body["calendar"]
			io.WriteString(w, `{"success":true}`)
			return
		}
		cal := b.calendar
		if cal == nil {
			cal = json.RawMessage("null")
		}
		io.WriteString(w, `{"success":true,"calendar":`+string(cal)+`}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestApp(t *testing.T, userID string) (*App, *backend) {
	t.Helper()
	be := &backend{}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	app, err := New(context.Background(), Options{
		BackendURL: srv.URL,
		Driver:     DriverSQLite,
		SQLiteDir:  t.TempDir(),
		UserID:     userID,
		Logger:     logging.New("error", "text"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app, be
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Options{BackendURL: "http://x", Driver: "mongo"})
	assert.Error(t, err)
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(context.Background(), Options{Driver: DriverSQLite, SQLiteDir: t.TempDir()})
	assert.Error(t, err)
}

func TestHTTPClients(t *testing.T) {
	assert.Zero(t, generationClient(nil).Timeout, "generation calls are not time-bounded")
	assert.Equal(t, storeTimeout, storeClient(nil).Timeout)

	custom := &http.Client{Timeout: time.Second}
	assert.Same(t, custom, generationClient(custom))
	assert.Same(t, custom, storeClient(custom))
}

func TestPaidGenerationDeductsAndReconciles(t *testing.T) {
	app, be := newTestApp(t, "u1")
	ctx := context.Background()

	bal, err := app.Ledger.GrantTestCredits(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), bal.Balance)

	st, err := app.Invocations.Submit(ctx, domain.ToolCaptionWriter, domain.Inputs{"topic": "coffee"})
	require.NoError(t, err)
	require.NotNil(t, st.SavedGenerationID)
	assert.Equal(t, "g-1", *st.SavedGenerationID)
	assert.Equal(t, int64(1), be.deducted)

	assert.Equal(t, int64(9), app.Ledger.Balance().Balance)
	assert.Equal(t, int64(1), app.Ledger.Balance().TotalSpent)
}

// cancelAfterGenerate cancels the caller's context once the backend has
// produced a result, as a client disconnecting mid-request would.
type cancelAfterGenerate struct {
	gw     *gateway.Client
	cancel context.CancelFunc
}

func (c cancelAfterGenerate) Generate(ctx context.Context, toolID domain.ToolID, inputs domain.Inputs, userID string) (*gateway.Generation, error) {
	defer c.cancel()
	return c.gw.Generate(ctx, toolID, inputs, userID)
}

func (c cancelAfterGenerate) GenerateAd(ctx context.Context, req gateway.AdRequest, userID string) (*gateway.Generation, error) {
	defer c.cancel()
	return c.gw.GenerateAd(ctx, req, userID)
}

func TestDisconnectedCallerIsStillCharged(t *testing.T) {
	app, be := newTestApp(t, "u1")
	_, err := app.Ledger.GrantTestCredits(context.Background(), 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := invocation.New(invocation.Config{
		Backend:  cancelAfterGenerate{gw: app.Gateway, cancel: cancel},
		Credits:  app.Ledger,
		Saver:    app.Results,
		Identity: app.Session,
	})

	st, err := m.Submit(ctx, domain.ToolCaptionWriter, domain.Inputs{"topic": "coffee"})
	require.NoError(t, err)
	assert.NotNil(t, st.Result)
	assert.Equal(t, int64(1), be.deducted)
	assert.Equal(t, int64(9), app.Ledger.Balance().Balance)
}

func TestInsufficientCreditsNeverReachesBackend(t *testing.T) {
	app, be := newTestApp(t, "u1")
	_, err := app.Ledger.Refresh(context.Background())
	require.NoError(t, err)

	_, err = app.Invocations.Submit(context.Background(), domain.ToolContentPlanner, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.Zero(t, be.deducted)
	assert.NotEmpty(t, app.Bus.Recent(0))
}

func TestContentPlannerRebuildsCalendar(t *testing.T) {
	app, _ := newTestApp(t, "u1")
	ctx := context.Background()
	_, err := app.Ledger.GrantTestCredits(ctx, 20)
	require.NoError(t, err)

	_, err = app.Invocations.Submit(ctx, domain.ToolContentPlanner, domain.Inputs{"duration": 14})
	require.NoError(t, err)

	ix := app.Calendar.Index()
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 14, ix.MaxDay())
	_, ok := ix.Day(5)
	assert.False(t, ok, "days without content are absent")

	// A fresh load reads back the persisted calendar.
	loaded, err := app.Calendar.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestSaveMirrorsLocally(t *testing.T) {
	app, _ := newTestApp(t, "u1")
	ctx := context.Background()
	app.Ledger.GrantTestCredits(ctx, 5)

	_, err := app.Invocations.Submit(ctx, domain.ToolCaptionWriter, domain.Inputs{"topic": "coffee"})
	require.NoError(t, err)
	id1, err := app.Invocations.Save(ctx, domain.ToolCaptionWriter)
	require.NoError(t, err)
	id2, err := app.Invocations.Save(ctx, domain.ToolCaptionWriter)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	snap, err := app.Profiles.Reload(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Generations)
	assert.NotEmpty(t, snap.Activity)
	assert.Equal(t, "u1", snap.Profile.UserID)
}

func TestStart_SignedOutIsNoop(t *testing.T) {
	app, _ := newTestApp(t, "")
	app.Start(context.Background())
	assert.False(t, app.Ledger.Snapshot().Refreshed)
}
