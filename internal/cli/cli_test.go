package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adstudio/studio/internal/domain"
)

func TestParseInputs(t *testing.T) {
	in, err := parseInputs([]string{"topic=cold brew", "duration=14", "shorts=true", "tone = warm=ish"})
	require.NoError(t, err)
	assert.Equal(t, domain.Inputs{
		"topic":    "cold brew",
		"duration": 14,
		"shorts":   true,
		"tone":     " warm=ish",
	}, in)

	_, err = parseInputs([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseInputs([]string{"=x"})
	assert.Error(t, err)
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		configPath, userFlag, jsonOutput = "", "", false
	})
	return rootCmd.ExecuteContext(context.Background())
}

func setupEnv(t *testing.T) {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tools":
			io.WriteString(w, `{"success":true,"data":{"tags":["#coffee","#latte"]}}`)
		case "/deduct-credits":
			io.WriteString(w, `{"ok":true}`)
		case "/calendar":
			io.WriteString(w, `{"success":true,"calendar":[{"day":2,"posts":[{"content":"Roast day","type":"promo","format":"reel"}]}]}`)
		case "/saved-results":
			io.WriteString(w, `{"success":true,"data":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	home := t.TempDir()
	t.Setenv("STUDIO_HOME", home)
	t.Setenv("STUDIO_BACKEND_URL", backend.URL)
	t.Setenv("STUDIO_USER_ID", "u1")
}

func TestCredits_GrantThenRunTool(t *testing.T) {
	setupEnv(t)
	require.NoError(t, runCLI(t, "credits", "grant", "3"))
	require.NoError(t, runCLI(t, "tool", "run", "hashtag-generator", "-i", "topic=coffee"))
	require.NoError(t, runCLI(t, "--json", "credits", "show", "--history"))
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) ([]byte, error) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	runErr := fn()
	os.Stdout = orig
	w.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.Bytes(), runErr
}

func TestCreditsShow_History(t *testing.T) {
	setupEnv(t)
	require.NoError(t, runCLI(t, "credits", "grant", "7"))

	out, err := captureStdout(t, func() error {
		return runCLI(t, "--json", "credits", "show", "--history")
	})
	require.NoError(t, err)
	var got struct {
		Balance int64                      `json:"balance"`
		History []domain.CreditTransaction `json:"history"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, int64(7), got.Balance)
	require.Len(t, got.History, 1)
	assert.Equal(t, domain.TxPurchase, got.History[0].Type)
	assert.Equal(t, int64(7), got.History[0].Amount)

	jsonOutput = false
	out, err = captureStdout(t, func() error {
		return runCLI(t, "credits", "show", "--history")
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "Balance:  7")
	assert.Contains(t, string(out), "purchase")
}

func TestToolRun_InsufficientCredits(t *testing.T) {
	setupEnv(t)
	err := runCLI(t, "tool", "run", "content-planner")
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
}

func TestToolRun_UnknownTool(t *testing.T) {
	setupEnv(t)
	err := runCLI(t, "tool", "run", "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
}

func TestCalendarCommands(t *testing.T) {
	setupEnv(t)
	require.NoError(t, runCLI(t, "calendar", "show"))
	require.NoError(t, runCLI(t, "calendar", "day", "1"))
	require.NoError(t, runCLI(t, "calendar", "video", "2", "--prefill"))

	err := runCLI(t, "calendar", "day", "9")
	assert.ErrorIs(t, err, domain.ErrDayOutOfRange)
	err = runCLI(t, "calendar", "video", "2", "--kind", "story", "--prefill")
	assert.ErrorIs(t, err, domain.ErrNoEntry)
}

func TestResultsList(t *testing.T) {
	setupEnv(t)
	require.NoError(t, runCLI(t, "results", "list", "caption-writer"))
	assert.Error(t, runCLI(t, "results", "list", "nope"))
}

func TestRequiresUser(t *testing.T) {
	setupEnv(t)
	t.Setenv("STUDIO_USER_ID", "")
	assert.Error(t, runCLI(t, "credits", "show"))
}
