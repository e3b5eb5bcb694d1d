package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/impactview/internal/datasource"
	"github.com/vanderheijden86/impactview/pkg/config"
	"github.com/vanderheijden86/impactview/pkg/model"
	"github.com/vanderheijden86/impactview/pkg/testutil"
)

const analyzeBody = `{
  "graphs": [{
    "nodes": [{"id": "auth", "critical": true}, {"id": "billing"}],
    "links": [{"source": "auth", "target": "billing", "critical": true}]
  }],
  "testPlan": {"title": "Checkout", "testPlan": "# Plan\n- [ ] pay"},
  "promptMessage": "Checkout touches billing.",
  "repoName": "shop"
}`

// setupCLI isolates config and state and returns a config file pointing
// at url.
func setupCLI(t *testing.T, url string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("IMPACTVIEW_SESSION_SCOPE", "test-"+t.Name())
	t.Setenv("IMPACTVIEW_ANALYZE_URL", "")
	t.Setenv("IMPACTVIEW_CHAT_URL", "")
	t.Setenv("IMPACTVIEW_NATS_URL", "")

	cfg := config.DefaultConfig()
	cfg.Backend.AnalyzeURL = url
	cfg.Backend.RateLimit = 0
	cfg.Export.Dir = filepath.Join(dir, "out")
	cfg.Export.SettleDelay = 0
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.SaveTo(cfg, path))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAskPrintsSummaryAndSaves(t *testing.T) {
	var gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.URL.Query().Get("sessionId")
		io.WriteString(w, analyzeBody)
	}))
	defer srv.Close()

	cfgPath := setupCLI(t, srv.URL)
	savePath := filepath.Join(t.TempDir(), "resp.json")

	out, err := execute(t, "--config", cfgPath, "ask", "--save", savePath, "change", "checkout")
	require.NoError(t, err)

	assert.Contains(t, out, "Repository: shop")
	assert.Contains(t, out, "Checkout touches billing.")
	assert.Contains(t, out, "Graph 1: 2 modules, 1 links, 1 critical")
	assert.Contains(t, out, "! auth -[depends]-> billing")
	assert.Contains(t, out, "widest reach: auth (1)")
	assert.Contains(t, out, "# Plan")
	assert.True(t, strings.HasPrefix(gotSession, "win-"), "session id %q", gotSession)

	resp, _, err := datasource.Load(savePath, nil)
	require.NoError(t, err)
	assert.Equal(t, "shop", resp.RepoName)
	require.Len(t, resp.Graphs, 1)
	assert.Len(t, resp.Graphs[0].Nodes, 2)
}

func TestPrintResponsePlainGolden(t *testing.T) {
	resp, err := model.DecodePromptResponse([]byte(analyzeBody))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printResponse(&buf, &app{cfg: config.DefaultConfig()}, resp, false))
	testutil.NewGoldenFile(t, "testdata", "ask_plain.golden").Assert(buf.String())
}

func TestAskJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, analyzeBody)
	}))
	defer srv.Close()
	cfgPath := setupCLI(t, srv.URL)

	out, err := execute(t, "--config", cfgPath, "ask", "--json", "what breaks?")
	require.NoError(t, err)

	resp, err := model.DecodePromptResponse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, model.SchemaVersion, resp.Version)
	assert.Equal(t, "Checkout touches billing.", resp.PromptMessage)
}

func TestAskBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	cfgPath := setupCLI(t, srv.URL)

	_, err := execute(t, "--config", cfgPath, "ask", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzing prompt")
}

func TestAskEmptyPrompt(t *testing.T) {
	cfgPath := setupCLI(t, "http://127.0.0.1:1")
	_, err := execute(t, "--config", cfgPath, "ask", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestExportWritesFiles(t *testing.T) {
	cfgPath := setupCLI(t, "http://127.0.0.1:1")
	src := filepath.Join(t.TempDir(), "resp.json")
	gen := testutil.NewDefault()
	testutil.WriteResponseFile(t, src, gen.ToResponse(testutil.SamplePlan, testutil.QuickChain(3)))
	outDir := t.TempDir()

	out, err := execute(t, "--config", cfgPath, "export", "-t", "panel", "-f", "html", "-o", outDir, src)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".html"), entries[0].Name())
}

func TestExportRunsHooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hooks use sh")
	}
	cfgPath := setupCLI(t, "http://127.0.0.1:1")
	marker := filepath.Join(t.TempDir(), "marker")
	hooksYAML := "hooks:\n  post-export:\n    - name: mark\n      command: echo \"$IMPACTVIEW_EXPORT_FORMAT\" > " + marker + "\n      on_error: fail\n"
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(cfgPath), "hooks.yaml"), []byte(hooksYAML), 0o644))

	src := filepath.Join(t.TempDir(), "resp.json")
	testutil.WriteResponseFile(t, src, testutil.NewDefault().ToResponse(testutil.SamplePlan, testutil.QuickChain(2)))

	_, err := execute(t, "--config", cfgPath, "--no-hooks=true", "export", "-f", "svg", "-o", t.TempDir(), src)
	require.NoError(t, err)
	assert.NoFileExists(t, marker)

	_, err = execute(t, "--config", cfgPath, "--no-hooks=false", "export", "-f", "svg", "-o", t.TempDir(), src)
	require.NoError(t, err)
	body, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "svg\n", string(body))
}

func TestExportRejectsBadInput(t *testing.T) {
	cfgPath := setupCLI(t, "http://127.0.0.1:1")
	src := filepath.Join(t.TempDir(), "resp.json")
	testutil.WriteResponseFile(t, src, testutil.NewDefault().ToResponse("", testutil.QuickChain(2)))

	_, err := execute(t, "--config", cfgPath, "export", "-f", "docx", src)
	assert.Error(t, err, "unknown format")

	_, err = execute(t, "--config", cfgPath, "export", "--upload", src)
	assert.Error(t, err, "upload without a bucket")

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	_, err = execute(t, "--config", cfgPath, "export", empty)
	assert.Error(t, err, "empty response")
}

func TestSessionCommands(t *testing.T) {
	cfgPath := setupCLI(t, "http://127.0.0.1:1")

	first, err := execute(t, "--config", cfgPath, "session")
	require.NoError(t, err)
	again, err := execute(t, "--config", cfgPath, "session")
	require.NoError(t, err)
	assert.Equal(t, first, again, "id is reused within a scope")
	assert.True(t, strings.HasPrefix(first, "win-"))

	reset, err := execute(t, "--config", cfgPath, "session", "reset")
	require.NoError(t, err)
	assert.NotEqual(t, first, reset)

	after, err := execute(t, "--config", cfgPath, "session")
	require.NoError(t, err)
	assert.Equal(t, reset, after)
}

func TestFollowNeedsNATS(t *testing.T) {
	cfgPath := setupCLI(t, "http://127.0.0.1:1")
	_, err := execute(t, "--config", cfgPath, "follow", "win-abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats.url")
}
