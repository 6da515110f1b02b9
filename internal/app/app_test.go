package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/findme/internal/scan"
)

// newPlatformServer serves a catalog at /data.json. Only "alice" exists on
// GitHub; GitLab answers 404 for everyone; Broken points at a closed port.
func newPlatformServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
  "$schema": "data.schema.json",
  "$minVersion": "0.1.0",
  "GitHub": {"url": "%[1]s/github/{}"},
  "GitLab": {"url": "%[1]s/gitlab/{}"},
  "Broken": {"url": "http://127.0.0.1:1/{}"}
}`, srv.URL)
	})
	mux.HandleFunc("/github/", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.URL.Path, "/github/") == "alice" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/gitlab/", http.NotFound)
	return srv
}

// isolate keeps config lookups away from the developer's home directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func baseArgs(srv *httptest.Server) []string {
	return []string{"--catalog", srv.URL + "/data.json", "--delay", scan.DefaultDelay.String(), "--no-color", "--no-progress"}
}

func runApp(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Discover(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)

	code, out, _ := runApp(t, "", append(baseArgs(srv), "alice")...)

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "[*] Checking username alice on:")
	assert.Contains(t, out, "[+] GitHub: "+srv.URL+"/github/alice")
	assert.NotContains(t, out, "GitLab:")
	assert.Contains(t, out, "Scan complete! Found: 1/3")
}

func TestRun_AvailabilityExport(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)
	path := filepath.Join(t.TempDir(), "out.json")

	args := append([]string{"availability"}, baseArgs(srv)...)
	code, out, _ := runApp(t, "", append(args, "-e", "json", "-o", path, "alice")...)
	require.Equal(t, 0, code)

	assert.Contains(t, out, "[✓] GitLab: "+srv.URL+"/gitlab/alice")
	assert.NotContains(t, out, "[✓] GitHub")
	assert.NotContains(t, out, "[✓] Broken")
	assert.Contains(t, out, "Results exported to "+path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []scan.Record
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, []scan.Record{
		{Name: "GitLab", URL: srv.URL + "/gitlab/alice", Status: scan.StatusAvailable},
	}, got)
}

func TestRun_ExportFormatFromOutputExtension(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "res.csv")

	code, _, _ := runApp(t, "", append(baseArgs(srv), "-o", base, "alice", "bob")...)
	require.Equal(t, 0, code)

	alice, err := os.ReadFile(filepath.Join(dir, "res-alice.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Platform,URL\n\"GitHub\",\""+srv.URL+"/github/alice\"\n", string(alice))

	bob, err := os.ReadFile(filepath.Join(dir, "res-bob.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Platform,URL\n", string(bob))
}

func TestRun_CatalogUnavailable(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)

	code, out, _ := runApp(t, "", "--catalog", srv.URL+"/missing.json", "--no-color", "--no-progress", "alice")

	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Failed to load platform list")
	assert.Contains(t, out, "[-] No accounts found.")
	assert.Contains(t, out, "Scan complete! Found: 0/0")
}

func TestRun_PromptsForUsername(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)

	code, out, _ := runApp(t, "alice\n", baseArgs(srv)...)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Enter usernames to search for")
	assert.Contains(t, out, "[+] GitHub")

	code, _, errOut := runApp(t, "   \n", baseArgs(srv)...)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, scan.ErrEmptyUsername.Error())
}

func TestRun_Sites(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)

	code, out, _ := runApp(t, "", append(baseArgs(srv), "--sites", "gitlab,nope", "alice")...)

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Unknown sites ignored: nope")
	assert.Contains(t, out, "Using 1 site(s)")
	assert.Contains(t, out, "Found: 0/1")
}

func TestRun_Platforms(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)

	code, out, _ := runApp(t, "", append([]string{"platforms"}, baseArgs(srv)...)...)

	assert.Equal(t, 0, code)
	gh := strings.Index(out, "[+] GitHub")
	gl := strings.Index(out, "[+] GitLab")
	br := strings.Index(out, "[+] Broken")
	require.True(t, gh >= 0 && gl >= 0 && br >= 0, out)
	assert.True(t, gh < gl && gl < br, "catalog order")
	assert.Contains(t, out, "3 platforms")
}

func TestRun_VersionHelpAndUsage(t *testing.T) {
	isolate(t)

	code, out, _ := runApp(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "findme "+Version+"\n", out)

	code, _, _ = runApp(t, "", "--help")
	assert.Equal(t, 0, code)

	code, _, _ = runApp(t, "", "--bogus")
	assert.Equal(t, 2, code)

	code, _, errOut := runApp(t, "", "--config", filepath.Join(t.TempDir(), "missing.ini"), "alice")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "load config")
}

func TestRun_Interrupted(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, errOut bytes.Buffer
	code := run(ctx, append(baseArgs(srv), "alice"), strings.NewReader(""), &out, &errOut)
	assert.Equal(t, 130, code)
}

func TestRun_LogFile(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)
	logPath := filepath.Join(t.TempDir(), "logs", "findme.log")

	code, _, _ := runApp(t, "", append(baseArgs(srv), "--log-level", "debug", "--log-file", logPath, "alice")...)
	require.Equal(t, 0, code)

	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "scan completed")
}

func TestExportPath(t *testing.T) {
	assert.Equal(t, "findme-results.json", exportPath("", "json", "alice", false))
	assert.Equal(t, "findme-results-alice.json", exportPath("", "json", "alice", true))
	assert.Equal(t, "out/r-bob.txt", exportPath("out/r.txt", "txt", "bob", true))
}

func TestRun_FetchesCatalogForEveryScan(t *testing.T) {
	isolate(t)
	var fetches atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		fmt.Fprintf(w, `{"Site": {"url": "%s/u/{}"}}`, srv.URL)
	})
	mux.HandleFunc("/u/", http.NotFound)

	code, out, _ := runApp(t, "", append(baseArgs(srv), "alice", "bob", "carol")...)

	assert.Equal(t, 0, code)
	assert.Equal(t, 3, strings.Count(out, "Scan complete!"))
	assert.EqualValues(t, 3, fetches.Load())
}

func TestRun_RejectsDelayBelowFloor(t *testing.T) {
	isolate(t)
	srv := newPlatformServer(t)

	code, _, errOut := runApp(t, "", "--catalog", srv.URL+"/data.json", "--delay", "0s", "alice")

	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "scan delay must be at least")
}

func TestRun_RegexCheckIsOptIn(t *testing.T) {
	isolate(t)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"Strict": {"url": "%s/u/{}", "regexCheck": "^[a-z]+$"}}`, srv.URL)
	})
	mux.HandleFunc("/u/", http.NotFound)

	args := append([]string{"availability"}, baseArgs(srv)...)

	code, out, _ := runApp(t, "", append(args, "Alice_1")...)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "[✓] Strict: "+srv.URL+"/u/Alice_1")

	code, out, _ = runApp(t, "", append(args, "--regex-check", "Alice_1")...)
	assert.Equal(t, 0, code)
	assert.NotContains(t, out, "[✓] Strict")
	assert.Contains(t, out, "Username is taken on all checked platforms.")
}
