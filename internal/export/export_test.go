package export

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tdh8316/findme/internal/scan"
)

var records = []scan.Record{
	{Name: "GitHub", URL: "https://github.com/alice", Status: scan.StatusFound},
	{Name: `Say "Hi"`, URL: "https://hi.example/alice?a=1,2", Status: scan.StatusFound},
}

func TestWrite_JSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, records))

	assert.True(t, strings.HasPrefix(buf.String(), "[\n  {\n    \"name\": \"GitHub\","))

	var back []scan.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, records, back)
}

func TestWrite_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, nil))
	assert.Equal(t, "[]", buf.String())
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, records))

	want := "Platform,URL\n" +
		"\"GitHub\",\"https://github.com/alice\"\n" +
		"\"Say \"\"Hi\"\"\",\"https://hi.example/alice?a=1,2\"\n"
	assert.Equal(t, want, buf.String())
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, TXT, records[:1]))

	want := "FindMe Search Results\n" +
		strings.Repeat("=", 50) + "\n\n" +
		"GitHub: https://github.com/alice\n"
	assert.Equal(t, want, buf.String())
}

func TestWrite_YAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, YAML, records))

	var back []scan.Record
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, records, back)
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("xml"), records)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"JSON": JSON, "csv": CSV, "text": TXT, "txt": TXT, "yml": YAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, "findme-results.csv", FileName(CSV))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", FileName(TXT))
	require.NoError(t, WriteFile(path, TXT, records[:1]))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "GitHub: https://github.com/alice")
}

func TestCopy(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Copy(&buf, records[:1]))

	encoded := base64.StdEncoding.EncodeToString([]byte("GitHub: https://github.com/alice\n"))
	assert.Contains(t, buf.String(), encoded)
	assert.True(t, strings.HasPrefix(buf.String(), "\x1b]52;c;"))
}
