package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 200, 255
	}
	img.Set(w-1, h-1, color.NRGBA{0, 0, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestParseAspect(t *testing.T) {
	w, h, err := parseAspect("16:9")
	require.NoError(t, err)
	assert.Equal(t, 16, w)
	assert.Equal(t, 9, h)

	for _, bad := range []string{"16", "0:9", "a:b", "1:2:3", "4:-3"} {
		_, _, err := parseAspect(bad)
		assert.Error(t, err, bad)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "aurea-media "), out)
}

func TestCropCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writePNG(t, src, 40, 20)
	out := filepath.Join(dir, "crops", "avatar.png")
	preview := filepath.Join(dir, "preview.png")

	stdout, err := execute(t, "crop", src,
		"--width", "10", "--height", "12", "--rotation", "90",
		"--format", "png", "--out", out, "--preview", preview)
	require.NoError(t, err)
	assert.Equal(t, out+"\n", stdout)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	pc, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 10, pc.Width)
	assert.Equal(t, 12, pc.Height)

	_, err = os.Stat(preview)
	assert.NoError(t, err)
}

func TestResolveCommand(t *testing.T) {
	var uploads int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads++
		_, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"success": true, "data": {"url": "https://cdn.example.com/` + header.Filename + `"}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "cover.png"), 4, 4)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  backend: http\n  http:\n    endpoint: "+srv.URL+"\n"), 0o644))

	docPath := filepath.Join(dir, "portfolio.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{
  "title": "Work",
  "year": 2024,
  "cover": {"isLocal": true, "file": "cover.png", "preview": "blob:cover"},
  "gallery": [{"isLocal": true, "file": "cover.png", "preview": "blob:cover"}]
}`), 0o644))

	stdout, err := execute(t, "resolve", docPath, "--config", cfgPath)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, map[string]any{
		"title":   "Work",
		"year":    2024.0,
		"cover":   "https://cdn.example.com/cover.png",
		"gallery": []any{"https://cdn.example.com/cover.png"},
	}, got)
	assert.Equal(t, 1, uploads)
}

func TestReadDocument_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("title: Work\ntags: [a, b]\n"), 0o644))

	doc, err := readDocument(path, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Work", "tags": []any{"a", "b"}}, doc)

	data, err := encodeDocument(doc, "out.yml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Work")
}

func TestReadDocument_Stdin(t *testing.T) {
	doc, err := readDocument("-", strings.NewReader(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": json.Number("1")}, doc)

	_, err = readDocument("-", strings.NewReader(`{`))
	assert.Error(t, err)
}
