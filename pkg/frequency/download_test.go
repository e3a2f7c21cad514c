package frequency

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleList = "Lemma,Freq\nthe,100\nlantern,2\n"

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tarball(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "README", Mode: 0o644, Size: 2, Typeflag: tar.TypeReg}))
	_, err := tw.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}))
	_, err = tw.Write(data)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return gzipped(t, buf.Bytes())
}

func TestEnsureDownloads(t *testing.T) {
	bodies := map[string][]byte{
		"/plain.csv":   []byte(sampleList),
		"/list.csv.gz": gzipped(t, []byte(sampleList)),
		"/ngsl.tgz":    tarball(t, "ngsl/NGSL.csv", []byte(sampleList)),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	for name := range bodies {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache", "freq.csv")
			downloaded, err := Ensure(context.Background(), srv.Client(), path, srv.URL+name)
			require.NoError(t, err)
			assert.True(t, downloaded)

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			words, err := ParseNGSL(f)
			require.NoError(t, err)
			assert.Equal(t, []string{"the", "lantern"}, words)
		})
	}

	t.Run("not found", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "freq.csv")
		_, err := Ensure(context.Background(), srv.Client(), path, srv.URL+"/missing")
		assert.Error(t, err)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestEnsureLocalCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freq.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleList), 0o644))

	// The URL is never contacted when the file exists.
	downloaded, err := Ensure(context.Background(), nil, path, "http://127.0.0.1:1/unreachable")
	require.NoError(t, err)
	assert.False(t, downloaded)
}
