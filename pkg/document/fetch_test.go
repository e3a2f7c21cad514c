package document

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chapterPage = `<html><head><title>Chapter 2</title></head><body>
<p>The night was dark and the road was long.</p>
<p>She walked on without looking back.</p>
</body></html>`

func TestFetcherFetch(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(chapterPage))
	}))
	defer srv.Close()

	doc, err := Fetcher{}.Fetch(context.Background(), srv.URL+"/novel/ch2")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/novel/ch2", doc.Path)
	assert.Equal(t, "HTML", doc.Format)
	assert.NotEmpty(t, doc.Title)
	assert.Contains(t, doc.Text, "The night was dark and the road was long.")
	assert.GreaterOrEqual(t, len(doc.Segments), 2)
	assert.Contains(t, ua, "Mozilla/5.0")
}

func TestFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/big":
			w.Write([]byte("<p>" + strings.Repeat("word ", 100) + "</p>"))
		case "/empty":
			w.Write([]byte("<html><body><script>x()</script></body></html>"))
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	_, err := Fetcher{}.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = Fetcher{MaxBytes: 64}.Fetch(ctx, srv.URL+"/big")
	assert.ErrorContains(t, err, "exceeds limit")

	_, err = Fetcher{}.Fetch(ctx, srv.URL+"/empty")
	assert.True(t, errors.Is(err, ErrEmpty), "got %v", err)

	_, err = Fetcher{}.Fetch(ctx, "ftp://example.com/book")
	assert.ErrorContains(t, err, "invalid url")
}
