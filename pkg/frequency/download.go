package frequency

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDownloadLimit bounds the size of a downloaded list.
const DefaultDownloadLimit = 32 * 1024 * 1024

// Ensure makes sure a frequency list exists at path, downloading it from
// rawURL when it does not. The download may be plain text, gzip, or a
// gzipped tar holding a .csv or .txt file. It reports whether a download
// happened.
func Ensure(ctx context.Context, client *http.Client, path, rawURL string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "novelreader-cli")

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("download failed: %s", resp.Status)
	}

	body, err := unpack(io.LimitReader(resp.Body, DefaultDownloadLimit))
	if err != nil {
		return false, err
	}
	if err := writeAtomic(path, body); err != nil {
		return false, err
	}
	return true, nil
}

// unpack returns the list inside r, undoing gzip and tar wrapping.
func unpack(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(2)
	if !bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		return io.ReadAll(br)
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}

	// A tar header carries "ustar" at offset 257.
	if len(data) < 262 || string(data[257:262]) != "ustar" {
		return data, nil
	}
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading tar archive: %w", err)
		}
		name := strings.ToLower(header.Name)
		if header.Typeflag == tar.TypeReg && (strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".txt")) {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("no word list found in downloaded archive")
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
