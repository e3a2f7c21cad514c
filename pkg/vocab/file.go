package vocab

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileFormatVersion = 1

type fileContents struct {
	Format  int          `json:"format"`
	Records []WordRecord `json:"records"`
}

// FileRepository stores the vocabulary as a single JSON document. Writes go
// to a temporary file that is synced and renamed over the target, so readers
// see either the old or the new file.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a repository backed by path. The parent
// directory is created if needed; the file itself is created on first write.
func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create vocabulary dir: %w", err)
	}
	return &FileRepository{path: path}, nil
}

// Path returns the backing file path.
func (f *FileRepository) Path() string { return f.path }

func (f *FileRepository) Load(ctx context.Context) ([]WordRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return nil, err
	}
	return sortedRecords(m), nil
}

func (f *FileRepository) Get(ctx context.Context, word string) (WordRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return WordRecord{}, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return WordRecord{}, false, err
	}
	r, ok := m[word]
	return r, ok, nil
}

func (f *FileRepository) Upsert(ctx context.Context, records []WordRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	if err := checkVersions(m, records); err != nil {
		return err
	}
	for _, r := range records {
		m[r.Word] = r
	}
	return f.write(sortedRecords(m))
}

func (f *FileRepository) Replace(ctx context.Context, records []WordRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := make(map[string]WordRecord, len(records))
	for _, r := range records {
		m[r.Word] = r
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(sortedRecords(m))
}

func (f *FileRepository) read() (map[string]WordRecord, error) {
	m := make(map[string]WordRecord)
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if contents.Format != fileFormatVersion {
		return nil, fmt.Errorf("decode %s: unsupported format %d", f.path, contents.Format)
	}
	for _, r := range contents.Records {
		m[r.Word] = r
	}
	return m, nil
}

func (f *FileRepository) write(records []WordRecord) error {
	data, err := json.MarshalIndent(fileContents{Format: fileFormatVersion, Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vocabulary: %w", err)
	}
	return writeFileAtomic(f.path, data)
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	// Best effort: persist the rename itself.
	if d, derr := os.Open(dir); derr == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
