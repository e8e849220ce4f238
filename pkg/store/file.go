package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// File is a JSON-file-backed store. The file holds all namespaces;
// each Open call returns a view onto one of them. Commit rewrites the
// file atomically (write to temp, then rename), so a crash mid-commit
// never corrupts previously persisted values.
type File struct {
	mu       *sync.Mutex
	filepath string
	ns       string
	values   map[string]map[string]uint32
}

var _ Store = (*File)(nil)

// Open loads the file at path (a missing file is an empty store) and
// returns the view for the given namespace.
func Open(path, namespace string) (*File, error) {
	f := &File{
		mu:       &sync.Mutex{},
		filepath: path,
		ns:       namespace,
		values:   make(map[string]map[string]uint32),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to read store file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		return nil
	}

	if err := json.Unmarshal(b, &f.values); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal store file %s", f.filepath)
	}
	return nil
}

func (f *File) GetU32(key string) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ns, ok := f.values[f.ns]
	if !ok {
		return 0, false
	}
	v, ok := ns[key]
	return v, ok
}

func (f *File) SetU32(key string, value uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.values[f.ns] == nil {
		f.values[f.ns] = make(map[string]uint32)
	}
	f.values[f.ns][key] = value
}

func (f *File) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal store")
	}

	dir := filepath.Dir(f.filepath)
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return pkgerrors.Wrapf(err, "failed to write store file %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return pkgerrors.Wrapf(err, "failed to close store file %s", tmpName)
	}

	if err := os.Rename(tmpName, f.filepath); err != nil {
		_ = os.Remove(tmpName)
		return pkgerrors.Wrapf(err, "failed to replace store file %s", f.filepath)
	}

	logrus.WithField("path", f.filepath).Debug("store committed")
	return nil
}
