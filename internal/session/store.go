package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrNotFound = errors.New("session not found")

// Repository persists sessions between server restarts.
type Repository interface {
	Get(id string) (*Session, error)
	Put(s *Session) error
	Delete(id string) error
	List() ([]*Session, error)
}

// FileStore keeps one msgpack file per session under Dir.
type FileStore struct {
	Dir string

	mu sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.Dir, id+".msgpack")
}

func (fs *FileStore) Get(id string) (*Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	b, err := os.ReadFile(fs.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s Session
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (fs *FileStore) Put(s *Session) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	b, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	tmp := fs.path(s.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path(s.ID))
}

func (fs *FileStore) Delete(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	err := os.Remove(fs.path(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (fs *FileStore) List() ([]*Session, error) {
	fs.mu.Lock()
	entries, err := os.ReadDir(fs.Dir)
	fs.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*Session
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".msgpack") {
			continue
		}
		s, err := fs.Get(strings.TrimSuffix(e.Name(), ".msgpack"))
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
