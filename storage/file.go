package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

type file struct {
	root string
}

// NewFile returns a Storage rooted at dir. Keys map to file paths
// under dir, and writes go through a temp file plus rename.
func NewFile(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &file{root: dir}, nil
}

func (f *file) resolve(key string) (string, error) {
	clean := path.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.root, filepath.FromSlash(clean)), nil
}

func (f *file) Has(ctx context.Context, key string) (bool, error) {
	name, err := f.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *file) Put(ctx context.Context, key string, content []byte) error {
	name, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), name)
}

func (f *file) Get(ctx context.Context, key string) ([]byte, error) {
	name, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return content, err
}

func (f *file) Delete(ctx context.Context, key string) error {
	name, err := f.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(name)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (f *file) Rename(ctx context.Context, oldKey, newKey string) error {
	oldName, err := f.resolve(oldKey)
	if err != nil {
		return err
	}
	newName, err := f.resolve(newKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newName), 0o755); err != nil {
		return err
	}
	err = os.Rename(oldName, newName)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (f *file) List(ctx context.Context, prefix string) ([]string, error) {
	dir, err := f.resolve(prefix)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, ent := range dirents {
		if ent.IsDir() {
			continue
		}
		keys = append(keys, path.Join(prefix, ent.Name()))
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *file) Dirs(ctx context.Context, prefix string) ([]string, error) {
	dir, err := f.resolve(prefix)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, ent := range dirents {
		if !ent.IsDir() {
			continue
		}
		names = append(names, ent.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (f *file) RemoveAll(ctx context.Context, prefix string) error {
	dir, err := f.resolve(prefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
