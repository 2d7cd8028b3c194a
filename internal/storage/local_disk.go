package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalDisk 本地文件系统存储
type LocalDisk struct {
	root string
}

// NewLocalDisk 创建本地存储，root 不存在时自动创建
func NewLocalDisk(root string) (*LocalDisk, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalDisk{root: root}, nil
}

func (d *LocalDisk) resolve(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" || strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// Put 写入对象
func (d *LocalDisk) Put(_ context.Context, p string, data []byte) error {
	full, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(full, data, 0o640)
}

// Get 读取对象
func (d *LocalDisk) Get(_ context.Context, p string) ([]byte, error) {
	full, err := d.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, p)
	}
	return data, err
}

// Delete 删除对象，对象不存在时不报错
func (d *LocalDisk) Delete(_ context.Context, p string) error {
	full, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists 判断对象是否存在
func (d *LocalDisk) Exists(_ context.Context, p string) (bool, error) {
	full, err := d.resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Files 列出目录下的对象
func (d *LocalDisk) Files(_ context.Context, dir string) ([]string, error) {
	return d.list(dir, false)
}

// Directories 列出子目录名称
func (d *LocalDisk) Directories(_ context.Context, dir string) ([]string, error) {
	return d.list(dir, true)
}

func (d *LocalDisk) list(dir string, dirs bool) ([]string, error) {
	full, err := d.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prefix := strings.Trim(dir, "/")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() != dirs {
			continue
		}
		if dirs {
			out = append(out, e.Name())
		} else {
			out = append(out, prefix+"/"+e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
