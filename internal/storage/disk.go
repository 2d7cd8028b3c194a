// Package storage keeps the original and signed PDF renditions of attachments
// together with their signature manifests.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrObjectNotFound 对象不存在
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidPath 非法的对象路径
	ErrInvalidPath = errors.New("invalid object path")
)

// Disk is a flat object store addressed by slash separated relative paths.
type Disk interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	// Files lists the objects directly under dir as full relative paths.
	Files(ctx context.Context, dir string) ([]string, error)
	// Directories lists the names of the sub-directories directly under dir.
	Directories(ctx context.Context, dir string) ([]string, error)
}
