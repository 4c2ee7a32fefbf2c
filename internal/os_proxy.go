package internal

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OsProxy is the subset of os functions used to locate and read growing
// input files. Add more methods as you need them.
type OsProxy interface {
	Stat(name string) (os.FileInfo, error)
	Open(name string) (*os.File, error)
	Abs(path string) (string, error)
	DirFS(dir string) fs.FS
}

// RealOS is the default implementation that delegates to the real os package.
type RealOS struct{}

// Stat ...
func (RealOS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Open ...
func (RealOS) Open(name string) (*os.File, error) {
	return os.Open(name)
}

// Abs ...
func (RealOS) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

// DirFS ...
func (RealOS) DirFS(dir string) fs.FS {
	return os.DirFS(dir)
}
