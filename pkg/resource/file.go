package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileOpener opens local files from file:// URIs or plain paths.
type FileOpener struct {
	log *slog.Logger
}

// NewFileOpener creates a FileOpener.
func NewFileOpener(logger *slog.Logger) *FileOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileOpener{log: logger}
}

// Open implements Opener.
func (o *FileOpener) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	path, err := FilePath(locator)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("resource: open file %s: %w", path, err)
	}

	o.log.Debug("opened file", slog.String("path", path))
	return f, nil
}

// FilePath returns the local path for a file:// URI or plain path.
// It fails for locators with any other scheme.
func FilePath(locator string) (string, error) {
	scheme, err := Scheme(locator)
	if err != nil {
		return "", err
	}
	if scheme != "file" {
		return "", fmt.Errorf("%w: %q is not a file locator", ErrUnsupportedScheme, scheme)
	}
	if !strings.Contains(locator, "://") {
		return filepath.Clean(locator), nil
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}

	path := u.Path
	if u.Host != "" {
		// file://C:/path and file://./relative/path
		if len(u.Host) == 2 && u.Host[1] == ':' {
			path = u.Host + path
		} else {
			path = u.Host + "/" + strings.TrimPrefix(path, "/")
		}
	}
	if path == "" {
		return "", fmt.Errorf("%w: empty path in %s", ErrInvalidLocator, locator)
	}
	return filepath.FromSlash(path), nil
}

// fsOpener opens paths inside an fs.FS.
type fsOpener struct {
	fsys fs.FS
}

// FS returns an Opener reading from fsys, typically an embed.FS. The locator
// path (after the scheme) is resolved relative to the root of fsys.
func FS(fsys fs.FS) Opener {
	return &fsOpener{fsys: fsys}
}

// Open implements Opener.
func (o *fsOpener) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	name := locator
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" {
		name = u.Host + u.Path
	}
	name = strings.TrimPrefix(name, "/")

	f, err := o.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("resource: open %s: %w", name, err)
	}
	return f, nil
}
