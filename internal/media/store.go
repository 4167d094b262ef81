// Package media stores uploaded board media on local disk and builds their public URLs.
package media

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/and161185/brainboard/internal/errs"
)

// MaxObjectSize bounds a single upload.
const MaxObjectSize = 25 << 20

// ErrTooLarge is returned when an upload exceeds MaxObjectSize.
var ErrTooLarge = errors.New("media: object too large")

// Store keeps objects under a root directory. Object paths are slash separated and
// relative, like "boards/<id>/cat.png".
type Store struct {
	root    string
	baseURL string
}

// NewStore creates root if needed. baseURL is the public prefix objects are served under.
func NewStore(root, baseURL string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty media dir", errs.ErrInvalidArgument)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, err
	}
	return &Store{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory objects are stored in.
func (s *Store) Root() string { return s.root }

// Clean validates an object path and returns its canonical form.
func Clean(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return "", fmt.Errorf("%w: bad media path %q", errs.ErrInvalidArgument, p)
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: bad media path %q", errs.ErrInvalidArgument, p)
	}
	return c, nil
}

// Put writes r to p, replacing any previous object. The write goes to a temp file that is
// renamed into place so readers never see a partial object.
func (s *Store) Put(p string, r io.Reader) (int64, error) {
	c, err := Clean(p)
	if err != nil {
		return 0, err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(c))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, MaxObjectSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if n > MaxObjectSize {
		return 0, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, err
	}
	return n, nil
}

// Open returns the object at p.
func (s *Store) Open(p string) (*os.File, error) {
	c, err := Clean(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(c)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("media %s: %w", c, errs.ErrNotFound)
	}
	return f, err
}

// PublicURL is the address p is served from.
func (s *Store) PublicURL(p string) (string, error) {
	c, err := Clean(p)
	if err != nil {
		return "", err
	}
	segs := strings.Split(c, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segs, "/"), nil
}
