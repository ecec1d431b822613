package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
)

const maxLinkValue = 4096

// zipSource spools the stream to disk since the central directory sits at
// the end of the file.
type zipSource struct {
	files   []*zip.File
	regular map[string]*zip.File
	links   map[string]string
	pending []string
	index   int
	open    io.ReadCloser
}

func newZipSource(stream io.Reader, r *Reader) (*zipSource, error) {
	spool, err := os.CreateTemp("", "binup-zip-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	s := &zipSource{
		regular: make(map[string]*zip.File),
		links:   make(map[string]string),
	}
	r.onClose(func() error {
		if s.open != nil {
			s.open.Close()
		}
		spool.Close()
		return os.Remove(spool.Name())
	})

	size, err := io.Copy(spool, stream)
	if err != nil {
		return nil, corrupt(r.name, err)
	}
	zr, err := zip.NewReader(spool, size)
	if err != nil {
		return nil, corrupt(r.name, err)
	}
	s.files = zr.File
	for _, f := range zr.File {
		if name := cleanPath(f.Name); name != "" && f.Mode().IsRegular() {
			s.regular[name] = f
		}
	}
	return s, nil
}

func (s *zipSource) next() (*Entry, io.Reader, error) {
	if s.open != nil {
		s.open.Close()
		s.open = nil
	}

	for s.index < len(s.files) {
		f := s.files[s.index]
		s.index++

		name := cleanPath(f.Name)
		if name == "" {
			continue
		}
		mode := f.Mode()
		switch {
		case mode&fs.ModeSymlink != 0:
			value, err := readLinkValue(f)
			if err != nil {
				return nil, nil, err
			}
			s.links[name] = linkTarget(name, value)
			s.pending = append(s.pending, name)
		case mode.IsRegular():
			return s.openEntry(name, f)
		}
	}

	for len(s.pending) > 0 {
		name := s.pending[0]
		s.pending = s.pending[1:]

		target, ok := resolveLink(name, s.links, func(p string) bool {
			_, found := s.regular[p]
			return found
		})
		if !ok {
			continue
		}
		entry, content, err := s.openEntry(name, s.regular[target])
		if err != nil {
			return nil, nil, err
		}
		entry.Target = target
		return entry, content, nil
	}
	return nil, nil, io.EOF
}

func (s *zipSource) openEntry(name string, f *zip.File) (*Entry, io.Reader, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	s.open = rc
	return &Entry{
		Path: name,
		Mode: f.Mode().Perm(),
		Size: int64(f.UncompressedSize64),
	}, rc, nil
}

func readLinkValue(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	value, err := io.ReadAll(io.LimitReader(rc, maxLinkValue))
	if err != nil {
		return "", fmt.Errorf("read link %s: %w", f.Name, err)
	}
	return string(value), nil
}
