package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// tarSource streams regular files as they arrive. Links seen along the way
// are replayed with their target's content once the stream is exhausted:
// seekable sources are reread from the start, others are teed into a spool
// file.
type tarSource struct {
	tr      *tar.Reader
	rewind  func() (io.Reader, error)
	files   map[string]*tar.Header
	links   map[string]string
	pending []string
	eof     bool
}

func newTarSource(stream io.Reader, r *Reader) (*tarSource, error) {
	s := &tarSource{
		rewind: r.rewind,
		files:  make(map[string]*tar.Header),
		links:  make(map[string]string),
	}
	if s.rewind != nil {
		s.tr = tar.NewReader(stream)
		return s, nil
	}

	spool, err := os.CreateTemp("", "binup-tar-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	r.onClose(func() error {
		spool.Close()
		return os.Remove(spool.Name())
	})
	s.tr = tar.NewReader(io.TeeReader(stream, spool))
	s.rewind = func() (io.Reader, error) {
		return io.NewSectionReader(spool, 0, 1<<62), nil
	}
	return s, nil
}

func (s *tarSource) next() (*Entry, io.Reader, error) {
	for !s.eof {
		hdr, err := s.tr.Next()
		if errors.Is(err, io.EOF) {
			s.eof = true
			break
		}
		if err != nil {
			return nil, nil, err
		}
		name := cleanPath(hdr.Name)
		if name == "" {
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeReg:
			s.files[name] = hdr
			return tarEntry(name, hdr), s.tr, nil
		case tar.TypeSymlink:
			s.links[name] = linkTarget(name, hdr.Linkname)
			s.pending = append(s.pending, name)
		case tar.TypeLink:
			s.links[name] = cleanPath(hdr.Linkname)
			s.pending = append(s.pending, name)
		}
	}

	for len(s.pending) > 0 {
		name := s.pending[0]
		s.pending = s.pending[1:]

		target, ok := resolveLink(name, s.links, func(p string) bool {
			_, found := s.files[p]
			return found
		})
		if !ok {
			continue
		}
		content, err := s.replay(target)
		if err != nil {
			return nil, nil, err
		}
		entry := tarEntry(name, s.files[target])
		entry.Target = target
		return entry, content, nil
	}
	return nil, nil, io.EOF
}

// replay rescans the archive for target and returns a reader over its
// content.
func (s *tarSource) replay(target string) (io.Reader, error) {
	stream, err := s.rewind()
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", target, err)
	}
	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", target, err)
		}
		if hdr.Typeflag == tar.TypeReg && cleanPath(hdr.Name) == target {
			return tr, nil
		}
	}
}

func tarEntry(name string, hdr *tar.Header) *Entry {
	return &Entry{
		Path: name,
		Mode: fs.FileMode(hdr.Mode).Perm(),
		Size: hdr.Size,
	}
}
