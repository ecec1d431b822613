// Package archive reads release assets: plain binaries, compressed streams,
// tarballs and zip files, as one lazy sequence of regular-file entries.
package archive

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Entry describes a regular file inside an archive. Its content is read
// from the Reader until the next call to Next.
type Entry struct {
	Path string
	Mode fs.FileMode
	// Size is the recorded size, or -1 when the format doesn't record one.
	Size int64
	// Target is the member a link entry resolves to. It is empty for
	// regular files.
	Target string
}

// Executable reports whether any execute bit is set.
func (e *Entry) Executable() bool {
	return e.Mode&0o111 != 0
}

type source interface {
	next() (*Entry, io.Reader, error)
}

// Reader walks the entries of an archive in the manner of tar.Reader. It is
// single-use: entries cannot be revisited once Next moves past them.
type Reader struct {
	name    string
	format  Format
	src     source
	cur     io.Reader
	rewind  func() (io.Reader, error)
	count   int
	err     error
	closers []func() error
}

// NewReader prepares r for reading. The format comes from name when its
// suffix is known and from the content otherwise.
func NewReader(r io.Reader, name string) (*Reader, error) {
	format, known, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, SniffLen)
	if !known {
		head, err := peek(br)
		if err != nil {
			return nil, corrupt(name, err)
		}
		if format, err = sniffFormat(name, head); err != nil {
			return nil, err
		}
	}

	rd := &Reader{name: name, format: format}
	if rs, ok := r.(io.ReadSeeker); ok {
		if start, err := rs.Seek(0, io.SeekCurrent); err == nil {
			rd.rewind = func() (io.Reader, error) {
				if _, err := rs.Seek(start, io.SeekStart); err != nil {
					return nil, err
				}
				return rd.decompress(bufio.NewReaderSize(rs, SniffLen), format.Compression)
			}
		}
	}
	stream, err := rd.decompress(br, format.Compression)
	if err != nil {
		rd.Close()
		return nil, err
	}

	if format.Container == ContainerPlain && format.Compression != CompressionNone {
		// A bare ".gz" or a sniffed filter may still wrap a tarball.
		sb := bufio.NewReaderSize(stream, SniffLen)
		head, err := peek(sb)
		if err != nil {
			rd.Close()
			return nil, corrupt(name, err)
		}
		if isTar(head) {
			rd.format.Container = ContainerTar
		}
		stream = sb
	}

	switch rd.format.Container {
	case ContainerTar:
		rd.src, err = newTarSource(stream, rd)
	case ContainerZip:
		rd.src, err = newZipSource(stream, rd)
	default:
		rd.src = &plainSource{
			entry: &Entry{Path: plainName(name, format.Compression), Size: -1},
			r:     stream,
		}
	}
	if err != nil {
		rd.Close()
		return nil, rd.wrap(err)
	}
	return rd, nil
}

func peek(br *bufio.Reader) ([]byte, error) {
	head, err := br.Peek(SniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head, nil
}

func (r *Reader) decompress(src io.Reader, c Compression) (io.Reader, error) {
	switch c {
	case CompressionGzip:
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, corrupt(r.name, err)
		}
		r.onClose(gz.Close)
		return gz, nil
	case CompressionBzip2:
		return bzip2.NewReader(src), nil
	case CompressionXz:
		xr, err := xz.NewReader(src)
		if err != nil {
			return nil, corrupt(r.name, err)
		}
		return xr, nil
	case CompressionLzma:
		lr, err := lzma.NewReader(src)
		if err != nil {
			return nil, corrupt(r.name, err)
		}
		return lr, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(src)
		if err != nil {
			return nil, corrupt(r.name, err)
		}
		rc := zr.IOReadCloser()
		r.onClose(rc.Close)
		return rc, nil
	default:
		return src, nil
	}
}

// Format returns the detected format.
func (r *Reader) Format() Format { return r.format }

// Next advances to the next regular file. It returns io.EOF at the end, or
// an *Error of KindEmpty when the archive held no regular file at all.
func (r *Reader) Next() (*Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	entry, content, err := r.src.next()
	switch {
	case errors.Is(err, io.EOF):
		if r.count == 0 {
			r.err = &Error{Kind: KindEmpty, Name: r.name}
		} else {
			r.err = io.EOF
		}
		r.cur = nil
		return nil, r.err
	case err != nil:
		r.err = r.wrap(err)
		r.cur = nil
		return nil, r.err
	}
	r.count++
	r.cur = content
	return entry, nil
}

// Read reads from the current entry.
func (r *Reader) Read(p []byte) (int, error) {
	if r.cur == nil {
		return 0, io.EOF
	}
	n, err := r.cur.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = r.wrap(err)
	}
	return n, err
}

// Close releases decompressors and spool files.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Reader) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *Reader) wrap(err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return corrupt(r.name, err)
}

type plainSource struct {
	entry *Entry
	r     io.Reader
	done  bool
}

func (s *plainSource) next() (*Entry, io.Reader, error) {
	if s.done {
		return nil, nil, io.EOF
	}
	s.done = true
	return s.entry, s.r, nil
}

// cleanPath normalizes an archive member name. Absolute names and names
// escaping the archive root come back empty.
func cleanPath(name string) string {
	name = strings.TrimPrefix(name, "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return ""
	}
	name = path.Clean(name)
	if name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return ""
	}
	return name
}

// linkTarget resolves a symlink value relative to the link's directory.
func linkTarget(link, value string) string {
	if value == "" || strings.HasPrefix(value, "/") {
		return ""
	}
	return cleanPath(path.Join(path.Dir(link), value))
}

const maxLinkHops = 8

// resolveLink follows links until it lands on a known regular file.
func resolveLink(name string, links map[string]string, isFile func(string) bool) (string, bool) {
	for i := 0; i < maxLinkHops; i++ {
		target, ok := links[name]
		if !ok || target == "" {
			return "", false
		}
		if isFile(target) {
			return target, true
		}
		name = target
	}
	return "", false
}
