package archive

import (
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Container is the outer layout of an asset.
type Container int

const (
	ContainerPlain Container = iota
	ContainerTar
	ContainerZip
)

// Compression is the stream filter wrapped around the container.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
	CompressionXz
	CompressionLzma
	CompressionZstd
)

var compressionExt = map[Compression]string{
	CompressionGzip:  "gz",
	CompressionBzip2: "bz2",
	CompressionXz:    "xz",
	CompressionLzma:  "lzma",
	CompressionZstd:  "zst",
}

// Format pairs a container with its compression filter.
type Format struct {
	Container   Container
	Compression Compression
}

func (f Format) String() string {
	var parts []string
	switch f.Container {
	case ContainerTar:
		parts = append(parts, "tar")
	case ContainerZip:
		parts = append(parts, "zip")
	}
	if ext, ok := compressionExt[f.Compression]; ok {
		parts = append(parts, ext)
	}
	if len(parts) == 0 {
		return "plain"
	}
	return strings.Join(parts, ".")
}

// Longest suffixes first so ".tar.gz" wins over ".gz".
var suffixFormats = []struct {
	suffix string
	format Format
}{
	{".tar.gz", Format{ContainerTar, CompressionGzip}},
	{".tar.bz2", Format{ContainerTar, CompressionBzip2}},
	{".tar.xz", Format{ContainerTar, CompressionXz}},
	{".tar.lzma", Format{ContainerTar, CompressionLzma}},
	{".tar.zst", Format{ContainerTar, CompressionZstd}},
	{".tgz", Format{ContainerTar, CompressionGzip}},
	{".tbz2", Format{ContainerTar, CompressionBzip2}},
	{".tbz", Format{ContainerTar, CompressionBzip2}},
	{".txz", Format{ContainerTar, CompressionXz}},
	{".tzst", Format{ContainerTar, CompressionZstd}},
	{".tar", Format{ContainerTar, CompressionNone}},
	{".zip", Format{ContainerZip, CompressionNone}},
	{".gz", Format{ContainerPlain, CompressionGzip}},
	{".bz2", Format{ContainerPlain, CompressionBzip2}},
	{".xz", Format{ContainerPlain, CompressionXz}},
	{".lzma", Format{ContainerPlain, CompressionLzma}},
	{".zst", Format{ContainerPlain, CompressionZstd}},
}

var unsupportedSuffixes = []string{".deb", ".rpm", ".apk", ".7z", ".rar", ".dmg", ".pkg", ".msi"}

var unsupportedTypes = []string{
	"application/vnd.debian.binary-package",
	"application/x-rpm",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
}

// FormatFromName infers the format from the asset name suffix. ok is false
// when the suffix says nothing and the content has to be sniffed.
func FormatFromName(name string) (f Format, ok bool, err error) {
	lower := strings.ToLower(path.Base(name))
	for _, s := range suffixFormats {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format, true, nil
		}
	}
	for _, s := range unsupportedSuffixes {
		if strings.HasSuffix(lower, s) {
			return Format{}, false, unsupported(name, fmt.Errorf("%s packages are not supported", s))
		}
	}
	return Format{}, false, nil
}

// sniffFormat detects the format from the first bytes of a stream.
func sniffFormat(name string, head []byte) (Format, error) {
	m := mimetype.Detect(head)
	switch {
	case isA(m, "application/gzip"):
		return Format{ContainerPlain, CompressionGzip}, nil
	case isA(m, "application/x-bzip2"):
		return Format{ContainerPlain, CompressionBzip2}, nil
	case isA(m, "application/x-xz"):
		return Format{ContainerPlain, CompressionXz}, nil
	case isA(m, "application/zstd"):
		return Format{ContainerPlain, CompressionZstd}, nil
	case isA(m, "application/x-tar"):
		return Format{ContainerTar, CompressionNone}, nil
	case isA(m, "application/zip"):
		return Format{ContainerZip, CompressionNone}, nil
	}
	for _, t := range unsupportedTypes {
		if isA(m, t) {
			return Format{}, unsupported(name, fmt.Errorf("content type %s is not supported", m.String()))
		}
	}
	return Format{ContainerPlain, CompressionNone}, nil
}

func isTar(head []byte) bool {
	return isA(mimetype.Detect(head), "application/x-tar")
}

// isA reports whether m or one of its parents is the given type.
func isA(m *mimetype.MIME, mime string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mime) {
			return true
		}
	}
	return false
}

// plainName is the entry name for a non-archive asset: the asset name with
// its compression suffix removed.
func plainName(name string, c Compression) string {
	base := path.Base(name)
	if ext, ok := compressionExt[c]; ok {
		if trimmed, found := strings.CutSuffix(base, "."+ext); found && trimmed != "" {
			return trimmed
		}
	}
	return base
}
