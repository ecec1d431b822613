package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"binup/internal/archive"
	"binup/internal/matcher"
	"binup/internal/paths"
	"binup/internal/release"
)

const tempSuffix = ".binup"

type installJob struct {
	name    string
	project release.Project
	asset   release.Asset
	binary  *matcher.Pattern
	dest    string
	logger  log.FieldLogger
}

// install downloads the asset, picks the binary inside it and atomically
// replaces dest. It returns the archive member that was installed.
func (r *Reconciler) install(ctx context.Context, job installJob) (string, error) {
	dir := filepath.Dir(job.dest)
	if err := paths.EnsureDir(dir); err != nil {
		return "", &IOError{Op: "create", Path: dir, Err: err}
	}

	download, err := r.download(ctx, job)
	if err != nil {
		return "", err
	}
	defer func() {
		download.Close()
		_ = os.Remove(download.Name())
	}()

	r.reporter().Stage(job.name, StateInstalling, "extracting "+job.asset.Name)
	member, err := pickBinary(download, job)
	if err != nil {
		return "", err
	}
	job.logger.Debugf("%s matches the binary selection.", member)

	if _, err := download.Seek(0, io.SeekStart); err != nil {
		return "", &IOError{Op: "rewind", Path: download.Name(), Err: err}
	}
	ar, err := archive.NewReader(download, job.asset.Name)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", job.asset.Name, err)
	}
	defer ar.Close()

	for {
		entry, err := ar.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%s disappeared from %s", member, job.asset.Name)
			}
			return "", fmt.Errorf("read %s: %w", job.asset.Name, err)
		}
		if entry.Path != member {
			continue
		}
		if err := writeBinary(job.dest, ar, job.asset.UpdatedAt); err != nil {
			return "", err
		}
		job.logger.Debugf("The tool is installed as %s.", job.dest)
		return member, nil
	}
}

// download spools the asset into a temporary file.
func (r *Reconciler) download(ctx context.Context, job installJob) (*os.File, error) {
	r.reporter().Stage(job.name, StateInstalling, "downloading "+job.asset.Name)
	body, err := r.Forge.Download(ctx, job.project, job.asset)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", job.asset.Name, err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "binup-download-*")
	if err != nil {
		return nil, &IOError{Op: "create", Path: os.TempDir(), Err: err}
	}
	counter := &progressReader{r: body, total: job.asset.Size, report: func(done, total int64) {
		r.reporter().Progress(job.name, done, total)
	}}
	if _, err := io.Copy(tmp, counter); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("download %s: %w", job.asset.Name, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, &IOError{Op: "rewind", Path: tmp.Name(), Err: err}
	}
	return tmp, nil
}

// pickBinary lists the archive members and selects the tool binary, either
// with the configured pattern or by name and executable content.
func pickBinary(src io.Reader, job installJob) (string, error) {
	ar, err := archive.NewReader(src, job.asset.Name)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", job.asset.Name, err)
	}
	defer ar.Close()

	var candidates []matcher.Candidate
	head := make([]byte, archive.SniffLen)
	for {
		entry, err := ar.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", job.asset.Name, err)
		}
		n, err := io.ReadFull(ar, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("read %s: %w", job.asset.Name, err)
		}
		candidates = append(candidates, matcher.Candidate{
			Path:       entry.Path,
			Executable: entry.Executable() || archive.LooksExecutable(head[:n]),
			Target:     entry.Target,
		})
	}

	if job.binary != nil {
		member, err := matcher.SelectCandidate(candidates, *job.binary)
		if err != nil {
			return "", fmt.Errorf("%s: %w", job.asset.Name, err)
		}
		return member, nil
	}
	member, err := matcher.AutoBinary(candidates, job.name, job.project.Name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", job.asset.Name, err)
	}
	return member, nil
}

// writeBinary writes content next to dest, stamps it with mtime and renames
// it over dest. The temporary file never survives a failure.
func writeBinary(dest string, content io.Reader, mtime time.Time) (err error) {
	tmpPath := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+tempSuffix)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|unix.O_NOFOLLOW, 0o755)
	if err != nil {
		return &IOError{Op: "create", Path: tmpPath, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(f, content); err != nil {
		var archiveErr *archive.Error
		if errors.As(err, &archiveErr) {
			return err
		}
		return &IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := f.Chmod(0o755); err != nil {
		return &IOError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: tmpPath, Err: err}
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(tmpPath, mtime, mtime); err != nil {
			_ = os.Remove(tmpPath)
			committed = true
			return &IOError{Op: "set mtime of", Path: tmpPath, Err: err}
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		committed = true
		return &IOError{Op: "rename", Path: tmpPath, Err: err}
	}
	committed = true
	return nil
}

// progressReader reports the number of bytes read so far.
type progressReader struct {
	r      io.Reader
	done   int64
	total  int64
	report func(done, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.report(p.done, p.total)
	}
	return n, err
}
