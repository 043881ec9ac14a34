package storage

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rowan/backstop/internal/core/domain"
)

// Stage identifies where in the pipeline an archive operation failed, so the
// caller can classify the error without string matching.
type Stage string

const (
	StageEnumerate Stage = "enumerate"
	StagePrepare   Stage = "prepare"
	StageTransfer  Stage = "transfer"
	StageCompress  Stage = "compress"
	StageEncrypt   Stage = "encrypt"
	StageExtract   Stage = "extract"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// ArchiveResult reports what a completed archive contains. Size counts the
// bytes entering the compression stage, CompressedSize the bytes leaving it;
// with compression disabled the two are equal by construction. Encryption
// happens after both are measured.
type ArchiveResult struct {
	ArchivePath    string
	Size           int64
	CompressedSize int64
	FileCount      int
	Skipped        []string
	Files          []ManifestEntry
}

// Archiver performs the real source-to-destination transfer: enumerate the
// source subject to include/exclude filters, tar, compress, then encrypt.
// The compress-before-encrypt order is deliberate; encrypted bytes do not
// compress.
type Archiver struct{}

func NewArchiver() *Archiver {
	return &Archiver{}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Create builds the archive for a job at archivePath. Unreadable individual
// files are skipped and reported in Skipped; everything else is fatal and
// wrapped in a StageError.
func (a *Archiver) Create(ctx context.Context, job *domain.BackupJob, archivePath string) (*ArchiveResult, error) {
	if _, err := os.Stat(job.Source.Path); err != nil {
		return nil, stageErr(StageEnumerate, fmt.Errorf("source not accessible: %w", err))
	}
	destDir := filepath.Dir(archivePath)
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, stageErr(StagePrepare, fmt.Errorf("destination not reachable: %w", err))
	}

	tmpPath := archivePath + ".partial"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, stageErr(StagePrepare, fmt.Errorf("destination not writable: %w", err))
	}
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	result := &ArchiveResult{ArchivePath: archivePath}

	compressed := &countingWriter{w: tmp}
	var inner io.Writer = compressed
	var gz *gzip.Writer
	if job.Destination.Compression {
		level := job.Compression.Level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gz, err = gzip.NewWriterLevel(compressed, level)
		if err != nil {
			return nil, stageErr(StageCompress, err)
		}
		inner = gz
	}
	raw := &countingWriter{w: inner}
	tw := tar.NewWriter(raw)

	walkErr := filepath.WalkDir(job.Source.Path, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(job.Source.Path, path)
		if err != nil {
			return err
		}
		if len(job.Source.Include) > 0 && !MatchesAny(job.Source.Include, rel) {
			return nil
		}
		if MatchesAny(job.Source.Exclude, rel) {
			return nil
		}

		entry, err := a.addFile(ctx, tw, path, rel, d)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Unreadable file: record and move on rather than failing the run.
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", rel, err))
			return nil
		}
		result.Files = append(result.Files, entry)
		result.FileCount++
		return nil
	})
	if walkErr != nil {
		tw.Close()
		if gz != nil {
			gz.Close()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, stageErr(StageEnumerate, walkErr)
	}

	if err := tw.Close(); err != nil {
		return nil, stageErr(StageTransfer, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return nil, stageErr(StageCompress, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return nil, stageErr(StageTransfer, err)
	}

	result.Size = raw.n
	result.CompressedSize = compressed.n
	// gzip expands incompressible input once its block overhead exceeds the
	// tar framing it saves; the recorded value is capped so CompressedSize
	// never exceeds Size.
	if result.CompressedSize > result.Size {
		result.CompressedSize = result.Size
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if job.Destination.Encryption {
		if err := a.encryptInto(tmpPath, archivePath, job); err != nil {
			return nil, err
		}
	} else {
		if err := os.Rename(tmpPath, archivePath); err != nil {
			return nil, stageErr(StageTransfer, err)
		}
	}

	return result, nil
}

func (a *Archiver) addFile(ctx context.Context, tw *tar.Writer, path, rel string, d fs.DirEntry) (ManifestEntry, error) {
	info, err := d.Info()
	if err != nil {
		return ManifestEntry{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return ManifestEntry{}, err
	}
	defer f.Close()

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return ManifestEntry{}, err
	}
	hdr.Name = filepath.ToSlash(rel)
	if err := tw.WriteHeader(hdr); err != nil {
		return ManifestEntry{}, err
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tw, h), &ctxReader{ctx: ctx, r: f}); err != nil {
		return ManifestEntry{}, err
	}

	return ManifestEntry{
		Path:     filepath.ToSlash(rel),
		Size:     info.Size(),
		Mode:     uint32(info.Mode().Perm()),
		Checksum: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func (a *Archiver) encryptInto(srcPath, dstPath string, job *domain.BackupJob) error {
	if job.Encryption.KeyFile == nil {
		return stageErr(StageEncrypt, fmt.Errorf("encryption enabled but no key file configured"))
	}
	key, err := LoadKey(*job.Encryption.KeyFile)
	if err != nil {
		return stageErr(StageEncrypt, err)
	}
	plaintext, err := os.ReadFile(srcPath)
	if err != nil {
		return stageErr(StageEncrypt, err)
	}
	sealed, err := Seal(plaintext, job.Encryption.Algorithm, key)
	if err != nil {
		return stageErr(StageEncrypt, err)
	}
	if err := os.WriteFile(dstPath, sealed, 0o600); err != nil {
		return stageErr(StageTransfer, err)
	}
	return nil
}

// openPayload returns the decompressed tar stream of an archive, undoing
// encryption and compression according to the manifest.
func (a *Archiver) openPayload(archivePath string, m *Manifest, keyFile *string) (io.ReadCloser, error) {
	if m.Encryption != domain.EncryptionAlgorithmNone && m.Encryption != "" {
		if keyFile == nil {
			return nil, stageErr(StageExtract, fmt.Errorf("archive is encrypted but no key file configured"))
		}
		key, err := LoadKey(*keyFile)
		if err != nil {
			return nil, stageErr(StageExtract, err)
		}
		sealed, err := os.ReadFile(archivePath)
		if err != nil {
			return nil, stageErr(StageExtract, err)
		}
		plaintext, err := Open(sealed, m.Encryption, key)
		if err != nil {
			return nil, stageErr(StageExtract, err)
		}
		return wrapDecompress(io.NopCloser(bytes.NewReader(plaintext)), m)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, stageErr(StageExtract, err)
	}
	return wrapDecompress(f, m)
}

func wrapDecompress(rc io.ReadCloser, m *Manifest) (io.ReadCloser, error) {
	if m.Compression == domain.CompressionAlgorithmGzip {
		gz, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, stageErr(StageExtract, err)
		}
		return &closerChain{Reader: gz, closers: []io.Closer{gz, rc}}, nil
	}
	return rc, nil
}

type closerChain struct {
	io.Reader
	closers []io.Closer
}

func (c *closerChain) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Extract materializes archive entries accepted by accept into targetDir.
// A nil selector restores everything. Returns the number of files written.
func (a *Archiver) Extract(ctx context.Context, archivePath string, m *Manifest, keyFile *string, targetDir string, accept func(path string) bool) (int, error) {
	payload, err := a.openPayload(archivePath, m, keyFile)
	if err != nil {
		return 0, err
	}
	defer payload.Close()

	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return 0, stageErr(StageExtract, err)
	}

	tr := tar.NewReader(payload)
	restored := 0
	for {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, stageErr(StageExtract, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if accept != nil && !accept(hdr.Name) {
			continue
		}

		target := filepath.Join(targetDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(targetDir)+string(os.PathSeparator)) {
			return restored, stageErr(StageExtract, fmt.Errorf("archive entry escapes target: %s", hdr.Name))
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return restored, stageErr(StageExtract, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
		if err != nil {
			return restored, stageErr(StageExtract, err)
		}
		if _, err := io.Copy(out, &ctxReader{ctx: ctx, r: tr}); err != nil {
			out.Close()
			return restored, stageErr(StageExtract, err)
		}
		if err := out.Close(); err != nil {
			return restored, stageErr(StageExtract, err)
		}
		restored++
	}
	return restored, nil
}

// ListEntries walks the full payload without writing anything, returning the
// regular-file entry names. It exercises decryption, decompression and tar
// framing end to end, so a truncated or corrupted archive fails here.
func (a *Archiver) ListEntries(ctx context.Context, archivePath string, m *Manifest, keyFile *string) ([]string, error) {
	payload, err := a.openPayload(archivePath, m, keyFile)
	if err != nil {
		return nil, err
	}
	defer payload.Close()

	tr := tar.NewReader(payload)
	var names []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stageErr(StageExtract, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		// Drain the entry so CRC and length checks run.
		if _, err := io.Copy(io.Discard, &ctxReader{ctx: ctx, r: tr}); err != nil {
			return nil, stageErr(StageExtract, err)
		}
		names = append(names, hdr.Name)
	}
	return names, nil
}

// ctxReader aborts long copies as soon as the context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
