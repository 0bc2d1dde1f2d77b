// Package archive implements the Archive Codec (C2): packing a directory
// tree into a gzip-compressed tar stream and extracting it back, oblivious
// to the _schema.sql/_data.sql naming convention layered on top by the
// pipelines. Grounded on internal/backup/engine.go's createArchive and
// internal/restore/engine.go's extractArchive.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dbbackup/internal/errs"
)

// Pack traverses srcDir and writes every non-root entry into destFile as a
// gzip-compressed tar stream. Paths inside the archive are relative to
// srcDir; the root itself is never written as an entry (P6).
func Pack(srcDir, destFile string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return &errs.ArchiveError{Path: srcDir, Op: "pack", Err: err}
	}
	if !info.IsDir() {
		return &errs.ArchiveError{Path: srcDir, Op: "pack", Err: fmt.Errorf("not a directory")}
	}

	if err := os.MkdirAll(filepath.Dir(destFile), 0755); err != nil {
		return &errs.ArchiveError{Path: destFile, Op: "pack", Err: err}
	}
	if fi, err := os.Stat(destFile); err == nil && fi.IsDir() {
		return &errs.ArchiveError{Path: destFile, Op: "pack", Err: fmt.Errorf("destination exists as a directory")}
	}

	out, err := os.Create(destFile)
	if err != nil {
		return &errs.ArchiveError{Path: destFile, Op: "pack", Err: err}
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
		return nil
	})
	if walkErr != nil {
		return &errs.ArchiveError{Path: srcDir, Op: "pack", Err: walkErr}
	}

	if err := tw.Close(); err != nil {
		return &errs.ArchiveError{Path: destFile, Op: "pack", Err: err}
	}
	if err := gz.Close(); err != nil {
		return &errs.ArchiveError{Path: destFile, Op: "pack", Err: err}
	}
	return nil
}

// Unpack creates destDir if absent and extracts archiveFile into it.
// Refuses if destDir exists and is not a directory.
func Unpack(archiveFile, destDir string) error {
	if fi, err := os.Stat(destDir); err == nil && !fi.IsDir() {
		return &errs.ArchiveError{Path: destDir, Op: "unpack", Err: fmt.Errorf("destination exists and is not a directory")}
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return &errs.ArchiveError{Path: destDir, Op: "unpack", Err: err}
	}

	in, err := os.Open(archiveFile)
	if err != nil {
		return &errs.ArchiveError{Path: archiveFile, Op: "unpack", Err: err}
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return &errs.ArchiveError{Path: archiveFile, Op: "unpack", Err: err}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &errs.ArchiveError{Path: archiveFile, Op: "unpack", Err: err}
		}

		// Guard against path traversal via a maliciously-crafted archive.
		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return &errs.ArchiveError{Path: hdr.Name, Op: "unpack", Err: fmt.Errorf("entry escapes destination directory")}
		}
		target := filepath.Join(destDir, cleanName)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return &errs.ArchiveError{Path: target, Op: "unpack", Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return &errs.ArchiveError{Path: target, Op: "unpack", Err: err}
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return &errs.ArchiveError{Path: target, Op: "unpack", Err: err}
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return &errs.ArchiveError{Path: target, Op: "unpack", Err: err}
			}
			f.Close()
		}
	}
	return nil
}
