// Package archive freezes job inputs into tarballs at submission time and
// stages them back out inside allocations. Frozen archives make a job
// reproducible across resubmissions: the code that runs in allocation N+1 is
// byte-identical to what was submitted, whatever happened to the working
// tree in between.
package archive

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Freeze writes a gzipped tarball of srcDir to dst. Entries are re-rooted
// under rootName/ so extraction always produces a single well-known
// directory regardless of where the source tree lived.
func Freeze(srcDir, dst, rootName string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", dst, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := rootName
		if rel != "." {
			name = rootName + "/" + filepath.ToSlash(rel)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
		}
		if !info.Mode().IsRegular() && !info.IsDir() && info.Mode()&fs.ModeSymlink == 0 {
			utils.PrintDebug("Skipping special file in archive: %s", utils.StylePath(path))
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("freeze %s: %w", srcDir, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finish archive %s: %w", dst, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish archive %s: %w", dst, err)
	}
	return out.Close()
}

// Extract unpacks a tarball (gzipped or plain, detected from the magic
// bytes) into destDir. Entry paths are confined to destDir; an archive that
// tries to climb out is rejected.
func Extract(src, destDir string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", src, err)
	}
	defer in.Close()

	br := bufio.NewReader(in)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("read archive %s: %w", src, err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive %s: %w", src, err)
		}
		target, err := securePath(destDir, hdr.Name)
		if err != nil {
			return fmt.Errorf("archive %s: %w", src, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0o200); err != nil {
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), utils.PermDir); err != nil {
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), utils.PermDir); err != nil {
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
		case tar.TypeXGlobalHeader:
			// pax metadata, nothing to materialize
		default:
			utils.PrintDebug("Skipping unsupported archive entry %q (type %d)", hdr.Name, hdr.Typeflag)
		}
	}
}

// securePath joins name onto destDir and rejects escapes via ".." or
// absolute entry names.
func securePath(destDir, name string) (string, error) {
	clean := filepath.Clean(filepath.Join(destDir, filepath.FromSlash(name)))
	base := filepath.Clean(destDir)
	if clean != base && !strings.HasPrefix(clean, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q escapes extraction directory", name)
	}
	return clean, nil
}
