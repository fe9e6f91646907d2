package report

import (
	"archive/tar"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/browsermob/agent/pkg/utils"
	"github.com/klauspost/compress/zstd"
)

// Unpack a bundle written by Bundle into dir on fs.
// Only regular files and directories are restored.
func Extract(fs utils.Fs, r io.Reader, dir string) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()

	madeDir := map[string]bool{}
	tr := tar.NewReader(dec)

	for {
		f, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("Archive read error: %v", err)
		}

		rel := filepath.FromSlash(f.Name)
		if filepath.IsAbs(rel) || strings.HasPrefix(filepath.Clean(rel), "..") {
			return fmt.Errorf("%w: archive entry %s escapes %s", utils.ErrBadRequest, f.Name, dir)
		}
		abs := filepath.Join(dir, rel)

		mode := f.FileInfo().Mode()
		switch f.Typeflag {
		case tar.TypeReg:
			parent := filepath.Dir(abs)
			if !madeDir[parent] {
				if err := fs.MkdirAll(parent, 0755); err != nil {
					return err
				}
				madeDir[parent] = true
			}
			if err := extractFile(fs, tr, abs, f); err != nil {
				return err
			}
		case tar.TypeDir:
			if err := fs.MkdirAll(abs, mode.Perm()); err != nil {
				return err
			}
			madeDir[abs] = true
		default:
			return fmt.Errorf("Archive entry %s contained unsupported file type %v", f.Name, mode)
		}
	}
	return nil
}

func extractFile(fs utils.Fs, r io.Reader, path string, header *tar.Header) (err error) {
	wf, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := wf.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(wf, r)
	if err != nil {
		return fmt.Errorf("Error writing to %s: %v", path, err)
	}
	if n != header.Size {
		return fmt.Errorf("Only wrote %d bytes to %s; expected %d", n, path, header.Size)
	}
	return nil
}
