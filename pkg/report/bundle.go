package report

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/browsermob/agent/pkg/utils"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// Archive all regular files below root as a zstd compressed tarball.
// Paths in the archive are relative to root and use forward slashes.
func Bundle(fs utils.Fs, root string, w io.Writer) (err error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := enc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(enc)
	defer func() {
		if closeErr := tw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("Archive write error: %v", err)
		}

		file, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		n, err := io.Copy(tw, file)
		if err != nil {
			return fmt.Errorf("Error archiving %s: %v", path, err)
		}
		if n != info.Size() {
			return fmt.Errorf("Only archived %d bytes of %s; expected %d", n, path, info.Size())
		}
		return nil
	})
}

// Write a bundle of root to the file at dest on fs.
func BundleToFile(fs utils.Fs, root, dest string) (err error) {
	file, err := fs.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return Bundle(fs, root, file)
}
