package utils

import "github.com/spf13/afero"

// Dependency injection for Afero
type Fs afero.Fs

type File afero.File

// Create a filesystem rooted at dir on disk, creating dir if needed.
func NewBasePathFs(dir string) (Fs, error) {
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(dir, 0777); err != nil {
		return nil, err
	}
	return afero.NewBasePathFs(osfs, dir), nil
}
