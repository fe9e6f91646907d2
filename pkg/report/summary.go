package report

import (
	"path/filepath"

	"github.com/browsermob/agent/pkg/runner"
	"github.com/browsermob/agent/pkg/utils"
)

const SummaryFile = "summary.txt"

// Write the batch summary to {root}/summary.txt and return its path.
func WriteSummary(fs utils.Fs, root string, result *runner.Result) (path string, err error) {
	if err := fs.MkdirAll(root, 0755); err != nil {
		return "", err
	}

	path = filepath.Join(root, SummaryFile)
	file, err := fs.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return path, result.WriteSummary(file)
}
