package report

import (
	"archive/tar"
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/browsermob/agent/pkg/runner"
	"github.com/browsermob/agent/pkg/scheduler"
	"github.com/browsermob/agent/pkg/utils"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleExtract(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"LoginTest-testLogin/FAILURE.png": "png",
		"Smoke-index/loaded.png":          "loaded",
		"summary.txt":                     "1 tests, 1 passed\n",
	}
	for name, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(filepath.Join("/reports", name)), 0755))
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/reports", name), []byte(content), 0644))
	}

	require.NoError(t, BundleToFile(fs, "/reports", "/reports.tar.zst"))

	archive, err := fs.Open("/reports.tar.zst")
	require.NoError(t, err)
	defer archive.Close()

	require.NoError(t, Extract(fs, archive, "/unpacked"))

	for name, content := range files {
		data, err := afero.ReadFile(fs, filepath.Join("/unpacked", name))
		require.NoError(t, err, name)
		assert.Equal(t, content, string(data), name)
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	enc, err := zstd.NewWriter(buf)
	require.NoError(t, err)

	tw := tar.NewWriter(enc)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil", Mode: 0644, Size: 1, Typeflag: tar.TypeReg}))
	_, err = tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, enc.Close())

	fs := afero.NewMemMapFs()
	err = Extract(fs, buf, "/unpacked")
	assert.ErrorIs(t, err, utils.ErrBadRequest)

	exists, _ := afero.Exists(fs, "/evil")
	assert.False(t, exists)
}

func TestWriteSummary(t *testing.T) {
	fs := afero.NewMemMapFs()
	result := &runner.Result{
		Outcomes: []runner.Outcome{
			{Description: "A-one", Status: scheduler.TaskSucceeded, Duration: time.Second},
		},
		Passed: 1,
	}

	path, err := WriteSummary(fs, "/reports", result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/reports", SummaryFile), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SUCCEEDED A-one (1s)\n")
	assert.Contains(t, string(data), "1 tests, 1 passed, 0 failed, 0 cancelled\n")
}
