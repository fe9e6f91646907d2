package session

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"

	"github.com/browsermob/agent/pkg/worker"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var png = []byte("\x89PNG\r\n\x1a\nfake")

func newArtifactRegistry(t *testing.T, sess *MockSession, description string) (*Registry, afero.Fs, context.Context) {
	fs := afero.NewMemMapFs()
	registry := NewRegistry()
	registry.SetFs(fs)

	ctx := worker.WithID(context.Background(), "w1")
	registry.Register(ctx, sess, description, "/reports", "*firefox3", "http://app")
	return registry, fs, ctx
}

func TestCaptureArtifact(t *testing.T) {
	sess := &MockSession{}
	sess.On("CaptureScreenshot", mock.Anything).Return(base64.StdEncoding.EncodeToString(png), nil)

	registry, fs, ctx := newArtifactRegistry(t, sess, "LoginTest-testLogin")

	path, err := registry.CaptureArtifact(ctx, "FAILURE")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/reports", "LoginTest-testLogin", "FAILURE.png"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, png, data)

	exists, _ := afero.Exists(fs, path+".tmp")
	assert.False(t, exists)
	sess.AssertExpectations(t)
}

func TestCaptureArtifactDataUrl(t *testing.T) {
	sess := &MockSession{}
	sess.On("CaptureScreenshot", mock.Anything).Return("data:image/png;base64,"+base64.StdEncoding.EncodeToString(png), nil)

	registry, fs, ctx := newArtifactRegistry(t, sess, "Smoke-index")

	path, err := registry.CaptureArtifact(ctx, "loaded")
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestCaptureArtifactSanitizesNames(t *testing.T) {
	sess := &MockSession{}
	sess.On("CaptureScreenshot", mock.Anything).Return(base64.StdEncoding.EncodeToString(png), nil)

	registry, _, ctx := newArtifactRegistry(t, sess, "../escape/Test [chrome 1]")

	path, err := registry.CaptureArtifact(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/reports", "__escape_Test [chrome 1]", "a_b.png"), path)
}

func TestCaptureArtifactErrors(t *testing.T) {
	boom := errors.New("browser gone")

	sess := &MockSession{}
	sess.On("CaptureScreenshot", mock.Anything).Return("", boom).Once()
	sess.On("CaptureScreenshot", mock.Anything).Return("not base64!", nil).Once()
	sess.On("CaptureScreenshot", mock.Anything).Return("", nil).Once()

	registry, fs, ctx := newArtifactRegistry(t, sess, "T-m")

	_, err := registry.CaptureArtifact(ctx, "x")
	assert.ErrorIs(t, err, boom)

	_, err = registry.CaptureArtifact(ctx, "x")
	assert.Error(t, err)

	_, err = registry.CaptureArtifact(ctx, "x")
	assert.Error(t, err)

	exists, _ := afero.DirExists(fs, filepath.Join("/reports", "T-m"))
	assert.False(t, exists)
}

func TestCaptureArtifactWithoutContext(t *testing.T) {
	registry := NewRegistry()
	registry.SetFs(afero.NewMemMapFs())

	_, err := registry.CaptureArtifact(worker.WithID(context.Background(), "w1"), "x")
	assert.ErrorIs(t, err, ErrNoContext)
}
