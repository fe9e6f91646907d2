package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/browsermob/agent/pkg/browser"
	"github.com/browsermob/agent/pkg/utils"
	"github.com/browsermob/agent/pkg/worker"
	"github.com/spf13/afero"
)

var (
	// A context accessor was used on a worker without a registered context.
	ErrNoContext = errors.New("no session context registered")

	// The calling context does not identify a pool worker.
	ErrNoWorker = errors.New("not running on a pool worker")
)

// The session bound to a worker while it runs one test.
type Context struct {
	// Remote browser session owned by the worker.
	Session browser.Session

	// Human readable name of the test, e.g. "LoginTest-testLogin".
	Description string

	// Root directory for artifacts.
	RootDir string

	// Browser selector or derived job descriptor.
	Target string

	// Application URL under test.
	Endpoint string
}

// Binds one session context per worker.
//
// Workers are identified through the context.Context passed to each task,
// see worker.WithID. A worker only ever reads or writes its own slot.
type Registry struct {
	mu       sync.RWMutex
	contexts map[worker.ID]*Context
	fs       utils.Fs
}

func NewRegistry() *Registry {
	return &Registry{
		contexts: map[worker.ID]*Context{},
		fs:       afero.NewOsFs(),
	}
}

// Replace the filesystem artifacts are written to.
func (r *Registry) SetFs(fs utils.Fs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fs = fs
}

// Bind a new session context to the calling worker, replacing any
// previous one. Panics if ctx does not identify a worker.
func (r *Registry) Register(ctx context.Context, session browser.Session, description, rootDir, target, endpoint string) {
	id := mustWorker(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[id] = &Context{
		Session:     session,
		Description: description,
		RootDir:     rootDir,
		Target:      target,
		Endpoint:    endpoint,
	}
}

// Register and return the function that clears the binding again,
// meant to be deferred by the caller.
func (r *Registry) Bind(ctx context.Context, session browser.Session, description, rootDir, target, endpoint string) func() {
	r.Register(ctx, session, description, rootDir, target, endpoint)
	return func() {
		r.Clear(ctx)
	}
}

// Remove the calling worker's binding. Safe to call when nothing is bound.
func (r *Registry) Clear(ctx context.Context) {
	id, ok := worker.FromContext(ctx)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, id)
}

// Returns the calling worker's session context.
func (r *Registry) Current(ctx context.Context) (*Context, error) {
	id, ok := worker.FromContext(ctx)
	if !ok {
		return nil, ErrNoWorker
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContext, id)
	}
	return c, nil
}

// Number of bound contexts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}

// The accessors below panic when no context is registered: a test body
// running without a session is a setup bug, not a recoverable condition.

func (r *Registry) mustCurrent(ctx context.Context) *Context {
	c, err := r.Current(ctx)
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Registry) Session(ctx context.Context) browser.Session {
	return r.mustCurrent(ctx).Session
}

func (r *Registry) Description(ctx context.Context) string {
	return r.mustCurrent(ctx).Description
}

func (r *Registry) RootDir(ctx context.Context) string {
	return r.mustCurrent(ctx).RootDir
}

func (r *Registry) Target(ctx context.Context) string {
	return r.mustCurrent(ctx).Target
}

func (r *Registry) Endpoint(ctx context.Context) string {
	return r.mustCurrent(ctx).Endpoint
}

func mustWorker(ctx context.Context) worker.ID {
	id, ok := worker.FromContext(ctx)
	if !ok {
		panic(ErrNoWorker)
	}
	return id
}
