package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/browsermob/agent/pkg/browser"
	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/logstash"
	"github.com/browsermob/agent/pkg/session"
)

// Handed to a test body. Gives access to the session context bound
// to the worker running the test. Only valid during the body.
type T struct {
	ctx      context.Context
	registry *session.Registry
	log      *log.Prefixed

	// Test log, nil when logs are not kept.
	lines logstash.LogWriter
}

func newT(ctx context.Context, registry *session.Registry, logger *log.Prefixed, lines logstash.LogWriter) *T {
	return &T{ctx: ctx, registry: registry, log: logger, lines: lines}
}

// The browser session of the test.
func (t *T) Session() browser.Session {
	return t.registry.Session(t.ctx)
}

// The test description, e.g. "LoginTest-testLogin".
func (t *T) Description() string {
	return t.registry.Description(t.ctx)
}

// Root directory for artifacts.
func (t *T) RootDir() string {
	return t.registry.RootDir(t.ctx)
}

// Browser selector or job descriptor in use.
func (t *T) Target() string {
	return t.registry.Target(t.ctx)
}

// URL of the application under test.
func (t *T) Endpoint() string {
	return t.registry.Endpoint(t.ctx)
}

// Save a screenshot tagged with tag and return its path.
func (t *T) Screenshot(tag string) (string, error) {
	return t.registry.CaptureArtifact(t.ctx, tag)
}

// Log a message to the agent log and the test log.
func (t *T) Logf(format string, args ...any) {
	t.log.Infof(format, args...)
	record(t.lines, log.InfoLevel, fmt.Sprintf(format, args...))
}

// Append a record to a test log, if one is kept.
func record(lines logstash.LogWriter, level log.LogLevel, message string) {
	if lines == nil {
		return
	}
	if err := lines.WriteLine(&logstash.LogLine{Time: time.Now(), Level: level, Message: message}); err != nil {
		log.Debug("err - log - write:", err)
	}
}
