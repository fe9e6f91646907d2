package logstash

import (
	"fmt"
	"strings"
	"time"

	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/utils"
)

// One record of a test log.
type LogLine struct {
	Time    time.Time
	Level   log.LogLevel
	Message string
}

type LogStashConfig interface {
	// Get the maximum allowed size of a single log.
	// Records written past this size are dropped.
	// If this is 0, logs are unbounded.
	MaxSize() int64
}

type LogStash interface {
	// Create the log of a test, replacing any previous log with the same id.
	Append(id string) (LogWriter, error)

	// Read the log of a test.
	Read(id string) (LogReader, error)
}

type logStash struct {
	config LogStashConfig
	fs     utils.Fs
}

// Create a log stash storing one file per test in fs.
func NewLogStash(config LogStashConfig, fs utils.Fs) LogStash {
	return &logStash{
		config: config,
		fs:     fs,
	}
}

func validId(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("%w: invalid log id %q", utils.ErrBadRequest, id)
	}
	return nil
}

func (s *logStash) Append(id string) (LogWriter, error) {
	if err := validId(id); err != nil {
		return nil, err
	}

	file, err := s.fs.Create(id)
	if err != nil {
		return nil, err
	}

	log.Debug("add - log - id:", id)
	return newFileLogWriter(file, s.config.MaxSize()), nil
}

func (s *logStash) Read(id string) (LogReader, error) {
	if err := validId(id); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(id)
	if err != nil {
		return nil, fmt.Errorf("%w: log %s", utils.ErrNotFound, id)
	}

	return newFileLogReader(file), nil
}
