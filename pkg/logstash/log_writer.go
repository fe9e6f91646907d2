package logstash

import (
	"encoding/gob"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/utils"
)

type LogWriter interface {
	WriteLine(*LogLine) error
	Close() error
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type fileLogWriter struct {
	mu        sync.Mutex
	file      utils.File
	counter   *countingWriter
	encoder   *gob.Encoder
	maxSize   int64
	truncated bool
}

func newFileLogWriter(file utils.File, maxSize int64) *fileLogWriter {
	counter := &countingWriter{w: file}
	return &fileLogWriter{
		file:    file,
		counter: counter,
		encoder: gob.NewEncoder(counter),
		maxSize: maxSize,
	}
}

func (w *fileLogWriter) WriteLine(line *LogLine) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.truncated {
		return nil
	}

	if w.maxSize > 0 && w.counter.n >= w.maxSize {
		w.truncated = true
		line = &LogLine{
			Time:    time.Now(),
			Level:   log.WarningLevel,
			Message: fmt.Sprintf("log truncated at %s", utils.HumanByteSize(w.maxSize)),
		}
	}

	return w.encoder.Encode(line)
}

func (w *fileLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *fileLogWriter) Path() string {
	return w.file.Name()
}
