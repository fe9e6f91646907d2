package logstash

import (
	"encoding/gob"

	"github.com/browsermob/agent/pkg/utils"
)

type LogReader interface {
	// Returns io.EOF after the last record.
	ReadLine() (*LogLine, error)
	Close() error
}

type fileLogReader struct {
	file    utils.File
	decoder *gob.Decoder
}

func newFileLogReader(file utils.File) *fileLogReader {
	return &fileLogReader{
		file:    file,
		decoder: gob.NewDecoder(file),
	}
}

func (r *fileLogReader) ReadLine() (*LogLine, error) {
	line := &LogLine{}
	if err := r.decoder.Decode(line); err != nil {
		return nil, err
	}
	return line, nil
}

func (r *fileLogReader) Close() error {
	return r.file.Close()
}
