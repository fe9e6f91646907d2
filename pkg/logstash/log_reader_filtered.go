package logstash

import "github.com/browsermob/agent/pkg/log"

type LogFilterFunc func(*LogLine) bool

// Only pass records at or above the given level.
func LevelFilter(level log.LogLevel) LogFilterFunc {
	return func(line *LogLine) bool {
		return log.ShouldLog(line.Level, level)
	}
}

type filteredLogReader struct {
	reader  LogReader
	filters []LogFilterFunc
}

func NewFilteredLogReader(reader LogReader) *filteredLogReader {
	return &filteredLogReader{
		reader: reader,
	}
}

func (r *filteredLogReader) AddFilter(filter LogFilterFunc) {
	r.filters = append(r.filters, filter)
}

func (r *filteredLogReader) Match(line *LogLine) bool {
	for _, filter := range r.filters {
		if !filter(line) {
			return false
		}
	}

	return true
}

func (r *filteredLogReader) ReadLine() (*LogLine, error) {
	for {
		line, err := r.reader.ReadLine()
		if err != nil {
			return nil, err
		}

		if r.Match(line) {
			return line, nil
		}
	}
}

func (r *filteredLogReader) Close() error {
	return r.reader.Close()
}
