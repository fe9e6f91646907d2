package logstash

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// Mock config
type MockLogStashConfig struct {
	mock.Mock
}

func (c *MockLogStashConfig) MaxSize() int64 {
	a := c.Called()
	return int64(a.Int(0))
}

type LogStashTestSuite struct {
	suite.Suite
	config MockLogStashConfig
	fs     utils.Fs
	stash  LogStash
}

func (s *LogStashTestSuite) SetupTest() {
	s.config = MockLogStashConfig{}
	s.config.On("MaxSize").Return(0x10000)
	s.fs = afero.NewMemMapFs()

	s.stash = NewLogStash(&s.config, s.fs)
}

func (s *LogStashTestSuite) writeLines(writer LogWriter, level log.LogLevel, data string, count int) {
	for i := 0; i < count; i++ {
		assert.NoError(s.T(), writer.WriteLine(&LogLine{
			Time:    time.Now(),
			Level:   level,
			Message: data,
		}))
	}
}

func (s *LogStashTestSuite) readAll(reader LogReader) []*LogLine {
	var lines []*LogLine
	for {
		line, err := reader.ReadLine()
		if err == io.EOF {
			return lines
		}
		if !assert.NoError(s.T(), err) {
			return lines
		}
		lines = append(lines, line)
	}
}

func (s *LogStashTestSuite) TestWriteRead() {
	writer, err := s.stash.Append("task1")
	s.Require().NoError(err)
	s.writeLines(writer, log.InfoLevel, "navigated to /home", 3)
	s.writeLines(writer, log.ErrorLevel, "title mismatch", 1)
	s.Require().NoError(writer.Close())

	reader, err := s.stash.Read("task1")
	s.Require().NoError(err)
	defer reader.Close()

	lines := s.readAll(reader)
	s.Require().Len(lines, 4)
	assert.Equal(s.T(), "navigated to /home", lines[0].Message)
	assert.Equal(s.T(), log.LogLevel(log.ErrorLevel), lines[3].Level)
}

func (s *LogStashTestSuite) TestAppendReplaces() {
	writer, err := s.stash.Append("task1")
	s.Require().NoError(err)
	s.writeLines(writer, log.InfoLevel, "first", 5)
	writer.Close()

	writer, err = s.stash.Append("task1")
	s.Require().NoError(err)
	s.writeLines(writer, log.InfoLevel, "second", 1)
	writer.Close()

	reader, err := s.stash.Read("task1")
	s.Require().NoError(err)
	defer reader.Close()

	lines := s.readAll(reader)
	s.Require().Len(lines, 1)
	assert.Equal(s.T(), "second", lines[0].Message)
}

func (s *LogStashTestSuite) TestTruncation() {
	writer, err := s.stash.Append("big")
	s.Require().NoError(err)
	s.writeLines(writer, log.InfoLevel, strings.Repeat("1", 1024), 100)
	writer.Close()

	reader, err := s.stash.Read("big")
	s.Require().NoError(err)
	defer reader.Close()

	lines := s.readAll(reader)
	s.Require().NotEmpty(lines)
	assert.Less(s.T(), len(lines), 100)

	last := lines[len(lines)-1]
	assert.Equal(s.T(), log.LogLevel(log.WarningLevel), last.Level)
	assert.Equal(s.T(), "log truncated at 64KiB", last.Message)
}

func (s *LogStashTestSuite) TestInvalidId() {
	for _, id := range []string{"", "../escape", "a/b", "a\\b"} {
		_, err := s.stash.Append(id)
		assert.ErrorIs(s.T(), err, utils.ErrBadRequest, id)

		_, err = s.stash.Read(id)
		assert.ErrorIs(s.T(), err, utils.ErrBadRequest, id)
	}
}

func (s *LogStashTestSuite) TestReadMissing() {
	_, err := s.stash.Read("missing")
	assert.ErrorIs(s.T(), err, utils.ErrNotFound)
}

func (s *LogStashTestSuite) TestHttp() {
	writer, err := s.stash.Append("task1")
	s.Require().NoError(err)
	s.writeLines(writer, log.DebugLevel, "clicked login", 1)
	s.writeLines(writer, log.ErrorLevel, "login failed", 1)
	writer.Close()

	e := echo.New()
	NewHttpHandler(s.stash, e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/task1", nil))
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), "[  debug] clicked login\n")
	assert.Contains(s.T(), rec.Body.String(), "[  error] login failed\n")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/task1?level=warn", nil))
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.NotContains(s.T(), rec.Body.String(), "clicked login")
	assert.Contains(s.T(), rec.Body.String(), "login failed")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/task1?level=loud", nil))
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/missing", nil))
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func TestLogStash(t *testing.T) {
	suite.Run(t, new(LogStashTestSuite))
}

type MockLogReader struct {
	lines []*LogLine
}

func (r *MockLogReader) ReadLine() (*LogLine, error) {
	if len(r.lines) == 0 {
		return nil, io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *MockLogReader) Close() error {
	return nil
}

func TestLogFilter(t *testing.T) {
	reader := NewFilteredLogReader(&MockLogReader{
		lines: []*LogLine{
			{Level: log.TraceLevel, Message: "trace"},
			{Level: log.InfoLevel, Message: "info"},
			{Level: log.ErrorLevel, Message: "error"},
		},
	})
	reader.AddFilter(LevelFilter(log.InfoLevel))

	line, err := reader.ReadLine()
	assert.NoError(t, err)
	assert.Equal(t, "info", line.Message)

	line, err = reader.ReadLine()
	assert.NoError(t, err)
	assert.Equal(t, "error", line.Message)

	_, err = reader.ReadLine()
	assert.Equal(t, io.EOF, err)
}
