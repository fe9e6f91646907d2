package logstash

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/utils"
	echo "github.com/labstack/echo/v4"
)

// Serve test logs as plain text. The optional level query parameter
// drops records below that level.
func NewHttpHandler(stash LogStash, r *echo.Echo) {
	r.GET("/logs/:id", func(c echo.Context) error {
		reader, err := stash.Read(c.Param("id"))
		switch {
		case errors.Is(err, utils.ErrBadRequest):
			return c.String(http.StatusBadRequest, err.Error())
		case err != nil:
			return c.String(http.StatusNotFound, err.Error())
		}

		filtered := NewFilteredLogReader(reader)
		defer filtered.Close()

		if level := log.LogLevel(c.QueryParam("level")); level != "" {
			if !log.ValidLogLevel(level) {
				return c.String(http.StatusBadRequest, fmt.Sprintf("invalid log level: %s", level))
			}
			filtered.AddFilter(LevelFilter(level))
		}

		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlain)
		c.Response().WriteHeader(http.StatusOK)
		writer := bufio.NewWriter(c.Response())
		defer writer.Flush()

		for {
			record, err := filtered.ReadLine()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				log.Debug("err - log - read:", err)
				return nil
			}

			ts := record.Time.Local()
			line := fmt.Sprintf(
				"%s.%06d [%7s] %s\n",
				ts.Format("2006-01-02 15:04:05"),
				ts.Nanosecond()/1000,
				record.Level,
				record.Message)

			if _, err := writer.WriteString(line); err != nil {
				return nil
			}
		}
	})
}
