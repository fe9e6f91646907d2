package utils

import (
	"time"

	"github.com/browsermob/agent/pkg/log"
	"github.com/labstack/echo/v4"
)

// Log every request of the agent's status endpoints. Server errors are
// logged as warnings, everything else at trace level.
func HttpLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		elapsed := time.Since(start).Round(time.Microsecond)

		req, res := c.Request(), c.Response()
		if err != nil || res.Status >= 500 {
			log.Warnf("%4s %s %v %v: %v", req.Method, req.URL, res.Status, elapsed, err)
		} else {
			log.Tracef("%4s %s %v %v", req.Method, req.URL, res.Status, elapsed)
		}
		return err
	}
}
