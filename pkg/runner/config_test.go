package runner

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/browsermob/agent/pkg/browser"
	"github.com/browsermob/agent/pkg/scheduler"
	"github.com/browsermob/agent/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	config := &Config{}
	config.SetDefaults()

	assert.Equal(t, "agent", config.Name)
	assert.Equal(t, scheduler.DefaultPoolSize, config.Threads)
	assert.Equal(t, DefaultOutputDir, config.OutputDir)
	assert.Equal(t, browser.DefaultServer, config.Server)
	assert.Equal(t, browser.DefaultPort, config.ServerPort)
	assert.Equal(t, DefaultApplication, config.Application)
	assert.Equal(t, browser.DefaultSelector, config.Browser)
	assert.Equal(t, DefaultMaxLogSize, config.MaxLogSize)

	assert.NoError(t, config.Validate())
	assert.Equal(t, int64(1<<20), config.MaxSize())
}

func TestConfigValidate(t *testing.T) {
	testData := []struct {
		name   string
		modify func(c *Config)
	}{
		{"threads", func(c *Config) { c.Threads = 0 }},
		{"output dir", func(c *Config) { c.OutputDir = " " }},
		{"application", func(c *Config) { c.Application = "" }},
		{"log size", func(c *Config) { c.MaxLogSize = "lots" }},
		{"credentials", func(c *Config) { c.Browser = "Linux:chrome:120" }},
		{"access key", func(c *Config) {
			c.Browser = "Linux:chrome:120"
			c.Sauce.Username = "u"
		}},
	}

	for _, data := range testData {
		config := &Config{}
		config.SetDefaults()
		data.modify(config)
		assert.ErrorIs(t, config.Validate(), utils.ErrConfig, data.name)
	}

	config := &Config{ShutdownGrace: time.Second}
	config.SetDefaults()
	config.Browser = "Linux:chrome:120"
	config.Sauce = browser.Credentials{Username: "u", AccessKey: "k"}
	assert.NoError(t, config.Validate())
}

func TestResultSummary(t *testing.T) {
	result := &Result{}
	result.add(Outcome{Description: "A-one", Status: scheduler.TaskSucceeded, Duration: 1500 * time.Millisecond})
	result.add(Outcome{Description: "A-two", Status: scheduler.TaskFailed, Err: errors.New("boom"), Screenshot: "/r/A-two/FAILURE.png"})
	result.add(Outcome{Description: "A-three", Status: scheduler.TaskCancelled, Err: scheduler.ErrCancelled})

	assert.False(t, result.Success())
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Cancelled)

	buf := &bytes.Buffer{}
	assert.NoError(t, result.WriteSummary(buf))
	assert.Contains(t, buf.String(), "A-one (1.5s)\n")
	assert.Contains(t, buf.String(), "A-two (0s): boom [/r/A-two/FAILURE.png]\n")
	assert.Contains(t, buf.String(), "A-three (0s): task cancelled\n")
	assert.Contains(t, buf.String(), "3 tests, 1 passed, 1 failed, 1 cancelled\n")
}
