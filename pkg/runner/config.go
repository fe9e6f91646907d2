package runner

import (
	"strings"
	"time"

	"github.com/browsermob/agent/pkg/browser"
	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/scheduler"
	"github.com/browsermob/agent/pkg/utils"
)

const (
	DefaultOutputDir   = "./reports"
	DefaultApplication = "http://localhost:9000"
	DefaultMaxLogSize  = "1MiB"
)

// Configuration of one batch of tests, resolved once before the batch starts.
type Config struct {
	// Name of the batch, used to name workers and logs.
	Name string `mapstructure:"name"`

	// Number of tests executed concurrently.
	Threads int `mapstructure:"threads"`

	// Directory where screenshots and reports are written.
	OutputDir string `mapstructure:"output_dir"`

	// Host of the remote browser automation server.
	Server string `mapstructure:"server"`

	// Port of the remote browser automation server.
	ServerPort int `mapstructure:"server_port"`

	// URL of the application under test.
	Application string `mapstructure:"application"`

	// Browser selector. A "platform:browser:version" selector
	// requests a hosted browser using the sauce credentials.
	Browser string `mapstructure:"browser"`

	// Credentials for hosted browsers.
	Sauce browser.Credentials `mapstructure:"sauce"`

	// How long to wait for workers to wind down after the batch.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	// Size limit of each test log, e.g. "1MiB". Zero disables the limit.
	MaxLogSize string `mapstructure:"max_log_size"`

	maxLogSize int64
}

func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "agent"
	}
	if c.Threads <= 0 {
		c.Threads = scheduler.DefaultPoolSize
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Server == "" {
		c.Server = browser.DefaultServer
	}
	if c.ServerPort <= 0 {
		c.ServerPort = browser.DefaultPort
	}
	if c.Application == "" {
		c.Application = DefaultApplication
	}
	if c.Browser == "" {
		c.Browser = browser.DefaultSelector
	}
	if c.MaxLogSize == "" {
		c.MaxLogSize = DefaultMaxLogSize
	}
}

// Checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Threads <= 0 {
		return utils.ConfigError("the thread count must be greater than zero")
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return utils.ConfigError("an output directory is required")
	}

	if strings.TrimSpace(c.Application) == "" {
		return utils.ConfigError("an application URL is required")
	}

	if c.MaxLogSize != "" {
		size, err := utils.ParseSize(c.MaxLogSize)
		if err != nil {
			return utils.ConfigError("invalid max_log_size: %v", err)
		}
		c.maxLogSize = size
	}

	if _, ok := browser.ParseSelector(c.Browser); ok {
		if c.Sauce.Username == "" || c.Sauce.AccessKey == "" {
			return utils.ConfigError("sauce credentials are required for browser %q", c.Browser)
		}
	}

	return nil
}

// Size limit of each test log in bytes, valid after Validate.
func (c *Config) MaxSize() int64 {
	return c.maxLogSize
}

func (c *Config) Log() {
	log.Info("Batch configuration:")
	log.Infof("  name = %s", c.Name)
	log.Infof("  threads = %d", c.Threads)
	log.Infof("  output_dir = %s", c.OutputDir)
	log.Infof("  server = %s:%d", c.Server, c.ServerPort)
	log.Infof("  application = %s", c.Application)
	log.Infof("  browser = %s", c.Browser)
	log.Infof("  max_log_size = %s", c.MaxLogSize)
	if c.Sauce.Username != "" {
		log.Infof("  sauce.username = %s", c.Sauce.Username)
	}
}
