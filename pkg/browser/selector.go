package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

const DefaultSelector = "*firefox3"

// A browser selector of the form "platform:browser:version",
// e.g. "Windows 2003:firefox:3.0". Any other selector is passed
// to the automation server unchanged.
type Selector struct {
	OS      string
	Browser string
	Version string
}

// Parse a three part selector. Returns false for anything else.
func ParseSelector(selector string) (Selector, bool) {
	parts := strings.Split(selector, ":")
	if len(parts) != 3 {
		return Selector{}, false
	}
	return Selector{OS: parts[0], Browser: parts[1], Version: parts[2]}, true
}

// Job name for a test method, e.g. "testLogin [firefox 3]".
func (s Selector) JobName(method string) string {
	version := ""
	if s.Version != "" {
		version = s.Version[:1]
	}
	return fmt.Sprintf("%s [%s %s]", method, s.Browser, version)
}

// Credentials of the hosted browser provider.
type Credentials struct {
	Username  string `mapstructure:"username"`
	AccessKey string `mapstructure:"access_key"`
}

// Structured job request for a hosted browser provider.
type JobDescriptor struct {
	Username       string            `json:"username"`
	AccessKey      string            `json:"access-key"`
	OS             string            `json:"os"`
	Browser        string            `json:"browser"`
	BrowserVersion string            `json:"browser-version"`
	JobName        string            `json:"job-name"`
	Tags           map[string]string `json:"tags,omitempty"`
}

func (d *JobDescriptor) String() string {
	data, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Resolve the browser string and job name used for one test.
//
// A three part selector yields a JSON job descriptor carrying the
// credentials and a job name derived from the method. Any other selector,
// including an empty one which selects DefaultSelector, is returned as is
// with the job name "{class}-{method}".
func Resolve(selector string, creds Credentials, platform *Platform, class, method string) (browser string, jobName string) {
	jobName = class + "-" + method

	if selector == "" {
		return DefaultSelector, jobName
	}

	sel, ok := ParseSelector(selector)
	if !ok {
		return selector, jobName
	}

	jobName = sel.JobName(method)
	descriptor := &JobDescriptor{
		Username:       creds.Username,
		AccessKey:      creds.AccessKey,
		OS:             sel.OS,
		Browser:        sel.Browser,
		BrowserVersion: sel.Version,
		JobName:        jobName,
	}
	if platform != nil && len(platform.Properties) > 0 {
		descriptor.Tags = platform.Map()
	}
	return descriptor.String(), jobName
}
