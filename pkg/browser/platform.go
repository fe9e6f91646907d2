package browser

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/spf13/viper"
)

type Property struct {
	Key   string
	Value string
}

// Properties describing the agent running the tests. They are attached
// as tags to job descriptors so that hosted jobs can be traced back to
// the machine that requested them.
type Platform struct {
	Properties []*Property
}

func NewPlatform() *Platform {
	return &Platform{
		Properties: []*Property{},
	}
}

// NewPlatformWithDefaults creates a new platform with default properties
// like the architecture, operating system, a unique machine id and the hostname.
func NewPlatformWithDefaults() *Platform {
	p := NewPlatform()
	p.addDefaults()
	return p
}

func (p *Platform) addDefaults() {
	p.AddProperty("node.arch", runtime.GOARCH)
	p.AddProperty("node.os", runtime.GOOS)
	if id, err := machineid.ProtectedID("browsermob-agent"); err == nil {
		p.AddProperty("node.id", id)
	}
	if hostname, err := os.Hostname(); err == nil {
		p.AddProperty("agent.hostname", hostname)
	}
}

func (p *Platform) AddProperty(key, value string) {
	p.Properties = append(p.Properties, &Property{Key: key, Value: value})
}

// Map returns the properties as a map. Later properties win over
// earlier ones with the same key.
func (p *Platform) Map() map[string]string {
	d := map[string]string{}

	for _, property := range p.Properties {
		d[property.Key] = property.Value
	}

	return d
}

// String returns a string representation of the platform.
func (p *Platform) String() string {
	data := bytes.Buffer{}
	for _, prop := range p.Properties {
		fmt.Fprintf(&data, "%s=%s\n", prop.Key, prop.Value)
	}
	return data.String()
}

// LoadConfig appends properties from the "platform" setting, either a
// comma separated string (environment) or a list of "key=value" strings.
func (p *Platform) LoadConfig(v *viper.Viper) error {
	for _, item := range v.GetStringSlice("platform") {
		for _, config := range strings.Split(item, ",") {
			if strings.TrimSpace(config) == "" {
				continue
			}

			key, value, ok := strings.Cut(config, "=")
			if !ok {
				return fmt.Errorf("invalid platform property: %s", config)
			}

			p.AddProperty(strings.TrimSpace(key), strings.TrimSpace(value))
		}
	}

	return nil
}
