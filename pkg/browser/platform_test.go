package browser

import (
	"runtime"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestPlatformDefaults(t *testing.T) {
	p := NewPlatformWithDefaults()
	props := p.Map()

	assert.Equal(t, runtime.GOARCH, props["node.arch"])
	assert.Equal(t, runtime.GOOS, props["node.os"])
}

func TestPlatformMapLastWins(t *testing.T) {
	p := NewPlatform()
	p.AddProperty("label", "a")
	p.AddProperty("label", "b")

	assert.Equal(t, map[string]string{"label": "b"}, p.Map())
	assert.Equal(t, "label=a\nlabel=b\n", p.String())
}

func TestPlatformLoadConfig(t *testing.T) {
	v := viper.New()
	v.Set("platform", []string{"team=web", "ci = yes"})

	p := NewPlatform()
	assert.NoError(t, p.LoadConfig(v))
	assert.Equal(t, map[string]string{"team": "web", "ci": "yes"}, p.Map())

	v.Set("platform", "team=web,bad")
	assert.Error(t, NewPlatform().LoadConfig(v))
}
