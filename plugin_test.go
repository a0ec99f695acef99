package streams

import (
	"testing"

	"github.com/golly-go/golly"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginSurface(t *testing.T) {
	var plugin golly.Plugin = NewPlugin(WithGroup("g"), WithDomains("user"))

	p, ok := plugin.(*Plugin)
	require.True(t, ok)
	assert.Equal(t, PluginName, p.Name())
	assert.Empty(t, p.Commands())
	assert.NotNil(t, p.Registry())

	services := p.Services()
	require.Len(t, services, 1)
	svc, ok := services[0].(*Service)
	require.True(t, ok)
	assert.Equal(t, "streams-consumer", svc.Name())
}

func TestServiceInitializeRequiresPlugin(t *testing.T) {
	err := NewService(&Plugin{}).Initialize(nil)
	assert.Error(t, err)
}
