package main

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/nova/internal/bootstrap"
	"github.com/nadzzz/nova/internal/config"
	"github.com/nadzzz/nova/internal/offline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Backend.ConfigFile = filepath.Join(t.TempDir(), "config.json")
	cfg.Backend.DefaultURL = config.DefaultBackendURL
	cfg.Backend.DefaultScheme = "https"
	return cfg
}

func TestResolverFor(t *testing.T) {
	assert.Equal(t, bootstrap.StaticResolver("http://alt:8000"),
		resolverFor(&globalFlags{backendURL: "http://alt:8000", noPrompt: true}, nil, nil))
	assert.Equal(t, bootstrap.StaticResolver(""), resolverFor(&globalFlags{noPrompt: true}, nil, nil))
	assert.IsType(t, bootstrap.PromptResolver{}, resolverFor(&globalFlags{}, nil, nil))
}

func TestNegotiate_OfflineFlagSkips(t *testing.T) {
	cfg := testConfig(t)
	a := newApp(cfg, &globalFlags{offline: true}, nil, nil)

	require.NoError(t, a.negotiate(context.Background(), &globalFlags{offline: true}))

	_, ok := a.session.Backend()
	assert.False(t, ok)
	assert.NoFileExists(t, cfg.Backend.ConfigFile)
}

func TestChatLoop(t *testing.T) {
	a := newApp(testConfig(t), &globalFlags{offline: true}, nil, nil)

	in := bufio.NewReader(strings.NewReader("what time is it\n\ntell me a joke\nquit\nwhat day is it\n"))
	var out, prompt bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), a, in, &out, &prompt))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "It is "), lines[0])
	assert.Equal(t, offline.FallbackReply, lines[1])
	assert.Equal(t, 4, strings.Count(prompt.String(), "nova> "))
}

func TestChatLoop_EOF(t *testing.T) {
	a := newApp(testConfig(t), &globalFlags{offline: true}, nil, nil)

	in := bufio.NewReader(strings.NewReader("what time is it"))
	var out, prompt bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), a, in, &out, &prompt))
	assert.True(t, strings.HasPrefix(out.String(), "It is "))
}
