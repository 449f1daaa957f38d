package touchloop_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.yuchanns.xyz/touchloop"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "touchloop", "config.toml")
	conf, err := touchloop.LoadConfig(path)
	assert.NoError(err)
	assert.Equal(touchloop.DefaultConfig(), conf)
	assert.FileExists(path)

	again, err := touchloop.LoadConfig(path)
	assert.NoError(err)
	assert.Equal(conf, again)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(os.WriteFile(path, []byte(`
[app]
show_fps = true

[window]
width = 1024

[input]
mt = "evdev,/dev/input/event3,grab"

[postproc]
modules = ["dejitter", "doubletap"]
doubletap_time = "300ms"
ignore_regions = [[0.0, 0.0, 0.1, 0.1]]

[log]
level = "debug"
`), 0o644))

	conf, err := touchloop.LoadConfig(path)
	assert.NoError(err)
	assert.True(conf.App.ShowFPS)
	assert.Equal(1024, conf.Window.Width)
	assert.Equal(480, conf.Window.Height)
	assert.Equal(300*time.Millisecond, conf.PostProc.DoubleTapTime.Duration)
	assert.Equal([]string{"dejitter", "doubletap"}, conf.PostProc.Modules)
	assert.Equal("debug", conf.Log.Level)
	assert.Equal([]touchloop.ProviderSpec{
		{ID: "mt", Backend: "evdev", Args: "/dev/input/event3,grab"},
	}, conf.ProviderSpecs())
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[app\n"), 0o644))
	_, err := touchloop.LoadConfig(path)
	require.Error(t, err)
}

func TestWriteConfigRoundTrip(t *testing.T) {
	assert := require.New(t)

	conf := touchloop.DefaultConfig()
	conf.AddProvider(touchloop.ProviderSpec{ID: "b", Backend: "xinput", Args: "/tmp/x.sock"})
	conf.AddProvider(touchloop.ProviderSpec{ID: "a", Backend: "evdev", Args: "/dev/input/event1"})
	conf.PostProc.RetainTime = touchloop.Duration{Duration: 2 * time.Second}

	path := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(touchloop.WriteConfig(path, conf))

	loaded, err := touchloop.LoadConfig(path)
	assert.NoError(err)
	assert.Equal(2*time.Second, loaded.PostProc.RetainTime.Duration)
	specs := loaded.ProviderSpecs()
	assert.Len(specs, 2)
	assert.Equal("a", specs[0].ID)
	assert.Equal("b:xinput,/tmp/x.sock", specs[1].String())
}

func TestConfigDirHonoursXDG(t *testing.T) {
	assert := require.New(t)

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(filepath.Join(dir, "touchloop"), touchloop.ConfigDir())
	assert.Equal(filepath.Join(dir, "touchloop", "config.toml"), touchloop.ConfigPath())
}

func TestParseSize(t *testing.T) {
	assert := require.New(t)

	w, h, err := touchloop.ParseSize("800x600")
	assert.NoError(err)
	assert.Equal(800, w)
	assert.Equal(600, h)

	for _, bad := range []string{"800", "x600", "0x10", "axb"} {
		_, _, err := touchloop.ParseSize(bad)
		assert.Error(err, bad)
	}
}

func TestSetupLogging(t *testing.T) {
	touchloop.SetupLogging("")
	touchloop.SetupLogging("debug")
	touchloop.SetupLogging("info")
}
