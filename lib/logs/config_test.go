package logs

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefLogConf(t *testing.T) {
	cfg := GetDefLogConf()
	assert.Equal(t, "xkernel", cfg.Module)
	assert.True(t, cfg.Console)
}

func TestLoadLogConf(t *testing.T) {
	dir, err := ioutil.TempDir("", "xkernel-log")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfgFile := filepath.Join(dir, "log.yaml")
	content := "module: kernel\nlevel: debug\nfmt: json\nconsole: false\nfile: true\nfilepath: " + dir + "\n"
	require.NoError(t, ioutil.WriteFile(cfgFile, []byte(content), 0644))

	cfg, err := LoadLogConf(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "kernel", cfg.Module)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Fmt)
	assert.False(t, cfg.Console)

	_, err = LoadLogConf(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	cfg.RotateInterval = 0
	lg, err := NewLoggerFromConf(cfg)
	require.NoError(t, err)
	lg.Warn("written to wf file")
	assert.FileExists(t, filepath.Join(dir, "xkernel.log.wf"))
}
