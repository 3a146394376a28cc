package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/kernel/fuzz"
)

func TestFuzzCmd(t *testing.T) {
	c := GetFuzzCmd().GetCmd()
	out := &bytes.Buffer{}
	c.SetOut(out)
	c.SetArgs([]string{"--scenario", fuzz.ScenarioThreeChain, "--seeds", "50", "--start", "10", "-w", "2"})
	require.NoError(t, c.Execute())
	assert.Contains(t, out.String(), "scenario:        three-chain")
	assert.Contains(t, out.String(), "runs:            50")
	assert.Contains(t, out.String(), "success count:")
	assert.NotContains(t, out.String(), "BUG")
}

func TestFuzzCmdUnknownScenario(t *testing.T) {
	c := GetFuzzCmd().GetCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{"--scenario", "nope"})
	assert.Error(t, c.Execute())
}

func TestOpenLogger(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "conf"), 0755))
	env := "rootPath: " + dir + "\nlogDir: logs\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf", "env.yaml"), []byte(env), 0644))
	logConf := "level: debug\nconsole: false\nfile: true\nfilename: fuzz\nrotateInterval: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf", "log.yaml"), []byte(logConf), 0644))

	log, err := openLogger(filepath.Join(dir, "conf", "env.yaml"))
	require.NoError(t, err)
	log.Info("hello")
	assert.FileExists(t, filepath.Join(dir, "logs", "fuzz.log"))

	_, err = openLogger(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out := &bytes.Buffer{}
	Version(out)
	assert.Equal(t, "- \n", out.String())
}
