package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeEnv lays out a root dir with env, log and kernel configs.
func writeEnv(t *testing.T, kernelConf string) string {
	dir := t.TempDir()
	confDir := filepath.Join(dir, "conf")
	require.NoError(t, os.MkdirAll(confDir, 0755))
	env := "rootPath: " + dir + "\nlogDir: logs\ndataDir: data\n"
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "env.yaml"), []byte(env), 0644))
	logConf := "level: info\nconsole: false\nfile: true\nfilename: exec\nrotateInterval: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "log.yaml"), []byte(logConf), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "kernel.yaml"), []byte(kernelConf), 0644))
	return filepath.Join(confDir, "env.yaml")
}

func TestExecCmdMemory(t *testing.T) {
	c := GetExecCmd().GetCmd()
	out := &bytes.Buffer{}
	c.SetOut(out)
	c.SetArgs([]string{"--accounts", "3", "--transfers", "20"})
	require.NoError(t, c.Execute())
	assert.Contains(t, out.String(), "engine:          memory")
	assert.Contains(t, out.String(), "transactions:    23")
	assert.Contains(t, out.String(), "total balance:   3000")
	// 3 accounts and their vaults
	assert.Contains(t, out.String(), "nodes:           6")
	assert.Contains(t, out.String(), "root nodes:      3")
}

func TestExecCmdPersistent(t *testing.T) {
	for _, engineType := range []string{"leveldb", "badger"} {
		t.Run(engineType, func(t *testing.T) {
			kernelConf := "metricSwitch: true\nstorage:\n  engine: " + engineType + "\n  path: substates\n  memCache: 16MB\n"
			envPath := writeEnv(t, kernelConf)

			c := GetExecCmd().GetCmd()
			out := &bytes.Buffer{}
			c.SetOut(out)
			c.SetArgs([]string{"-c", envPath, "--accounts", "2", "--transfers", "10", "--seed", "7"})
			require.NoError(t, c.Execute())
			assert.Contains(t, out.String(), "engine:          "+engineType)
			assert.Contains(t, out.String(), "total balance:   2000")

			root := filepath.Dir(filepath.Dir(envPath))
			assert.DirExists(t, filepath.Join(root, "data", "substates"))
			assert.FileExists(t, filepath.Join(root, "logs", "exec.log"))
		})
	}
}

func TestExecCmdErrors(t *testing.T) {
	c := GetExecCmd().GetCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{"--accounts", "0"})
	assert.Error(t, c.Execute())

	envPath := writeEnv(t, "storage:\n  engine: rocksdb\n")
	c = GetExecCmd().GetCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{"-c", envPath})
	assert.Error(t, c.Execute())

	c = GetExecCmd().GetCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, c.Execute())
}
