package xconfig

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/kernel/types"
)

func writeConf(t *testing.T, name, content string) string {
	file := filepath.Join(t.TempDir(), name)
	require.NoError(t, ioutil.WriteFile(file, []byte(content), 0644))
	return file
}

func TestLoadEnvConf(t *testing.T) {
	file := writeConf(t, "env.yaml", "rootPath: /opt/xkernel\nkernelConf: k.yaml\nmetricSwitch: true\n")
	envCfg, err := LoadEnvConf(file)
	require.NoError(t, err)
	assert.Equal(t, "/opt/xkernel", envCfg.RootPath)
	assert.True(t, envCfg.MetricSwitch)
	assert.Equal(t, "/opt/xkernel/conf/k.yaml", envCfg.GenConfFilePath(envCfg.KernelConf))
	assert.Equal(t, "/opt/xkernel/data/substates", envCfg.GenDataAbsPath("substates"))

	_, err = LoadEnvConf(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadKernelConf(t *testing.T) {
	file := writeConf(t, "kernel.yaml", `
maxCallDepth: 16
maxSubstateSize: 1MB
maxNumberOfOpenSubstates: 32
costing:
  executionCostLimit: 500
storage:
  engine: leveldb
  memCache: 64MB
lockFault:
  virtualEntityTypes:
    - GlobalVirtualEd25519Account
    - entitytypeglobalaccount
`)
	cfg, err := LoadKernelConf(file)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.MaxCallDepth)
	assert.Equal(t, 32, cfg.MaxOpenSubstates)
	assert.Equal(t, ByteSize(1<<20), cfg.MaxSubstateSize)
	assert.Equal(t, uint64(500), cfg.Costing.ExecutionCostLimit)
	// untouched defaults survive
	assert.Equal(t, uint64(2000), cfg.Costing.InvokeBase)
	assert.Equal(t, StorageEngineLevelDB, cfg.Storage.Engine)
	assert.Equal(t, ByteSize(64<<20), cfg.Storage.MemCache)
	assert.Equal(t, []types.EntityType{types.EntityTypeGlobalVirtualEd25519Account, types.EntityTypeGlobalAccount},
		cfg.LockFault.VirtualEntityTypes)
}

func TestKernelConfValidate(t *testing.T) {
	cfg := GetDefKernelConf()
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Engine = "rocksdb"
	assert.Error(t, cfg.Validate())

	cfg = GetDefKernelConf()
	cfg.LockFault.VirtualEntityTypes = []types.EntityType{types.EntityTypeInternalKeyValueStore}
	assert.Error(t, cfg.Validate())

	_, err := LoadKernelConf(writeConf(t, "bad.yaml", "maxSubstateSize: lots\n"))
	assert.Error(t, err)
}
