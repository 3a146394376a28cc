package system

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/kernel/common/xconfig"
	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/store/memdb"
)

func TestOpenDatabaseMemory(t *testing.T) {
	conf := xconfig.GetDefKernelConf().Storage
	db, closer, err := OpenDatabase(&conf, "", nil)
	require.NoError(t, err)
	assert.NoError(t, closer())
	_, ok := db.(*memdb.MemDatabase)
	assert.True(t, ok)
}

func TestOpenDatabaseUnknownEngine(t *testing.T) {
	conf := xconfig.GetDefKernelConf().Storage
	conf.Engine = "rocksdb"
	_, _, err := OpenDatabase(&conf, filepath.Join(t.TempDir(), "substates"), nil)
	assert.Error(t, err)
}

func TestOpenDatabasePersistent(t *testing.T) {
	for _, engineType := range []string{xconfig.StorageEngineLevelDB, xconfig.StorageEngineBadger} {
		t.Run(engineType, func(t *testing.T) {
			conf := xconfig.GetDefKernelConf()
			conf.Storage.Engine = engineType
			conf.Storage.MemCache = 16 << 20
			conf.Storage.Compress = true
			path := filepath.Join(t.TempDir(), "substates")

			db, closer, err := OpenDatabase(&conf.Storage, path, nil)
			require.NoError(t, err)
			exec := NewExecutor(conf, db, DefaultRegistry, nil)
			account := newAccount(t, exec, 1)
			require.NoError(t, closer())

			// reopened, the committed account is still there
			db, closer, err = OpenDatabase(&conf.Storage, path, nil)
			require.NoError(t, err)
			defer closer()
			exec = NewExecutor(conf, db, DefaultRegistry, nil)
			assert.Equal(t, uint64(100), balanceOf(t, exec, account))

			report, err := store.CheckDatabase(db, store.SpreadPrefixKeyMapper{})
			require.NoError(t, err)
			assert.Equal(t, 2, report.Nodes)
			assert.Equal(t, 1, report.RootNodes)
		})
	}
}
