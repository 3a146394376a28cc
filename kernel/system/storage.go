package system

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/common/xconfig"
	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/store/kvstore"
	"github.com/xuperchain/xkernel/kernel/store/memdb"
	"github.com/xuperchain/xkernel/lib/logs"
	"github.com/xuperchain/xkernel/lib/storage/kvdb"

	// kv engines
	_ "github.com/xuperchain/xkernel/lib/storage/kvdb/badger"
	_ "github.com/xuperchain/xkernel/lib/storage/kvdb/leveldb"
)

// Database is a substate database which can be committed to and checked.
type Database interface {
	store.CommittableSubstateDatabase
	ListPartitionKeys() ([]store.DbPartitionKey, error)
}

// OpenDatabase opens the substate database configured by conf under path.
// The returned closer releases the engine.
func OpenDatabase(conf *xconfig.StorageConf, path string, log logs.Logger) (Database, func() error, error) {
	if conf.Engine == xconfig.StorageEngineMemory {
		return memdb.NewMemDatabase(), func() error { return nil }, nil
	}
	param := &kvdb.KVParameter{
		DBPath:                path,
		KVEngineType:          conf.Engine,
		MemCacheSize:          int(conf.MemCache >> 20),
		FileHandlersCacheSize: conf.FileHandles,
	}
	s, err := kvstore.OpenKVStore(param, kvstore.Options{CacheSize: conf.CacheSize, Compress: conf.Compress}, log)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "open %s substate database at %s", conf.Engine, path)
	}
	return s, s.Close, nil
}
