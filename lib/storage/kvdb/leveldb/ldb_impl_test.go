package leveldb

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xkernel/lib/storage/kvdb"
)

func makeDB(t *testing.T, engine string) kvdb.Database {
	dir, err := ioutil.TempDir("", "xkernel-ldb")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := kvdb.CreateKVInstance(&kvdb.KVParameter{
		DBPath:                dir,
		KVEngineType:          engine,
		MemCacheSize:          32,
		FileHandlersCacheSize: 64,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLdbBasic(t *testing.T) {
	for _, engine := range []string{kvdb.KVEngineTypeLDB, kvdb.KVEngineTypeMemory} {
		t.Run(engine, func(t *testing.T) {
			db := makeDB(t, engine)

			_, err := db.Get([]byte("k1"))
			assert.Equal(t, kvdb.ErrNotFound, err)

			require.NoError(t, db.Put([]byte("k1"), []byte("v1")))
			v, err := db.Get([]byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), v)

			ok, err := db.Has([]byte("k1"))
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, db.Delete([]byte("k1")))
			ok, err = db.Has([]byte("k1"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestLdbBatchAndPrefix(t *testing.T) {
	db := makeDB(t, kvdb.KVEngineTypeMemory)

	batch := db.NewBatch()
	require.NoError(t, batch.Put([]byte("p/b"), []byte("2")))
	require.NoError(t, batch.Put([]byte("p/a"), []byte("1")))
	require.NoError(t, batch.Put([]byte("q/a"), []byte("3")))
	require.NoError(t, batch.Delete([]byte("p/b")))
	assert.True(t, batch.ValueSize() > 0)
	require.NoError(t, batch.Write())

	iter := db.NewIteratorWithPrefix([]byte("p/"))
	defer iter.Release()
	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []string{"p/a"}, keys)

	batch.Reset()
	assert.Equal(t, 0, batch.ValueSize())
}
