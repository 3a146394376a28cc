package utils

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	// producer Concurrent
	ProducerConcurrent = 100
	// Total generate number
	ProducerGenTotal = 10000
)

func TestFileIsExist(t *testing.T) {
	assert.True(t, FileIsExist(os.TempDir()))
	assert.False(t, FileIsExist("/not/exist/xkernel/dir"))
}

// 用来验证logId生成算法的冲突率
func TestGenLogId(t *testing.T) {
	var mu sync.Mutex
	ids := make(map[string]int, ProducerGenTotal)
	wg := &sync.WaitGroup{}
	ctlCh := make(chan struct{}, ProducerConcurrent)
	for i := 0; i < ProducerGenTotal; i++ {
		wg.Add(1)
		ctlCh <- struct{}{}
		go func() {
			defer wg.Done()
			id := GenLogId()
			mu.Lock()
			ids[id]++
			mu.Unlock()
			<-ctlCh
		}()
	}
	wg.Wait()

	repeat := ProducerGenTotal - len(ids)
	assert.Less(t, repeat, ProducerGenTotal/100)
}

func TestSeedToTxHash(t *testing.T) {
	hash := SeedToTxHash(1)
	assert.Len(t, hash, 32)
	for i := 0; i < 4; i++ {
		assert.Equal(t, byte(1), hash[i*8+7])
	}
	assert.NotEqual(t, SeedToTxHash(1), SeedToTxHash(2))
}

func TestGetFuncCall(t *testing.T) {
	fline, fn := GetFuncCall(1)
	assert.Contains(t, fline, "utils_test.go")
	assert.Contains(t, fn, "TestGetFuncCall")
}
