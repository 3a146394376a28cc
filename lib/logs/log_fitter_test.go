package logs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	level string
	msg   string
	ctx   []interface{}
}

type memDriver struct {
	mu      sync.Mutex
	records []record
}

func (d *memDriver) add(level, msg string, ctx []interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, record{level, msg, ctx})
}

func (d *memDriver) Error(msg string, ctx ...interface{}) { d.add("error", msg, ctx) }
func (d *memDriver) Warn(msg string, ctx ...interface{})  { d.add("warn", msg, ctx) }
func (d *memDriver) Info(msg string, ctx ...interface{})  { d.add("info", msg, ctx) }
func (d *memDriver) Trace(msg string, ctx ...interface{}) { d.add("trace", msg, ctx) }
func (d *memDriver) Debug(msg string, ctx ...interface{}) { d.add("debug", msg, ctx) }

func ctxValue(ctx []interface{}, key string) interface{} {
	for i := 0; i+1 < len(ctx); i += 2 {
		if fmt.Sprintf("%v", ctx[i]) == key {
			return ctx[i+1]
		}
	}
	return nil
}

func TestLogFitterFields(t *testing.T) {
	driver := &memDriver{}
	log, err := NewLogger(driver, "tx_1")
	require.NoError(t, err)

	log.SetCommField("depth", 2)
	log.Info("open substate", "handle", 7)
	log.Warn("odd ctx", 1)
	log.Debug("override", CommFieldLogId, "other")

	require.Len(t, driver.records, 3)
	first := driver.records[0]
	assert.Equal(t, "tx_1", ctxValue(first.ctx, CommFieldLogId))
	assert.Equal(t, 2, ctxValue(first.ctx, "depth"))
	assert.Equal(t, 7, ctxValue(first.ctx, "handle"))
	assert.Contains(t, ctxValue(first.ctx, CommFieldCall), "log_fitter_test.go")

	assert.Equal(t, 1, ctxValue(driver.records[1].ctx, "unknow"))
	assert.Equal(t, "other", ctxValue(driver.records[2].ctx, CommFieldLogId))
}

func TestLogFitterConcurrent(t *testing.T) {
	driver := &memDriver{}
	log, err := NewLogger(driver, "")
	require.NoError(t, err)
	assert.NotEmpty(t, log.GetLogId())

	wg := &sync.WaitGroup{}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			log.Info("info", "num", num)
			log.SetCommField("key", num)
			log.Trace("trace", "num", num)
		}(i)
	}
	wg.Wait()
	assert.Len(t, driver.records, 6)
}

func TestNilDriver(t *testing.T) {
	_, err := NewLogger(nil, "")
	assert.Error(t, err)

	var lf *LogFitter
	lf.Info("ignored")
	DiscardLogger().Error("ignored")
}
