package logs

import (
	"fmt"
	"os"
	"sync"

	"github.com/xuperchain/xkernel/lib/utils"
)

// Reserve common key
const (
	CommFieldLogId = "log_id"
	CommFieldPid   = "pid"
	CommFieldCall  = "call"
)

const (
	DefaultCallDepth = 4
)

// 底层日志库约束接口
type LogDriver interface {
	Error(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
}

// 在日志库之上做一层轻量级封装，方便日志字段组装和日志库替换
type Logger interface {
	GetLogId() string
	SetCommField(key string, value interface{})
	Error(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
}

// LogFitter prepends log_id, call site, pid and the common fields to every record.
type LogFitter struct {
	logger     LogDriver
	logId      string
	pid        int
	commFields []interface{}
	lock       sync.RWMutex
	callDepth  int
}

func NewLogger(logger LogDriver, logId string) (*LogFitter, error) {
	if logger == nil {
		return nil, fmt.Errorf("new logger param error")
	}
	if logId == "" {
		logId = utils.GenLogId()
	}

	lf := &LogFitter{
		logger:     logger,
		logId:      logId,
		pid:        os.Getpid(),
		commFields: make([]interface{}, 0),
		callDepth:  DefaultCallDepth,
	}

	return lf, nil
}

func (t *LogFitter) GetLogId() string {
	return t.logId
}

func (t *LogFitter) SetCommField(key string, value interface{}) {
	if !t.isInit() || key == "" || value == nil {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.commFields = append(t.commFields, key, value)
}

func (t *LogFitter) Error(msg string, ctx ...interface{}) {
	if !t.isInit() {
		return
	}
	t.logger.Error(msg, t.fmtLogCtx(ctx...)...)
}

func (t *LogFitter) Warn(msg string, ctx ...interface{}) {
	if !t.isInit() {
		return
	}
	t.logger.Warn(msg, t.fmtLogCtx(ctx...)...)
}

func (t *LogFitter) Info(msg string, ctx ...interface{}) {
	if !t.isInit() {
		return
	}
	t.logger.Info(msg, t.fmtLogCtx(ctx...)...)
}

func (t *LogFitter) Trace(msg string, ctx ...interface{}) {
	if !t.isInit() {
		return
	}
	t.logger.Trace(msg, t.fmtLogCtx(ctx...)...)
}

func (t *LogFitter) Debug(msg string, ctx ...interface{}) {
	if !t.isInit() {
		return
	}
	t.logger.Debug(msg, t.fmtLogCtx(ctx...)...)
}

func (t *LogFitter) fmtLogCtx(ctx ...interface{}) []interface{} {
	if len(ctx)%2 != 0 {
		last := ctx[len(ctx)-1]
		ctx = ctx[:len(ctx)-1]
		ctx = append(ctx, "unknow", last)
	}

	fileLine, _ := utils.GetFuncCall(t.callDepth)
	// 保持log_id是第一个写入，方便替换
	comCtx := []interface{}{CommFieldLogId, t.logId, CommFieldCall, fileLine, CommFieldPid, t.pid}
	if len(ctx) > 1 && fmt.Sprintf("%v", ctx[0]) == CommFieldLogId {
		comCtx[1] = ctx[1]
		ctx = ctx[2:]
	}

	t.lock.RLock()
	comCtx = append(comCtx, t.commFields...)
	t.lock.RUnlock()

	return append(comCtx, ctx...)
}

func (t *LogFitter) isInit() bool {
	return t != nil && t.logger != nil && t.commFields != nil
}
