package logs

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/xuperchain/log15"
)

// LogBufSize define log buffer channel size
const LogBufSize = 102400

// OpenLog create and open log stream using LogConfig
func OpenLog(lc *LogConfig) (LogDriver, error) {
	lfmt := log.LogfmtFormat()
	switch lc.Fmt {
	case "json":
		lfmt = log.JsonFormat()
	}

	xlog := log.New("module", lc.Module)
	lvLevel, err := log.LvlFromString(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level error.err:%v", err)
	}
	// set lowest level as level limit, this may improve performance
	xlog.SetLevelLimit(lvLevel)

	handlers := make([]log.Handler, 0, 3)
	if lc.Console {
		handlers = append(handlers, log.LvlFilterHandler(lvLevel, log.StreamHandler(os.Stderr, lfmt)))
	}
	if lc.File {
		nmHandler, wfHandler, err := openFileHandlers(lc, lfmt)
		if err != nil {
			return nil, err
		}
		// prints log level between `lvLevel` to Info to common log
		handlers = append(handlers, log.BoundLvlFilterHandler(lvLevel, log.LvlError, nmHandler))
		// prints log level greater or equal to Warn to wf log
		handlers = append(handlers, log.LvlFilterHandler(log.LvlWarn, wfHandler))
	}
	if len(handlers) == 0 {
		xlog.SetHandler(log.DiscardHandler())
		return xlog, nil
	}

	xlog.SetHandler(log.SyncHandler(log.MultiHandler(handlers...)))
	return xlog, nil
}

// RotateFileHandler only valid if `RotateInterval` and `RotateBackups` greater than 0
func openFileHandlers(lc *LogConfig, lfmt log.Format) (log.Handler, log.Handler, error) {
	if err := os.MkdirAll(lc.Filepath, os.ModePerm); err != nil {
		return nil, nil, fmt.Errorf("create log dir failed.path:%s,err:%v", lc.Filepath, err)
	}
	infoFile := filepath.Join(lc.Filepath, lc.Filename+".log")
	wfFile := filepath.Join(lc.Filepath, lc.Filename+".log.wf")

	var (
		nmHandler log.Handler
		wfHandler log.Handler
	)
	if lc.RotateInterval > 0 && lc.RotateBackups > 0 {
		nmHandler = log.Must.RotateFileHandler(
			infoFile, lfmt, lc.RotateInterval, lc.RotateBackups)
		wfHandler = log.Must.RotateFileHandler(
			wfFile, lfmt, lc.RotateInterval, lc.RotateBackups)
	} else {
		nmHandler = log.Must.FileHandler(infoFile, lfmt)
		wfHandler = log.Must.FileHandler(wfFile, lfmt)
	}

	if lc.Async {
		nmHandler = log.BufferedHandler(LogBufSize, nmHandler)
		wfHandler = log.BufferedHandler(LogBufSize, wfHandler)
	}
	return nmHandler, wfHandler, nil
}

// NewDiscardDriver returns a driver which drops every record.
func NewDiscardDriver() LogDriver {
	xlog := log.New()
	xlog.SetHandler(log.DiscardHandler())
	return xlog
}

// NewLoggerFromConf opens a driver for lc and wraps it in a fitter.
func NewLoggerFromConf(lc *LogConfig) (Logger, error) {
	if lc == nil {
		lc = GetDefLogConf()
	}
	driver, err := OpenLog(lc)
	if err != nil {
		return nil, err
	}

	return NewLogger(driver, "")
}

// DiscardLogger is used when the kernel is built without a logger.
func DiscardLogger() Logger {
	lf, _ := NewLogger(NewDiscardDriver(), "")
	return lf
}
