// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package log

import (
	"fmt"
	"sync"

	"github.com/cihub/seelog"
)

var (
	logger *EdgeLogger

	// This buffer holds log lines sent to the logger before its
	// initialization, so that early startup messages are not lost.
	logsBuffer           = []func(){}
	bufferLogsBeforeInit = true
	bufferMutex          sync.Mutex
)

// EdgeLogger wraps a seelog logger behind a package-level API.
type EdgeLogger struct {
	inner seelog.LoggerInterface
	level seelog.LogLevel
	l     sync.RWMutex
}

// SetupLogger configures the logger singleton with a seelog interface.
func SetupLogger(l seelog.LoggerInterface, level string) {
	lvl, ok := seelog.LogLevelFromString(level)
	if !ok {
		lvl = seelog.InfoLvl
	}
	logger = &EdgeLogger{
		inner: l,
		level: lvl,
	}

	// Flush anything buffered before init.
	bufferMutex.Lock()
	bufferLogsBeforeInit = false
	defer bufferMutex.Unlock()
	for _, logLine := range logsBuffer {
		logLine()
	}
	logsBuffer = []func(){}
}

// BuildLogger constructs a seelog logger writing to the console and,
// when logFile is non-empty, to a rolling file.
func BuildLogger(logFile, level string) (seelog.LoggerInterface, error) {
	fileOutput := ""
	if logFile != "" {
		fileOutput = fmt.Sprintf(
			`<rollingfile type="size" filename="%s" maxsize="10000000" maxrolls="3" formatid="common"/>`,
			logFile)
	}
	config := fmt.Sprintf(
		`<seelog minlevel="%s">
	<outputs formatid="common">
		<console/>
		%s
	</outputs>
	<formats>
		<format id="common" format="%%Date(2006-01-02 15:04:05 MST) | %%LEVEL | (%%ShortFilePath:%%Line in %%FuncShort) | %%Msg%%n"/>
	</formats>
</seelog>`, level, fileOutput)
	return seelog.LoggerFromConfigAsString(config)
}

func (sw *EdgeLogger) shouldLog(level seelog.LogLevel) bool {
	sw.l.RLock()
	defer sw.l.RUnlock()
	return level >= sw.level
}

// ChangeLogLevel changes the level of the singleton at runtime.
func ChangeLogLevel(level string) error {
	if logger == nil || logger.inner == nil {
		return fmt.Errorf("cannot change loglevel: logger not initialized")
	}
	lvl, ok := seelog.LogLevelFromString(level)
	if !ok {
		return fmt.Errorf("unknown log level: %s", level)
	}
	logger.l.Lock()
	defer logger.l.Unlock()
	logger.level = lvl
	return nil
}

func bufferOrLog(level seelog.LogLevel, fallback func(), line func()) {
	bufferMutex.Lock()
	if bufferLogsBeforeInit && (logger == nil || logger.inner == nil) {
		logsBuffer = append(logsBuffer, line)
		bufferMutex.Unlock()
		return
	}
	bufferMutex.Unlock()
	if logger != nil && logger.inner != nil && logger.shouldLog(level) {
		line()
	} else if fallback != nil {
		fallback()
	}
}

// Tracef formats message according to format specifier and logs it with trace level.
func Tracef(format string, params ...interface{}) {
	bufferOrLog(seelog.TraceLvl, nil, func() { logger.inner.Tracef(format, params...) })
}

// Debugf formats message according to format specifier and logs it with debug level.
func Debugf(format string, params ...interface{}) {
	bufferOrLog(seelog.DebugLvl, nil, func() { logger.inner.Debugf(format, params...) })
}

// Infof formats message according to format specifier and logs it with info level.
func Infof(format string, params ...interface{}) {
	bufferOrLog(seelog.InfoLvl, nil, func() { logger.inner.Infof(format, params...) })
}

// Warnf formats message according to format specifier and logs it with warn level.
func Warnf(format string, params ...interface{}) error {
	err := fmt.Errorf(format, params...)
	bufferOrLog(seelog.WarnLvl, nil, func() { logger.inner.Warn(err.Error()) }) //nolint:errcheck
	return err
}

// Errorf formats message according to format specifier and logs it with error level.
func Errorf(format string, params ...interface{}) error {
	err := fmt.Errorf(format, params...)
	bufferOrLog(seelog.ErrorLvl, nil, func() { logger.inner.Error(err.Error()) }) //nolint:errcheck
	return err
}

// Info logs at the info level.
func Info(v ...interface{}) {
	bufferOrLog(seelog.InfoLvl, nil, func() { logger.inner.Info(v...) })
}

// Warn logs at the warn level and returns the message as an error.
func Warn(v ...interface{}) error {
	err := fmt.Errorf("%s", fmt.Sprint(v...))
	bufferOrLog(seelog.WarnLvl, nil, func() { logger.inner.Warn(err.Error()) }) //nolint:errcheck
	return err
}

// Error logs at the error level and returns the message as an error.
func Error(v ...interface{}) error {
	err := fmt.Errorf("%s", fmt.Sprint(v...))
	bufferOrLog(seelog.ErrorLvl, nil, func() { logger.inner.Error(err.Error()) }) //nolint:errcheck
	return err
}

// Flush flushes the underlying logger.
func Flush() {
	if logger != nil && logger.inner != nil {
		logger.inner.Flush()
	}
}
