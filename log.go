package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/coinswapd/coinswapd/contractwatch"
	"github.com/coinswapd/coinswapd/market"
	"github.com/coinswapd/coinswapd/swapdb"
	"github.com/jrick/logrotate/rotator"
)

// logRotator is the file rotator used to log to a file and not stdout. It
// must be initialized by initLogRotator before logging is usable.
var logRotator *rotator.Rotator

// backendLog is the logging backend all subsystem loggers are derived from.
var backendLog = btclog.NewBackend(logWriter{})

// logWriter implements io.Writer and writes to both a rotating log file
// and stdout, matching the daemon's dual logging destinations.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// subsystemLoggers tracks every subsystem logger created so SetLogLevel and
// SetLogLevels can reach all of them by tag.
var subsystemLoggers = make(map[string]btclog.Logger)

func addSubLogger(tag string) btclog.Logger {
	l := backendLog.Logger(tag)
	subsystemLoggers[tag] = l
	return l
}

// daemonLog is package main's own logger, used by the daemon entrypoint,
// the server, the RPC server and the Maker/Taker session code.
var daemonLog = addSubLogger("CSWP")

// Loggers for the packages that don't live under cmd/ are wired here; each
// such package exposes its own UseLogger so tests can silence it.
func init() {
	contractwatch.UseLogger(addSubLogger("WTCH"))
	market.UseLogger(addSubLogger("MKT"))
	swapdb.UseLogger(addSubLogger("SDB"))
}

// SetLogLevel sets the logging level for provided subsystem. Subsystems not
// registered through addSubLogger are ignored; none is created on demand.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for every registered subsystem.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// initLogRotator opens the rotating log file at logFile, creating its
// parent directory if necessary, and wires it into backendLog via
// logWriter. maxFileSizeMB and maxFiles bound the rotation the way lnd's
// own daemons configure jrick/logrotate.
func initLogRotator(logFile string, maxFileSizeMB, maxFiles int) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	r, err := rotator.New(logFile, int64(maxFileSizeMB)*1024, false, maxFiles)
	if err != nil {
		return fmt.Errorf("initializing log rotator: %w", err)
	}
	logRotator = r
	return nil
}
