// Package logger provides the process-wide leveled loggers.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	// InfoLogger logs informational messages
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	// ErrorLogger logs error messages
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	// DebugLogger logs debug messages; silent until Init enables it
	DebugLogger = log.New(io.Discard, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)

	mu sync.Mutex
)

// Init points the loggers at out (stdout/stderr when nil) and turns debug
// output on or off.
func Init(out io.Writer, debug bool) {
	mu.Lock()
	defer mu.Unlock()

	infoOut, errOut := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if out != nil {
		infoOut, errOut = out, out
	}

	InfoLogger.SetOutput(infoOut)
	ErrorLogger.SetOutput(errOut)
	if debug {
		DebugLogger.SetOutput(infoOut)
	} else {
		DebugLogger.SetOutput(io.Discard)
	}
}

// Infof logs an informational message
func Infof(format string, v ...interface{}) {
	InfoLogger.Output(2, fmt.Sprintf(format, v...))
}

// Errorf logs an error message
func Errorf(format string, v ...interface{}) {
	ErrorLogger.Output(2, fmt.Sprintf(format, v...))
}

// Debugf logs a debug message
func Debugf(format string, v ...interface{}) {
	if DebugLogger.Writer() == io.Discard {
		return
	}
	DebugLogger.Output(2, fmt.Sprintf(format, v...))
}

// Fatalf logs an error message and exits.
func Fatalf(format string, v ...interface{}) {
	ErrorLogger.Output(2, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Std returns a standard logger writing at info level, for libraries that
// take a *log.Logger.
func Std() *log.Logger {
	return InfoLogger
}
