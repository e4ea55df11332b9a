package common

import (
	"io"
	"log"
	"os"
)

var (
	logger = log.New(os.Stderr, "[vdifgate] ", log.LstdFlags|log.Lmicroseconds)
)

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// SetOutput redirects the shared logger, used by the daemon to route
// messages through its rotating log file.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}
