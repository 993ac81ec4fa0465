package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// initLogging configures the shared logger used by every package. Verbose
// mode changes the level from INFO to DEBUG. When logFile is set, messages
// are appended there as well as to stderr.
func initLogging(verbose bool, logFile string) error {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	}
	return nil
}
