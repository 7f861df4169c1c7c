// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv

import (
	"fmt"
	"os"

	"github.com/juju/loggo"
)

// JujuLogger is implemented by types that can write to the unit log.
type JujuLogger interface {
	JujuLog(level loggo.Level, message string) error
}

type jujuLogWriter struct {
	log JujuLogger
}

// NewJujuLogWriter returns a loggo writer that forwards every entry
// to the controller through juju-log.
func NewJujuLogWriter(log JujuLogger) loggo.Writer {
	return &jujuLogWriter{log: log}
}

// Write is part of the loggo.Writer interface.
func (w *jujuLogWriter) Write(entry loggo.Entry) {
	message := fmt.Sprintf("%s: %s", entry.Module, entry.Message)
	if err := w.log.JujuLog(entry.Level, message); err != nil {
		// Logging through loggo here would recurse.
		fmt.Fprintf(os.Stderr, "cannot write to juju-log: %v\n", err)
	}
}
