// Package vfslog adapts logrus into the resource-keyed logging idiom used
// throughout the service: every call site names the resource it concerns.
package vfslog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Stringer is anything that names itself for a log line, typically an
// fs.Resource.
type Stringer interface {
	String() string
}

var log = logrus.StandardLogger()

// SetLogger replaces the package-level logger, for callers that want to
// redirect output or attach fields.
func SetLogger(l *logrus.Logger) { log = l }

// Errorf logs an error-level line naming the resource it concerns.
func Errorf(resource Stringer, format string, args ...interface{}) {
	log.WithField("resource", resource.String()).Errorf(format, args...)
}

// Debugf logs a debug-level line naming the resource it concerns.
func Debugf(resource Stringer, format string, args ...interface{}) {
	log.WithField("resource", resource.String()).Debugf(format, args...)
}

// Infof logs an info-level line naming the resource it concerns.
func Infof(resource Stringer, format string, args ...interface{}) {
	log.WithField("resource", resource.String()).Infof(format, args...)
}

// CoalescedError logs err at error level and returns nil, implementing the
// "errors are logged and coalesced out" rule from the stat resolver and
// resolveAll.
func CoalescedError(resource Stringer, context string, err error) {
	if err == nil {
		return
	}
	log.WithField("resource", resource.String()).Errorf("%s: %s", context, fmt.Sprint(err))
}
