// Package logger provides the per-component named logger used
// throughout the engine, in the shape shammishailaj-rain uses its own
// internal/logger package (logger.New("peer <- "+addr), Debugln,
// Infof, Warningln, Errorln): a small named-entry wrapper, here over
// github.com/sirupsen/logrus instead of a hand-rolled backend.
package logger

import "github.com/sirupsen/logrus"

// Logger is the interface every actor in the engine logs through.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Debugln(args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warningln(args ...interface{})
	Error(args ...interface{})
	Errorln(args ...interface{})
	WithField(key string, value interface{}) Logger
}

type entry struct {
	*logrus.Entry
}

// New returns a Logger for a named component, e.g. "controller" or
// "peer <- 1.2.3.4:6881".
func New(name string) Logger {
	return entry{logrus.WithField("component", name)}
}

func (e entry) Warningln(args ...interface{}) { e.Entry.Warnln(args...) }

func (e entry) WithField(key string, value interface{}) Logger {
	return entry{e.Entry.WithField(key, value)}
}
