/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger is the free-form diagnostic sink collaborator described in
// spec.md §6: the core never inspects what a Logger does with a message, it
// only calls leveled methods with optional structured fields.
package logger

import (
	"github.com/sirupsen/logrus"
)

// FuncLog returns the Logger a component should use, resolved lazily so
// callers can swap loggers before a listener starts.
type FuncLog func() Logger

// Fields attaches structured context to a log line.
type Fields map[string]any

// Logger is the leveled logging surface this repository exercises. It is a
// deliberately small subset of the teacher's multi-backend logger: one
// backend (logrus), no hooks, no dynamic level reconfiguration beyond
// SetLevel.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warning(msg string, f Fields)
	Error(msg string, f Fields)

	// WithField returns a child Logger with f merged into every subsequent
	// call's fields.
	WithField(f Fields) Logger

	// SetLevel adjusts the minimum emitted level ("debug", "info", "warn",
	// "error").
	SetLevel(level string) error
}

type logger struct {
	l *logrus.Entry
}

// New returns a Logger backed by a fresh logrus.Logger with text output,
// matching the teacher's default logrus configuration.
func New() Logger {
	l := logrus.New()
	return &logger{l: logrus.NewEntry(l)}
}

// NewNop returns a Logger that discards everything, convenient for tests and
// for components constructed without an explicit logger.
func NewNop() Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return &logger{l: logrus.NewEntry(l)}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (o *logger) fields(f Fields) logrus.Fields {
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		lf[k] = v
	}
	return lf
}

func (o *logger) Debug(msg string, f Fields) {
	o.l.WithFields(o.fields(f)).Debug(msg)
}

func (o *logger) Info(msg string, f Fields) {
	o.l.WithFields(o.fields(f)).Info(msg)
}

func (o *logger) Warning(msg string, f Fields) {
	o.l.WithFields(o.fields(f)).Warn(msg)
}

func (o *logger) Error(msg string, f Fields) {
	o.l.WithFields(o.fields(f)).Error(msg)
}

func (o *logger) WithField(f Fields) Logger {
	return &logger{l: o.l.WithFields(o.fields(f))}
}

func (o *logger) SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	o.l.Logger.SetLevel(lvl)
	return nil
}
