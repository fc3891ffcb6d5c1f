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

// Package errors provides the numeric-coded error taxonomy used across the
// server core so that subscribers of the inner-exception channel can branch
// on a stable code instead of parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies the class of failure. Values are stable across releases.
type Code uint32

const (
	CodeUnknown Code = iota
	CodeTransientAccept
	CodeHandshakeRejected
	CodeHandshakeFailure
	CodeWriteFailure
	CodeConfiguration
)

// Error is the rich error type propagated through the core. It carries a
// Code for programmatic branching, a human message, and an optional parent
// for wrapping lower-level causes (TLS errors, I/O errors, validation
// errors).
type Error interface {
	error
	Code() Code
	Parent() error
	Is(code Code) bool
}

type err struct {
	code Code
	msg  string
	prnt error
}

func (e *err) Error() string {
	if e.prnt == nil {
		return e.msg
	}

	return fmt.Sprintf("%s: %s", e.msg, e.prnt.Error())
}

func (e *err) Code() Code {
	return e.code
}

func (e *err) Parent() error {
	return e.prnt
}

func (e *err) Is(code Code) bool {
	return e.code == code
}

func (e *err) Unwrap() error {
	return e.prnt
}

// New builds an Error with the given code and message.
func New(code Code, msg string) Error {
	return &err{code: code, msg: msg}
}

// Newf builds an Error with a formatted message.
func Newf(code Code, format string, args ...any) Error {
	return &err{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a parent cause to a new Error of the given code.
func Wrap(code Code, msg string, parent error) Error {
	return &err{code: code, msg: msg, prnt: parent}
}

// IsCode reports whether e carries the given code. Returns false for any
// error that is not an Error produced by this package.
func IsCode(e error, code Code) bool {
	var c Error
	if errors.As(e, &c) {
		return c.Is(code)
	}

	return false
}

// Is delegates to the standard library errors.Is, allowing Error values to
// participate in wrapped-error chains built with Wrap.
func Is(e, target error) bool {
	return errors.Is(e, target)
}
