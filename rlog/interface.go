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

// Package rlog is the structured logger threaded through every subsystem of
// the engine: the transport reactor, the connection state machine, and the
// dispatch pipeline all log connection and request lifecycle events through
// a *Logger scoped with fields.With(...).
package rlog

import (
	"io"

	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/rlog/level"
)

// FuncLog returns the current default Logger instance. Components receive
// one of these at Init time instead of a live *Logger so the underlying
// sink can be swapped (e.g. on Reload) without invalidating references
// already handed out.
type FuncLog func() Logger

// Logger is the logging contract threaded through the engine. Every method
// taking fields is variadic so call sites can pass zero, one, or several
// structured attributes inline.
type Logger interface {
	// With returns a child Logger that prepends f to every entry it logs.
	With(f ...fields.Field) Logger

	Debug(msg string, f ...fields.Field)
	Info(msg string, f ...fields.Field)
	Warn(msg string, f ...fields.Field)
	Error(msg string, f ...fields.Field)

	// Fatal logs at FatalLevel then calls the registered hooks' Sync.
	// It does not call os.Exit: callers in a library have no business
	// terminating the host process.
	Fatal(msg string, f ...fields.Field)

	SetLevel(l level.Level)
	GetLevel() level.Level

	// SetOutput redirects where entries are written; nil restores the
	// default hook chain configured at New.
	SetOutput(w io.Writer)

	io.Closer
}
