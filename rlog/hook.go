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

package rlog

import (
	"io"
	"os"

	colorable "github.com/mattn/go-colorable"
)

// Stdout returns a colorized writer over os.Stdout suitable for SetOutput.
func Stdout() io.Writer {
	return colorable.NewColorableStdout()
}

// Stderr returns a colorized writer over os.Stderr suitable for SetOutput.
func Stderr() io.Writer {
	return colorable.NewColorableStderr()
}

// File opens (creating if necessary, appending if present) a log file and
// returns it as an io.Writer for SetOutput. The caller owns the returned
// file and is responsible for closing it.
func File(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

// MultiWriter fans a single stream of entries out to several sinks at once,
// mirroring the teacher's practice of attaching several hooks to one logger
// (stderr for operators, a file for audit, syslog for aggregation).
func MultiWriter(w ...io.Writer) io.Writer {
	return io.MultiWriter(w...)
}
