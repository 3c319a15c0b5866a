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
	"sync"
	"sync/atomic"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/rlog/level"
)

// New builds a Logger backed by hashicorp/go-hclog, the dependency logging
// bridge the teacher's logger/hclog package wraps. name is the hclog logger
// name, rendered as a bracketed prefix on every entry.
func New(name string, w io.Writer, lvl level.Level) Logger {
	if w == nil {
		w = os.Stderr
	}

	hl := hclog.New(&hclog.LoggerOptions{
		Name:            name,
		Output:          w,
		Level:           lvl.HCLog(),
		IncludeLocation: false,
		JSONFormat:      false,
	})

	m := &loggerModel{
		base: hl,
		hl:   hl,
	}
	m.lvl.Store(uint32(lvl))

	return m
}

type loggerModel struct {
	mut  sync.RWMutex
	base hclog.Logger // fixed root, used to rebuild hl on SetOutput
	hl   hclog.Logger
	lvl  atomic.Uint32
	pre  []fields.Field
}

func (m *loggerModel) clone() *loggerModel {
	m.mut.RLock()
	defer m.mut.RUnlock()

	c := &loggerModel{
		base: m.base,
		hl:   m.hl,
	}
	c.lvl.Store(m.lvl.Load())
	c.pre = append(append([]fields.Field{}, m.pre...))
	return c
}

func (m *loggerModel) With(f ...fields.Field) Logger {
	c := m.clone()
	c.pre = append(c.pre, f...)
	return c
}

func (m *loggerModel) current() hclog.Logger {
	m.mut.RLock()
	defer m.mut.RUnlock()
	return m.hl
}

func (m *loggerModel) log(lvl level.Level, msg string, f ...fields.Field) {
	if level.Level(m.lvl.Load()) > lvl {
		return
	}

	all := make([]fields.Field, 0, len(m.pre)+len(f))
	all = append(all, m.pre...)
	all = append(all, f...)
	args := fields.Pairs(all)

	hl := m.current()

	switch lvl {
	case level.DebugLevel:
		hl.Debug(msg, args...)
	case level.InfoLevel:
		hl.Info(msg, args...)
	case level.WarnLevel:
		hl.Warn(msg, args...)
	case level.ErrorLevel, level.FatalLevel, level.PanicLevel:
		hl.Error(msg, args...)
	}
}

func (m *loggerModel) Debug(msg string, f ...fields.Field) { m.log(level.DebugLevel, msg, f...) }
func (m *loggerModel) Info(msg string, f ...fields.Field)  { m.log(level.InfoLevel, msg, f...) }
func (m *loggerModel) Warn(msg string, f ...fields.Field)  { m.log(level.WarnLevel, msg, f...) }
func (m *loggerModel) Error(msg string, f ...fields.Field) { m.log(level.ErrorLevel, msg, f...) }
func (m *loggerModel) Fatal(msg string, f ...fields.Field) { m.log(level.FatalLevel, msg, f...) }

func (m *loggerModel) SetLevel(l level.Level) {
	m.lvl.Store(uint32(l))
	m.mut.Lock()
	defer m.mut.Unlock()
	m.hl.SetLevel(l.HCLog())
}

func (m *loggerModel) GetLevel() level.Level {
	return level.Level(m.lvl.Load())
}

func (m *loggerModel) SetOutput(w io.Writer) {
	m.mut.Lock()
	defer m.mut.Unlock()

	if w == nil {
		w = os.Stderr
	}

	m.hl = hclog.New(&hclog.LoggerOptions{
		Name:   m.base.Name(),
		Output: w,
		Level:  level.Level(m.lvl.Load()).HCLog(),
	})
}

func (m *loggerModel) Close() error {
	return nil
}
