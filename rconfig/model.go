/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

package rconfig

import (
	"context"
	"fmt"
	"sort"
	"sync"

	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
)

type configModel struct {
	mu  sync.RWMutex
	ctx context.Context
	cnl context.CancelFunc

	cpt map[string]Component
	dep map[string][]string

	fctViper  func() *spfvpr.Viper
	fctLogger rlog.FuncLog

	started bool

	evStartBefore, evStartAfter   FuncEvent
	evReloadBefore, evReloadAfter FuncEvent
	evStopBefore, evStopAfter     func()
}

func (c *configModel) Context() context.Context {
	return c.ctx
}

func (c *configModel) RegisterFuncViper(fct func() *spfvpr.Viper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fctViper = fct
}

func (c *configModel) RegisterDefaultLogger(fct rlog.FuncLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fctLogger = fct
}

func (c *configModel) RegisterFuncStartBefore(fct FuncEvent)  { c.mu.Lock(); c.evStartBefore = fct; c.mu.Unlock() }
func (c *configModel) RegisterFuncStartAfter(fct FuncEvent)   { c.mu.Lock(); c.evStartAfter = fct; c.mu.Unlock() }
func (c *configModel) RegisterFuncReloadBefore(fct FuncEvent) { c.mu.Lock(); c.evReloadBefore = fct; c.mu.Unlock() }
func (c *configModel) RegisterFuncReloadAfter(fct FuncEvent)  { c.mu.Lock(); c.evReloadAfter = fct; c.mu.Unlock() }
func (c *configModel) RegisterFuncStopBefore(fct func())      { c.mu.Lock(); c.evStopBefore = fct; c.mu.Unlock() }
func (c *configModel) RegisterFuncStopAfter(fct func())       { c.mu.Lock(); c.evStopAfter = fct; c.mu.Unlock() }

func (c *configModel) getConfig(key string, model interface{}) liberr.Error {
	c.mu.RLock()
	fct := c.fctViper
	_, ok := c.cpt[key]
	c.mu.RUnlock()

	if !ok {
		return ErrorComponentNotFound.Error(fmt.Errorf("component '%s'", key))
	} else if fct == nil {
		return ErrorConfigMissingViper.Error(nil)
	}

	vip := fct()
	if vip == nil {
		return ErrorConfigMissingViper.Error(nil)
	}

	return ErrorComponentConfigError.IfError(vip.UnmarshalKey(key, model))
}

// orderedKeys returns component keys sorted so that every key appears
// after all the keys it depends on (Kahn's algorithm); reverse for Stop.
func (c *configModel) orderedKeys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.cpt))
	for k := range c.cpt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	visited := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))

	var visit func(k string)
	visit = func(k string) {
		if visited[k] {
			return
		}
		visited[k] = true
		for _, d := range c.dep[k] {
			if _, ok := c.cpt[d]; ok {
				visit(d)
			}
		}
		out = append(out, k)
	}

	for _, k := range keys {
		visit(k)
	}

	return out
}

func (c *configModel) Start() liberr.Error {
	c.mu.RLock()
	before, after := c.evStartBefore, c.evStartAfter
	c.mu.RUnlock()

	if before != nil {
		if err := before(); err != nil {
			return err
		}
	}

	for _, k := range c.orderedKeys() {
		cpt := c.ComponentGet(k)
		if cpt == nil {
			continue
		}
		if err := cpt.Start(c.getConfig); err != nil {
			return ErrorComponentStart.Error(err)
		}
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	if after != nil {
		if err := after(); err != nil {
			return err
		}
	}

	return nil
}

func (c *configModel) Reload() liberr.Error {
	c.mu.RLock()
	before, after := c.evReloadBefore, c.evReloadAfter
	c.mu.RUnlock()

	if before != nil {
		if err := before(); err != nil {
			return err
		}
	}

	for _, k := range c.orderedKeys() {
		cpt := c.ComponentGet(k)
		if cpt == nil {
			continue
		}
		if err := cpt.Reload(c.getConfig); err != nil {
			return ErrorComponentReload.Error(err)
		}
	}

	if after != nil {
		if err := after(); err != nil {
			return err
		}
	}

	return nil
}

func (c *configModel) Stop() {
	c.mu.RLock()
	before, after := c.evStopBefore, c.evStopAfter
	c.mu.RUnlock()

	if before != nil {
		before()
	}

	keys := c.orderedKeys()
	for i := len(keys) - 1; i >= 0; i-- {
		if cpt := c.ComponentGet(keys[i]); cpt != nil {
			cpt.Stop()
		}
	}

	c.mu.Lock()
	c.started = false
	c.mu.Unlock()

	if after != nil {
		after()
	}
}

func (c *configModel) Shutdown() {
	c.Stop()
	c.cnl()
}

func (c *configModel) ComponentHas(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cpt[key]
	return ok
}

func (c *configModel) ComponentType(key string) string {
	if cpt := c.ComponentGet(key); cpt != nil {
		return cpt.Type()
	}
	return ""
}

func (c *configModel) ComponentGet(key string) Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cpt[key]
}

func (c *configModel) ComponentSet(key string, cpt Component) {
	c.mu.Lock()
	if c.cpt == nil {
		c.cpt = make(map[string]Component)
	}
	if c.dep == nil {
		c.dep = make(map[string][]string)
	}
	c.mu.Unlock()

	cpt.Init(key, c.ctx, c.ComponentGet, func() *spfvpr.Viper {
		c.mu.RLock()
		fct := c.fctViper
		c.mu.RUnlock()
		if fct == nil {
			return nil
		}
		return fct()
	}, func() rlog.Logger {
		c.mu.RLock()
		fct := c.fctLogger
		c.mu.RUnlock()
		if fct == nil {
			return nil
		}
		return fct()
	})

	c.mu.Lock()
	c.cpt[key] = cpt
	c.dep[key] = cpt.Dependencies()
	c.mu.Unlock()
}

func (c *configModel) ComponentDel(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cpt, key)
	delete(c.dep, key)
}

func (c *configModel) ComponentList() map[string]Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Component, len(c.cpt))
	for k, v := range c.cpt {
		out[k] = v
	}
	return out
}

func (c *configModel) ComponentKeys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.cpt))
	for k := range c.cpt {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *configModel) ComponentIsStarted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

func (c *configModel) ComponentIsRunning(atLeast bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.cpt) == 0 {
		return false
	}

	for _, cpt := range c.cpt {
		r := cpt.IsRunning()
		if atLeast && r {
			return true
		}
		if !atLeast && !r {
			return false
		}
	}

	return !atLeast
}

func (c *configModel) RegisterFlag(cmd *spfcbr.Command, vpr *spfvpr.Viper) error {
	for _, k := range c.ComponentKeys() {
		cpt := c.ComponentGet(k)
		if cpt == nil {
			continue
		}
		if err := cpt.RegisterFlag(cmd, vpr); err != nil {
			return ErrorComponentFlagError.Error(err)
		}
	}
	return nil
}
