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

// Package rconfig is the typed configuration and component-lifecycle layer
// threaded through the engine instance: message-size limits, ACM timeouts,
// retry intervals and endpoint defaults are all loaded through a
// Config backed by spf13/viper, with per-subsystem Component registration
// (logger, TLS, object adapter, communicator) following the same
// Init/Start/Reload/Stop lifecycle on each.
package rconfig

import (
	"context"

	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
)

// FuncComponentGet retrieves a sibling component by key, used for
// dependency injection between components (e.g. the adapter component
// resolving the logger component registered under a different key).
type FuncComponentGet func(key string) Component

// FuncComponentConfigGet unmarshals the configuration section registered
// under key into model, typically a pointer to a component-owned struct.
type FuncComponentConfigGet func(key string, model interface{}) liberr.Error

// FuncEvent is a lifecycle hook registered around Start/Reload/Stop.
type FuncEvent func() liberr.Error

// Component is a named, independently-lifecycled subsystem registered with
// a Config: the rlog sink, the TLS material loader, an ObjectAdapter, or a
// Communicator's default proxy settings.
type Component interface {
	// Type returns the component kind, e.g. "logger", "tls", "adapter".
	Type() string

	// Init wires the component to its runtime collaborators. Called once
	// by Config.ComponentSet, before Start.
	Init(key string, ctx context.Context, get FuncComponentGet, vpr func() *spfvpr.Viper, log rlog.FuncLog)

	// RegisterFlag registers CLI flags under Command, bound through Viper
	// so they surface as configuration keys namespaced by key.
	RegisterFlag(cmd *spfcbr.Command, vpr *spfvpr.Viper) error

	// IsStarted reports whether Start has completed successfully.
	IsStarted() bool

	// IsRunning reports whether the component's background work, if any,
	// is still active.
	IsRunning() bool

	// Start loads the component's configuration section via getCfg and
	// brings the subsystem up.
	Start(getCfg FuncComponentConfigGet) liberr.Error

	// Reload re-reads the component's configuration section and applies
	// the change, restarting internal services only if necessary.
	Reload(getCfg FuncComponentConfigGet) liberr.Error

	// Stop shuts the component down. Best-effort; must not block forever.
	Stop()

	// DefaultConfig renders the component's default configuration as
	// indented JSON, used to generate a complete default config file.
	DefaultConfig(indent string) []byte

	// Dependencies lists component keys that must start before, and stop
	// after, this one.
	Dependencies() []string
}

// Config is the root configuration and lifecycle coordinator: it owns the
// Viper instance, the component registry, and the Start/Reload/Stop/Shutdown
// sequencing across every registered Component in dependency order.
type Config interface {
	Context() context.Context

	// RegisterFuncViper exposes the live *spfvpr.Viper instance to every
	// component; components call back into it at Start/Reload to decode
	// their configuration section.
	RegisterFuncViper(fct func() *spfvpr.Viper)

	// RegisterDefaultLogger registers the fallback logger handed to
	// components that don't carry their own rlog.Logger.
	RegisterDefaultLogger(fct rlog.FuncLog)

	RegisterFuncStartBefore(fct FuncEvent)
	RegisterFuncStartAfter(fct FuncEvent)
	RegisterFuncReloadBefore(fct FuncEvent)
	RegisterFuncReloadAfter(fct FuncEvent)
	RegisterFuncStopBefore(fct func())
	RegisterFuncStopAfter(fct func())

	// Start runs every registered component's Start, in dependency order,
	// aborting on the first error.
	Start() liberr.Error

	// Reload runs every registered component's Reload, in dependency
	// order, aborting on the first error.
	Reload() liberr.Error

	// Stop runs every registered component's Stop, in reverse dependency
	// order. Always completes; components must clean up best-effort.
	Stop()

	// Shutdown calls Stop then cancels the root context.
	Shutdown()

	ComponentHas(key string) bool
	ComponentType(key string) string
	ComponentGet(key string) Component
	ComponentSet(key string, cpt Component)
	ComponentDel(key string)
	ComponentList() map[string]Component
	ComponentKeys() []string
	ComponentIsStarted() bool
	ComponentIsRunning(atLeast bool) bool

	// RegisterFlag registers every component's CLI flags on cmd.
	RegisterFlag(cmd *spfcbr.Command, vpr *spfvpr.Viper) error
}

// New builds a Config bound to parent; cancelling parent stops every
// registered component the way a SIGTERM would.
func New(parent context.Context) Config {
	ctx, cnl := context.WithCancel(parent)

	c := &configModel{
		ctx: ctx,
		cnl: cnl,
	}

	return c
}
