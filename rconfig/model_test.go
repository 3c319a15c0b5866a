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

package rconfig_test

import (
	"context"
	"sync/atomic"

	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/rimecore/rconfig"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
)

type stubComponent struct {
	typ     string
	deps    []string
	started atomic.Bool
	running atomic.Bool
	order   *[]string
}

func (s *stubComponent) Type() string { return s.typ }

func (s *stubComponent) Init(string, context.Context, rconfig.FuncComponentGet, func() *spfvpr.Viper, rlog.FuncLog) {
}

func (s *stubComponent) RegisterFlag(*spfcbr.Command, *spfvpr.Viper) error { return nil }
func (s *stubComponent) IsStarted() bool                                  { return s.started.Load() }
func (s *stubComponent) IsRunning() bool                                  { return s.running.Load() }

func (s *stubComponent) Start(rconfig.FuncComponentConfigGet) liberr.Error {
	s.started.Store(true)
	s.running.Store(true)
	if s.order != nil {
		*s.order = append(*s.order, s.typ)
	}
	return nil
}

func (s *stubComponent) Reload(rconfig.FuncComponentConfigGet) liberr.Error { return nil }

func (s *stubComponent) Stop() {
	s.running.Store(false)
	if s.order != nil {
		*s.order = append(*s.order, "stop:"+s.typ)
	}
}

func (s *stubComponent) DefaultConfig(string) []byte { return []byte("{}") }
func (s *stubComponent) Dependencies() []string      { return s.deps }

var _ = Describe("Config", func() {
	var cfg rconfig.Config

	BeforeEach(func() {
		cfg = rconfig.New(context.Background())
	})

	It("registers and retrieves components", func() {
		cpt := &stubComponent{typ: "logger"}
		cfg.ComponentSet("logger", cpt)

		Expect(cfg.ComponentHas("logger")).To(BeTrue())
		Expect(cfg.ComponentType("logger")).To(Equal("logger"))
		Expect(cfg.ComponentGet("logger")).To(Equal(cpt))
	})

	It("starts components in dependency order", func() {
		var order []string
		cfg.ComponentSet("tls", &stubComponent{typ: "tls", order: &order})
		cfg.ComponentSet("adapter", &stubComponent{typ: "adapter", deps: []string{"tls"}, order: &order})

		Expect(cfg.Start()).To(BeNil())
		Expect(order).To(Equal([]string{"tls", "adapter"}))
		Expect(cfg.ComponentIsStarted()).To(BeTrue())
	})

	It("stops components in reverse dependency order", func() {
		var order []string
		cfg.ComponentSet("tls", &stubComponent{typ: "tls", order: &order})
		cfg.ComponentSet("adapter", &stubComponent{typ: "adapter", deps: []string{"tls"}, order: &order})

		Expect(cfg.Start()).To(BeNil())
		order = nil
		cfg.Stop()
		Expect(order).To(Equal([]string{"stop:adapter", "stop:tls"}))
	})

	It("reports ComponentIsRunning across all components", func() {
		cfg.ComponentSet("a", &stubComponent{typ: "a"})
		cfg.ComponentSet("b", &stubComponent{typ: "b"})
		Expect(cfg.Start()).To(BeNil())

		Expect(cfg.ComponentIsRunning(false)).To(BeTrue())
		Expect(cfg.ComponentIsRunning(true)).To(BeTrue())
	})

	It("removes components via ComponentDel", func() {
		cfg.ComponentSet("a", &stubComponent{typ: "a"})
		cfg.ComponentDel("a")
		Expect(cfg.ComponentHas("a")).To(BeFalse())
	})
})
