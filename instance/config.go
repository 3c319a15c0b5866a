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

package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	libval "github.com/go-playground/validator/v10"
	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	"github.com/nabbar/rimecore/duration"
	"github.com/nabbar/rimecore/proxy"
	"github.com/nabbar/rimecore/rconfig"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/wire"
)

// EngineConfig is the typed configuration knob set spec.md §6 names for
// a communicator: message and class-graph size limits, ACM timeout,
// retry intervals, and the default protocol/encoding a freshly-built
// Reference starts from. It implements rconfig.Component so it can be
// registered on an rconfig.Config alongside every other subsystem
// (logger, TLS, object adapters) and loaded from the same Viper
// instance, the way the teacher wires its own Component
// implementations.
type EngineConfig struct {
	MessageSizeMax     int                 `mapstructure:"messageSizeMax" json:"messageSizeMax" yaml:"messageSizeMax" toml:"messageSizeMax" validate:"gt=0"`
	ClassGraphDepthMax int                 `mapstructure:"classGraphDepthMax" json:"classGraphDepthMax" yaml:"classGraphDepthMax" toml:"classGraphDepthMax" validate:"gt=0"`
	ACMTimeout         duration.Duration   `mapstructure:"acmTimeout" json:"acmTimeout" yaml:"acmTimeout" toml:"acmTimeout" validate:"gte=0"`
	ACMSweepInterval   duration.Duration   `mapstructure:"acmSweepInterval" json:"acmSweepInterval" yaml:"acmSweepInterval" toml:"acmSweepInterval" validate:"gt=0"`
	RetryIntervals     []duration.Duration `mapstructure:"retryIntervals" json:"retryIntervals" yaml:"retryIntervals" toml:"retryIntervals" validate:"dive,gte=0"`
	MaxRetries         int                 `mapstructure:"maxRetries" json:"maxRetries" yaml:"maxRetries" toml:"maxRetries" validate:"gte=0"`
	DefaultProtocolMajor uint8             `mapstructure:"defaultProtocolMajor" json:"defaultProtocolMajor" yaml:"defaultProtocolMajor" toml:"defaultProtocolMajor" validate:"gte=1"`
	DefaultProtocolMinor uint8             `mapstructure:"defaultProtocolMinor" json:"defaultProtocolMinor" yaml:"defaultProtocolMinor" toml:"defaultProtocolMinor"`
	DefaultEncodingMajor uint8             `mapstructure:"defaultEncodingMajor" json:"defaultEncodingMajor" yaml:"defaultEncodingMajor" toml:"defaultEncodingMajor" validate:"gte=1"`
	DefaultEncodingMinor uint8             `mapstructure:"defaultEncodingMinor" json:"defaultEncodingMinor" yaml:"defaultEncodingMinor" toml:"defaultEncodingMinor"`
	ClientPoolSize       int               `mapstructure:"clientPoolSize" json:"clientPoolSize" yaml:"clientPoolSize" toml:"clientPoolSize" validate:"gt=0"`
	ClientPoolQueue      int               `mapstructure:"clientPoolQueue" json:"clientPoolQueue" yaml:"clientPoolQueue" toml:"clientPoolQueue" validate:"gt=0"`
	ServerPoolSize       int               `mapstructure:"serverPoolSize" json:"serverPoolSize" yaml:"serverPoolSize" toml:"serverPoolSize" validate:"gt=0"`
	ServerPoolQueue      int               `mapstructure:"serverPoolQueue" json:"serverPoolQueue" yaml:"serverPoolQueue" toml:"serverPoolQueue" validate:"gt=0"`

	log rlog.FuncLog
	get rconfig.FuncComponentGet
}

// DefaultEngineConfig mirrors spec §6's illustrative defaults: 1 MiB
// messages, 100 slices of class-graph depth, the retry table from
// proxy.DefaultRetryPolicy, and encoding 1.1 / protocol 1.0.
func DefaultEngineConfig() EngineConfig {
	retry := proxy.DefaultRetryPolicy()
	return EngineConfig{
		MessageSizeMax:       wire.DefaultLimits.MessageSizeMax,
		ClassGraphDepthMax:   wire.DefaultLimits.ClassGraphDepthMax,
		ACMTimeout:           duration.Minutes(1),
		ACMSweepInterval:     duration.Seconds(5),
		RetryIntervals:       retry.Intervals,
		MaxRetries:           retry.MaxRetries,
		DefaultProtocolMajor: 1,
		DefaultProtocolMinor: 0,
		DefaultEncodingMajor: 1,
		DefaultEncodingMinor: 1,
		ClientPoolSize:       8,
		ClientPoolQueue:      256,
		ServerPoolSize:       8,
		ServerPoolQueue:      256,
	}
}

// Limits renders the message/class-graph half of this config as a
// wire.Limits, the shape connection.Factory and ObjectAdapter consume.
func (c *EngineConfig) Limits() wire.Limits {
	return wire.Limits{MessageSizeMax: c.MessageSizeMax, ClassGraphDepthMax: c.ClassGraphDepthMax}
}

// RetryPolicy renders the retry half of this config as a proxy.RetryPolicy.
func (c *EngineConfig) RetryPolicy() proxy.RetryPolicy {
	return proxy.RetryPolicy{Intervals: c.RetryIntervals, MaxRetries: c.MaxRetries}
}

func (c *EngineConfig) Validate() liberr.Error {
	err := InvalidConfigError.Error(nil)

	if er := libval.New().Struct(c); er != nil {
		if e, ok := er.(*libval.InvalidValidationError); ok {
			err.Add(e)
		}
		for _, e := range er.(libval.ValidationErrors) {
			//nolint goerr113
			err.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.StructNamespace(), e.ActualTag()))
		}
	}

	if err.HasParent() {
		return err
	}
	return nil
}

var _ rconfig.Component = (*EngineConfig)(nil)

func (c *EngineConfig) Type() string { return "engine" }

func (c *EngineConfig) Init(_ string, _ context.Context, get rconfig.FuncComponentGet, _ func() *spfvpr.Viper, log rlog.FuncLog) {
	c.get = get
	c.log = log
}

func (c *EngineConfig) RegisterFlag(_ *spfcbr.Command, _ *spfvpr.Viper) error { return nil }

func (c *EngineConfig) IsStarted() bool { return c.MessageSizeMax > 0 }
func (c *EngineConfig) IsRunning() bool { return c.IsStarted() }

func (c *EngineConfig) Start(getCfg rconfig.FuncComponentConfigGet) liberr.Error {
	def := DefaultEngineConfig()
	if err := getCfg("engine", &def); err != nil {
		return err
	}
	*c = def
	if err := c.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *EngineConfig) Reload(getCfg rconfig.FuncComponentConfigGet) liberr.Error {
	return c.Start(getCfg)
}

func (c *EngineConfig) Stop() {}

func (c *EngineConfig) DefaultConfig(indent string) []byte {
	raw, err := json.Marshal(DefaultEngineConfig())
	if err != nil {
		return nil
	}
	res := bytes.NewBuffer(make([]byte, 0, len(raw)))
	if err = json.Indent(res, raw, "", indent); err != nil {
		return raw
	}
	return res.Bytes()
}

func (c *EngineConfig) Dependencies() []string { return nil }
