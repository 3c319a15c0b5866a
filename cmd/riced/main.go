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

// Command riced is a minimal example server: it wires an rconfig.Config,
// an instance.EngineConfig component, and a Communicator hosting one
// ObjectAdapter with a single ping servant listening on TCP, following
// the same Viper-backed Config/Component/flag wiring rconfig.Config
// expects any embedding application to drive it with.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	"github.com/nabbar/rimecore/adapter"
	"github.com/nabbar/rimecore/instance"
	"github.com/nabbar/rimecore/proxy"
	liberr "github.com/nabbar/rimecore/rerr"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/rlog/level"
	"github.com/nabbar/rimecore/transport/tcp"
	"github.com/nabbar/rimecore/wire"
)

// pingServant answers the "ping" operation on any identity it is
// registered under with an empty OK reply, and rejects anything else
// as an unknown operation the way an unrecognized entry in a generated
// dispatch table would.
type pingServant struct {
	log rlog.FuncLog
}

func (p pingServant) Dispatch(_ context.Context, operation string, _ *wire.InputStream, _ *wire.OutputStream, current adapter.Current) (liberr.ReplyStatus, error) {
	if operation != "ping" {
		return liberr.ReplyOperationNotExist, nil
	}
	p.log().Info("ping", fields.String("category", current.Identity.Category), fields.String("name", current.Identity.Name))
	return liberr.ReplyOK, nil
}

func main() {
	vpr := spfvpr.New()
	var cfgFile string
	var host string
	var port int

	root := &spfcbr.Command{
		Use:   "riced",
		Short: "example server hosting one adapter over this module's engine",
		RunE: func(cmd *spfcbr.Command, args []string) error {
			if cfgFile != "" {
				vpr.SetConfigFile(cfgFile)
				_ = vpr.ReadInConfig()
			}
			return run(cmd.Context(), vpr, host, port)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (optional)")
	root.Flags().StringVar(&host, "host", "127.0.0.1", "address the example adapter listens on")
	root.Flags().IntVar(&port, "port", 4061, "port the example adapter listens on")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, vpr *spfvpr.Viper, host string, port int) error {
	logFn := func() rlog.Logger { return rlog.New("riced", os.Stdout, level.InfoLevel) }

	engineCfg := &instance.EngineConfig{}
	engineCfg.Init("engine", ctx, nil, func() *spfvpr.Viper { return vpr }, logFn)
	if err := engineCfg.Start(func(key string, model interface{}) liberr.Error {
		return instance.InvalidConfigError.IfError(vpr.UnmarshalKey(key, model))
	}); err != nil {
		return err
	}

	comm := instance.New(*engineCfg, instance.Dependencies{
		Log: logFn,
		EndpointParsers: proxy.EndpointParsers{
			"tcp": tcp.Parse,
		},
	})
	defer func() { _ = comm.Destroy(context.Background()) }()

	ep := tcp.New(host, port, 0, nil, nil)
	oa, err := comm.CreateObjectAdapter("greeter", ep)
	if err != nil {
		return fmt.Errorf("create adapter: %w", err)
	}

	ident := proxy.Identity{Category: "example", Name: "greeter"}
	if err = oa.ServantManager().AddServant(ident, "", pingServant{log: logFn}); err != nil {
		return fmt.Errorf("register servant: %w", err)
	}

	if err = oa.Activate(ctx); err != nil {
		return fmt.Errorf("activate adapter: %w", err)
	}
	logFn().Info("listening", fields.String("host", host), fields.Int("port", port))

	<-ctx.Done()

	logFn().Info("shutting down")
	return oa.Deactivate(context.Background())
}
