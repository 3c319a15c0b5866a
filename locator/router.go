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

package locator

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nabbar/rimecore/cache/item"
	"github.com/nabbar/rimecore/proxy"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/rlog/level"
)

// RouterInfo caches a proxy.Router's own client proxy the same way
// Cache caches adapter/object resolutions, sharing the singleflight
// pattern so concurrent callers racing to learn the router's client
// proxy issue one GetClientProxy call. Recovered from
// original_source/cpp/src/Glacier2/RouterI.h's getClientProxy/
// addProxies pair (spec.md's Reference.Router attribute is otherwise
// mentioned only as "optional router", with no resolution-caching
// behavior specified).
type RouterInfo struct {
	router proxy.Router
	log    rlog.Logger

	mu     sync.RWMutex
	client item.CacheItem[*proxy.Reference]
	known  map[proxy.Identity]struct{}

	sf singleflight.Group
}

// NewRouterInfo wraps router. The client proxy it returns is cached
// forever once resolved: spec.md gives no TTL for router resolution,
// and Ice's own RouterInfo only drops its cached client proxy when the
// router's connection itself is lost (out of scope for this narrow
// cache — a caller can force re-resolution with ClearCache).
func NewRouterInfo(router proxy.Router, logFn func() rlog.Logger) *RouterInfo {
	if logFn == nil {
		logFn = func() rlog.Logger { return rlog.New("router-info", io.Discard, level.WarnLevel) }
	}
	return &RouterInfo{
		router: router,
		log:    logFn(),
		known:  make(map[proxy.Identity]struct{}),
	}
}

// ClientProxy returns the router's client proxy, resolving and caching
// it on first use.
func (r *RouterInfo) ClientProxy(ctx context.Context) (*proxy.Reference, error) {
	r.mu.RLock()
	it := r.client
	r.mu.RUnlock()

	if it != nil {
		if ref, valid := it.Load(); valid {
			return ref, nil
		}
	}

	v, err, _ := r.sf.Do("client", func() (interface{}, error) {
		ref, rerr := r.router.GetClientProxy(ctx)
		if rerr != nil {
			r.log.Warn("router client proxy resolution failed", fields.Err(rerr))
			return nil, rerr
		}
		r.mu.Lock()
		r.client = item.New[*proxy.Reference](0, ref)
		r.mu.Unlock()
		return ref, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*proxy.Reference), nil
}

// ClearCache drops the cached client proxy, forcing the next
// ClientProxy call to re-resolve it.
func (r *RouterInfo) ClearCache() {
	r.mu.Lock()
	r.client = nil
	r.mu.Unlock()
}

// AddProxy records identity as already known to the router, mirroring
// RouterI::addProxies's role of forwarding only proxies the router
// hasn't already seen. Returns false if identity was already known, so
// a caller can skip re-sending it to the router.
func (r *RouterInfo) AddProxy(identity proxy.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[identity]; ok {
		return false
	}
	r.known[identity] = struct{}{}
	return true
}
