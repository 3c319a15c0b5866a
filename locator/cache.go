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
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nabbar/rimecore/cache/item"
	"github.com/nabbar/rimecore/proxy"
	"github.com/nabbar/rimecore/rlog"
	"github.com/nabbar/rimecore/rlog/fields"
	"github.com/nabbar/rimecore/rlog/level"
	"github.com/nabbar/rimecore/transport"
)

// refreshFraction is the portion of an entry's TTL, counted down from
// expiry, during which a Lookup triggers a background refresh instead
// of waiting for the entry to actually expire.
const refreshFraction = 4

// resolveTTL maps spec §4.6's TTL convention (-1 forever, 0 no-cache,
// N seconds otherwise) onto cache/item's convention (expire 0 means
// never expire). noCache reports whether the result must never be
// stored at all.
func resolveTTL(ttl int64) (expire time.Duration, noCache bool) {
	switch {
	case ttl == 0:
		return 0, true
	case ttl < 0:
		return 0, false
	default:
		return time.Duration(ttl) * time.Second, false
	}
}

// Cache is the TTL-and-singleflight front for a proxy.Locator, caching
// both of spec §4.6's resolution kinds: adapter-id -> endpoint list and
// identity -> reference. It implements proxy.Locator itself, so it can
// be plugged directly into Reference.Locator in place of the resolver
// it wraps.
type Cache struct {
	resolver proxy.Locator
	log      rlog.Logger

	mu       sync.RWMutex
	adapters map[string]item.CacheItem[[]transport.Endpoint]
	objects  map[proxy.Identity]item.CacheItem[*proxy.Reference]

	sfAdapters singleflight.Group
	sfObjects  singleflight.Group
}

// NewCache wraps resolver, the concrete Locator proxy actually talking
// to the remote Locator object (out of scope here per SPEC_FULL.md §13 —
// generated code owns the wire shape of that call). logFn defaults to a
// discarding Warn-level logger if nil.
func NewCache(resolver proxy.Locator, logFn func() rlog.Logger) *Cache {
	if logFn == nil {
		logFn = func() rlog.Logger { return rlog.New("locator-cache", io.Discard, level.WarnLevel) }
	}
	return &Cache{
		resolver: resolver,
		log:      logFn(),
		adapters: make(map[string]item.CacheItem[[]transport.Endpoint]),
		objects:  make(map[proxy.Identity]item.CacheItem[*proxy.Reference]),
	}
}

// FindAdapterById satisfies proxy.Locator using the default TTL
// convention of "cache forever" (ttl -1); use ResolveAdapter for a
// reference-specific TTL.
func (c *Cache) FindAdapterById(ctx context.Context, adapterId string) ([]transport.Endpoint, error) {
	return c.ResolveAdapter(ctx, adapterId, -1)
}

// FindObjectById satisfies proxy.Locator using the default "cache
// forever" TTL; use ResolveObject for a reference-specific TTL.
func (c *Cache) FindObjectById(ctx context.Context, identity proxy.Identity) (*proxy.Reference, error) {
	return c.ResolveObject(ctx, identity, -1)
}

// ResolveAdapter resolves adapterId to its endpoint list, consulting
// (and populating) the cache under ttl's policy. Concurrent callers
// racing to resolve the same adapterId share one resolver call.
func (c *Cache) ResolveAdapter(ctx context.Context, adapterId string, ttl int64) ([]transport.Endpoint, error) {
	expire, noCache := resolveTTL(ttl)
	if noCache {
		return c.resolver.FindAdapterById(ctx, adapterId)
	}

	c.mu.RLock()
	it, hit := c.adapters[adapterId]
	c.mu.RUnlock()

	if hit {
		if eps, valid := it.Load(); valid {
			c.maybeRefreshAdapter(it, adapterId, ttl)
			return eps, nil
		}
	}

	v, err, _ := c.sfAdapters.Do(adapterId, func() (interface{}, error) {
		eps, rerr := c.resolver.FindAdapterById(ctx, adapterId)
		if rerr != nil {
			return nil, rerr
		}
		c.storeAdapter(adapterId, eps, expire)
		return eps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]transport.Endpoint), nil
}

// ResolveObject resolves identity to a direct reference, the same way
// ResolveAdapter resolves an indirect one.
func (c *Cache) ResolveObject(ctx context.Context, identity proxy.Identity, ttl int64) (*proxy.Reference, error) {
	expire, noCache := resolveTTL(ttl)
	if noCache {
		return c.resolver.FindObjectById(ctx, identity)
	}

	c.mu.RLock()
	it, hit := c.objects[identity]
	c.mu.RUnlock()

	if hit {
		if ref, valid := it.Load(); valid {
			c.maybeRefreshObject(it, identity, ttl)
			return ref, nil
		}
	}

	key := identity.Category + "/" + identity.Name
	v, err, _ := c.sfObjects.Do(key, func() (interface{}, error) {
		ref, rerr := c.resolver.FindObjectById(ctx, identity)
		if rerr != nil {
			return nil, rerr
		}
		c.storeObject(identity, ref, expire)
		return ref, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*proxy.Reference), nil
}

// Invalidate drops adapterId's cached resolution, forcing the next
// ResolveAdapter call to hit the resolver. Spec §4.6 doesn't name this
// operation, but a caller that gets ObjectNotExist/ConnectFailed against
// a cached endpoint list needs a way to force re-resolution rather than
// waiting out the TTL, exactly as Ice's own LocatorInfo::clearCache does.
func (c *Cache) Invalidate(adapterId string) {
	c.mu.Lock()
	delete(c.adapters, adapterId)
	c.mu.Unlock()
}

// InvalidateObject is Invalidate's identity -> reference counterpart.
func (c *Cache) InvalidateObject(identity proxy.Identity) {
	c.mu.Lock()
	delete(c.objects, identity)
	c.mu.Unlock()
}

func (c *Cache) storeAdapter(adapterId string, eps []transport.Endpoint, expire time.Duration) {
	c.mu.Lock()
	c.adapters[adapterId] = item.New[[]transport.Endpoint](expire, eps)
	c.mu.Unlock()
}

func (c *Cache) storeObject(identity proxy.Identity, ref *proxy.Reference, expire time.Duration) {
	c.mu.Lock()
	c.objects[identity] = item.New[*proxy.Reference](expire, ref)
	c.mu.Unlock()
}

// maybeRefreshAdapter spawns a background re-resolution once less than
// 1/refreshFraction of the entry's TTL remains, per spec §4.6's
// "background update mode refreshes entries near expiry without
// blocking in-flight invocations." A zero Duration means the entry
// never expires, so it is never refreshed.
func (c *Cache) maybeRefreshAdapter(it item.CacheItem[[]transport.Endpoint], adapterId string, ttl int64) {
	d := it.Duration()
	if d <= 0 {
		return
	}
	elapsed, valid := it.Remain()
	if !valid || d-elapsed > d/refreshFraction {
		return
	}
	go func() {
		_, _, _ = c.sfAdapters.Do("refresh:"+adapterId, func() (interface{}, error) {
			eps, err := c.resolver.FindAdapterById(context.Background(), adapterId)
			if err != nil {
				c.log.Warn("background adapter refresh failed", fields.String("adapter-id", adapterId), fields.Err(err))
				return nil, err
			}
			expire, _ := resolveTTL(ttl)
			c.storeAdapter(adapterId, eps, expire)
			return eps, nil
		})
	}()
}

func (c *Cache) maybeRefreshObject(it item.CacheItem[*proxy.Reference], identity proxy.Identity, ttl int64) {
	d := it.Duration()
	if d <= 0 {
		return
	}
	elapsed, valid := it.Remain()
	if !valid || d-elapsed > d/refreshFraction {
		return
	}
	key := identity.Category + "/" + identity.Name
	go func() {
		_, _, _ = c.sfObjects.Do("refresh:"+key, func() (interface{}, error) {
			ref, err := c.resolver.FindObjectById(context.Background(), identity)
			if err != nil {
				c.log.Warn("background object refresh failed", fields.String("identity", key), fields.Err(err))
				return nil, err
			}
			expire, _ := resolveTTL(ttl)
			c.storeObject(identity, ref, expire)
			return ref, nil
		})
	}()
}
