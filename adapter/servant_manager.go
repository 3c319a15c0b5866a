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

package adapter

import (
	"sync"

	"github.com/nabbar/rimecore/proxy"
	liberr "github.com/nabbar/rimecore/rerr"
)

// facetMap is the per-identity {facet -> servant} tier.
type facetMap map[string]Servant

// ServantManager is the {identity -> {facet -> servant}} registry of
// spec §4.7, plus a {category -> default-servant} tier (empty category
// is the global fallback) and a {category -> ServantLocator} tier.
// Lookup order: explicit map -> category default -> empty-category
// default -> category-locator -> empty-category locator -> not found.
type ServantManager struct {
	mu sync.RWMutex

	servants map[proxy.Identity]facetMap
	defaults map[string]Servant
	locators map[string]ServantLocator
}

// NewServantManager builds an empty registry.
func NewServantManager() *ServantManager {
	return &ServantManager{
		servants: make(map[proxy.Identity]facetMap),
		defaults: make(map[string]Servant),
		locators: make(map[string]ServantLocator),
	}
}

// AddServant registers servant under identity+facet. It is an error to
// register over an existing identity+facet pair; the caller is expected
// to RemoveServant first.
func (m *ServantManager) AddServant(identity proxy.Identity, facet string, servant Servant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fm, ok := m.servants[identity]
	if !ok {
		fm = make(facetMap)
		m.servants[identity] = fm
	} else if _, exists := fm[facet]; exists {
		return AlreadyRegisteredError.Error()
	}
	fm[facet] = servant
	return nil
}

// AddDefaultServant registers servant as the fallback for every
// identity in category whose explicit facet map misses. The empty
// category is the global fallback.
func (m *ServantManager) AddDefaultServant(category string, servant Servant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.defaults[category]; exists {
		return AlreadyRegisteredError.Error()
	}
	m.defaults[category] = servant
	return nil
}

// AddServantLocator registers locator as the dynamic-lookup fallback
// for category, consulted only after every static tier misses.
func (m *ServantManager) AddServantLocator(category string, locator ServantLocator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.locators[category]; exists {
		return AlreadyRegisteredError.Error()
	}
	m.locators[category] = locator
	return nil
}

// RemoveServant unregisters identity+facet and returns the servant that
// was there.
func (m *ServantManager) RemoveServant(identity proxy.Identity, facet string) (Servant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fm, ok := m.servants[identity]
	if !ok {
		return nil, NotRegisteredError.Error()
	}
	s, ok := fm[facet]
	if !ok {
		return nil, NotRegisteredError.Error()
	}
	delete(fm, facet)
	if len(fm) == 0 {
		delete(m.servants, identity)
	}
	return s, nil
}

// RemoveDefaultServant unregisters category's default servant.
func (m *ServantManager) RemoveDefaultServant(category string) (Servant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.defaults[category]
	if !ok {
		return nil, NotRegisteredError.Error()
	}
	delete(m.defaults, category)
	return s, nil
}

// RemoveAllFacets atomically removes every facet registered for
// identity and returns the removed {facet -> servant} map. Unlike
// removing each facet one at a time, this holds the servant-map mutex
// across the whole operation so a concurrent AddServant for the same
// identity can't race a teardown and leave a partial map behind.
// Removing the last facet does not touch any category default or
// locator binding for identity.Category — those are independent tiers.
func (m *ServantManager) RemoveAllFacets(identity proxy.Identity) (map[string]Servant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fm, ok := m.servants[identity]
	if !ok {
		return nil, NotRegisteredError.Error()
	}
	delete(m.servants, identity)

	out := make(map[string]Servant, len(fm))
	for k, v := range fm {
		out[k] = v
	}
	return out, nil
}

// Lookup resolves identity+facet through the explicit map and the
// default-servant tiers only (no locator): explicit map -> category
// default -> empty-category default. When none of those hit, miss
// reports whether identity has any facet registered at all, letting
// the caller distinguish FacetNotExist (identity known, this facet
// isn't) from ObjectNotExist (identity unknown).
func (m *ServantManager) Lookup(identity proxy.Identity, facet string) (servant Servant, identityKnown bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fm, identityKnown := m.servants[identity]
	if identityKnown {
		if s, ok := fm[facet]; ok {
			return s, true
		}
	}
	if s, ok := m.defaults[identity.Category]; ok {
		return s, identityKnown
	}
	if s, ok := m.defaults[""]; ok {
		return s, identityKnown
	}
	return nil, identityKnown
}

// MissingIdentityStatus classifies a Lookup miss per spec §4.7's
// distinction between an unknown identity and an unknown facet.
func MissingIdentityStatus(identityKnown bool) liberr.ReplyStatus {
	if identityKnown {
		return liberr.ReplyFacetNotExist
	}
	return liberr.ReplyObjectNotExist
}

// findLocator resolves the ServantLocator tier for identity, preferring
// one registered for its category over the empty-category fallback.
func (m *ServantManager) findLocator(identity proxy.Identity) ServantLocator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l, ok := m.locators[identity.Category]; ok {
		return l
	}
	if l, ok := m.locators[""]; ok {
		return l
	}
	return nil
}

// FindAllFacets returns a copy of every facet currently registered for
// identity.
func (m *ServantManager) FindAllFacets(identity proxy.Identity) map[string]Servant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fm, ok := m.servants[identity]
	if !ok {
		return nil
	}
	out := make(map[string]Servant, len(fm))
	for k, v := range fm {
		out[k] = v
	}
	return out
}
