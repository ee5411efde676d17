// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"github.com/go-chi/chi/v5"
)

// RouteFunc registers HTTP routes on the service router.
type RouteFunc func(r chi.Router)

// routes keeps hooks in registration order and applies them once.
type routes struct {
	hooks   []RouteFunc
	applied bool
}

func (r *routes) add(fn RouteFunc) {
	r.hooks = append(r.hooks, fn)
}

// apply runs every hook against mux; later calls are no-ops.
func (r *routes) apply(mux chi.Router) bool {
	if r.applied {
		return false
	}

	r.applied = true

	for _, fn := range r.hooks {
		if fn != nil {
			fn(mux)
		}
	}

	return true
}
