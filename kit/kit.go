// CLAUDE:SUMMARY Endpoint/Middleware primitives shared by every adveille transport surface.
// Package kit provides the transport-agnostic request primitives used by the
// adveille services: a typed Endpoint, composable Middleware, and the MCP
// tool registration helper.
package kit

import "context"

// Endpoint is a single request/response operation.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first middleware is the
// outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
