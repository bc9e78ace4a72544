// Package server hosts the Fiber HTTP service and request middleware chain
// that exposes the cache manager as a small admin/API surface. It attaches
// request-ID and recover middlewares, maps cache error kinds onto HTTP status
// codes, and keeps exports narrow so main can wire explicit dependencies.
package server
