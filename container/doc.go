// Package container provides Registry, a factory.Container backed by registered
// constructor funcs.
//
// It offers:
// - class registration with constructor funcs and optional parameter names
// - positional, named and variadic argument binding with value conversion
// - shared (singleton) classes with singleflight deduplication of the first build
// - reflective method and callback invocation
package container
