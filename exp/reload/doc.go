// Package reload provides experimental hot reload of named objects built from
// descriptions.
//
// Reconciler is the core type and performs:
// 1. fingerprint new descriptions
// 2. reuse objects whose description did not change
// 3. prewarm added and changed objects
// 4. atomically swap the current set
// 5. close expired objects
//
// This package is EXPERIMENTAL and its API may change before v1.
package reload
