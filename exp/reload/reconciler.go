package reload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/chenyanchen/factory"
)

// Result describes the object changes of one reconciliation. Names are sorted.
type Result struct {
	Added     []string // Name exists only in new descriptions.
	Removed   []string // Name exists only in old descriptions.
	Reused    []string // Description unchanged, object kept.
	Rebuilt   []string // Object built (added or description changed).
	ClosedOld []string // Old objects closed after switch (removed + rebuilt).
}

// Reconciler keeps a set of named objects built from descriptions and applies
// incremental switches on new descriptions.
//
// Semantics:
// 1. fingerprint the new descriptions
// 2. reuse objects whose description is unchanged
// 3. build added and changed objects before switching
// 4. atomically swap the current set
// 5. close expired objects that implement io.Closer
type Reconciler struct {
	builder *factory.Builder

	mu       sync.RWMutex
	current  map[string]any
	snapshot map[string]string
}

func New(ctx context.Context, builder *factory.Builder, initial map[string]any) (*Reconciler, error) {
	if builder == nil {
		return nil, fmt.Errorf("new reconciler: builder is nil")
	}
	r := &Reconciler{
		builder:  builder,
		current:  map[string]any{},
		snapshot: map[string]string{},
	}
	if len(initial) == 0 {
		return r, nil
	}
	if _, err := r.Reconcile(ctx, initial); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns a snapshot of the active objects.
func (r *Reconciler) Current() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.current))
	for k, v := range r.current {
		out[k] = v
	}
	return out
}

func (r *Reconciler) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.current[name]
	return v, ok
}

// Reconcile switches the reconciler to descriptions, keyed by object name.
//
// Reuse is decided by Fingerprint, which hashes funcs by code pointer: a callback
// created from the same literal with different captured state counts as unchanged
// and the old object is kept. Put such state in description values instead.
//
// A shared class returns its cached instance for a changed description; an old
// object still present in the new set is never closed.
func (r *Reconciler) Reconcile(ctx context.Context, descriptions map[string]any) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	nextSnapshot := make(map[string]string, len(descriptions))
	for name, description := range descriptions {
		hash, err := factory.Fingerprint(description)
		if err != nil {
			return Result{}, fmt.Errorf("fingerprint %s: %w", name, err)
		}
		nextSnapshot[name] = hash
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	diff := diffSnapshots(r.snapshot, nextSnapshot)

	next := make(map[string]any, len(descriptions))
	for _, name := range diff.Reused {
		next[name] = r.current[name]
	}
	built := make([]string, 0, len(diff.Rebuilt))
	for _, name := range diff.Rebuilt {
		object, err := r.builder.Build(ctx, descriptions[name])
		if err != nil {
			_ = closeObjects(next, built, r.current)
			return Result{}, fmt.Errorf("prewarm %s: %w", name, err)
		}
		next[name] = object
		built = append(built, name)
	}

	old := r.current
	r.current = next
	r.snapshot = nextSnapshot

	if err := closeObjects(old, diff.ClosedOld, next); err != nil {
		return diff, fmt.Errorf("switch success but close old failed: %w", err)
	}
	return diff, nil
}

// Close closes every active object and empties the set.
func (r *Reconciler) Close(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.current))
	for name := range r.current {
		names = append(names, name)
	}
	sort.Strings(names)
	err := closeObjects(r.current, names, nil)
	r.current = map[string]any{}
	r.snapshot = map[string]string{}
	return err
}

// closeObjects closes the named objects in reverse order. Objects identical to one
// in live, or to one already closed, are skipped.
func closeObjects(objects map[string]any, names []string, live map[string]any) error {
	var (
		errs   []error
		closed []any
	)
	for i := len(names) - 1; i >= 0; i-- {
		object := objects[names[i]]
		closer, ok := object.(io.Closer)
		if !ok || containsIdentical(live, object) || slices.ContainsFunc(closed, func(c any) bool { return identical(c, object) }) {
			continue
		}
		closed = append(closed, object)
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", names[i], err))
		}
	}
	return errors.Join(errs...)
}

func containsIdentical(objects map[string]any, object any) bool {
	for _, o := range objects {
		if identical(o, object) {
			return true
		}
	}
	return false
}

// identical reports whether a and b are the same instance. Only reference kinds
// have an identity.
func identical(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() || va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

func diffSnapshots(oldSnap, newSnap map[string]string) Result {
	result := Result{}
	for name, hash := range newSnap {
		oldHash, ok := oldSnap[name]
		switch {
		case !ok:
			result.Added = append(result.Added, name)
			result.Rebuilt = append(result.Rebuilt, name)
		case oldHash != hash:
			result.Rebuilt = append(result.Rebuilt, name)
			result.ClosedOld = append(result.ClosedOld, name)
		default:
			result.Reused = append(result.Reused, name)
		}
	}
	for name := range oldSnap {
		if _, ok := newSnap[name]; !ok {
			result.Removed = append(result.Removed, name)
			result.ClosedOld = append(result.ClosedOld, name)
		}
	}
	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Reused)
	sort.Strings(result.Rebuilt)
	sort.Strings(result.ClosedOld)
	return result
}
