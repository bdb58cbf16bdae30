// Package fn holds the function registry and the builtin spreadsheet
// functions.
//
// There is no process-global registry: callers construct one (usually
// via Builtins) and hand it to the engine, so two engines can carry
// different function sets without interfering.
package fn

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/cellgrid/cellgrid/internal/value"
)

// ErrAlreadyRegistered is returned when a function name is registered
// twice. Duplicate registration is a configuration mistake, not a
// runtime data error.
var ErrAlreadyRegistered = errors.New("function already registered")

// Arg is one evaluated argument to a function. Exactly one mode is
// active: Range is non-nil when the argument was a range expression,
// otherwise Value holds the scalar result (nil for an empty cell).
// Range sequences are lazy; only aggregate functions consume them.
type Arg struct {
	Value value.Value
	Range iter.Seq[value.Value]
}

// Scalar wraps a scalar value as an argument.
func Scalar(v value.Value) Arg { return Arg{Value: v} }

// RangeOf wraps a lazy value sequence as an argument.
func RangeOf(seq iter.Seq[value.Value]) Arg { return Arg{Range: seq} }

// IsRange reports whether the argument is a range.
func (a Arg) IsRange() bool { return a.Range != nil }

// Func is a function implementation. It receives already-evaluated
// arguments whose count the evaluator has validated against the Spec,
// and returns the result, which may be an error value. Implementations
// never touch cell storage or the dependency graph; the evaluator is
// the single point of reference resolution.
type Func func(args []Arg) value.Value

// Spec describes one registered function.
type Spec struct {
	// MinArgs and MaxArgs bound the argument count. MaxArgs < 0 means
	// unlimited.
	MinArgs int
	MaxArgs int

	// Volatile marks functions whose result can change with unchanged
	// inputs (NOW, RAND). Cells calling them recompute every pass.
	Volatile bool

	Impl Func
}

// AcceptsArgCount reports whether n arguments satisfy the spec.
func (s Spec) AcceptsArgCount(n int) bool {
	if n < s.MinArgs {
		return false
	}
	return s.MaxArgs < 0 || n <= s.MaxArgs
}

// Registry maps case-insensitive function names to their specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds a function under name. Names are case-insensitive;
// registering a name that already exists fails with
// ErrAlreadyRegistered.
func (r *Registry) Register(name string, spec Spec) error {
	if spec.Impl == nil {
		return fmt.Errorf("register %s: nil implementation", name)
	}
	key := strings.ToUpper(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[key]; exists {
		return fmt.Errorf("register %s: %w", key, ErrAlreadyRegistered)
	}
	r.specs[key] = spec
	return nil
}

// Resolve looks up a function by name, case-insensitively.
func (r *Registry) Resolve(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[strings.ToUpper(name)]
	return spec, ok
}

// IsVolatile reports whether name resolves to a volatile function.
func (r *Registry) IsVolatile(name string) bool {
	spec, ok := r.Resolve(name)
	return ok && spec.Volatile
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
