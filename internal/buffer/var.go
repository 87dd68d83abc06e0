package buffer

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Hasher is implemented by values that can summarize themselves cheaply.
// Change detection compares hashes instead of whole values.
type Hasher interface {
	Hash() uint64
}

// Equaler is implemented by values with a custom notion of equality.
type Equaler[T any] interface {
	Equal(T) bool
}

// Option customizes a binding.
type Option[T any] func(*Var[T])

// WithEqual overrides the equality used for change detection.
func WithEqual[T any](eq func(a, b T) bool) Option[T] {
	return func(v *Var[T]) { v.eq = eq; v.hash = nil }
}

// WithHash switches change detection to compare hash snapshots.
func WithHash[T any](hash func(T) uint64) Option[T] {
	return func(v *Var[T]) { v.hash = hash }
}

// WithClone sets the copy used when values cross between live and shadow.
// Types holding slices or maps need it to avoid aliasing the two copies.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(v *Var[T]) { v.clone = clone }
}

// WithParse sets the parser used by Buffer.SetString.
func WithParse[T any](parse func(string) (T, error)) Option[T] {
	return func(v *Var[T]) { v.parse = parse }
}

type mark[T any] struct {
	set   bool
	hash  uint64
	value T
}

// Var binds one live location to its shadow copy.
type Var[T any] struct {
	name   string
	live   *T
	shadow T
	staged T

	eq    func(a, b T) bool
	hash  func(T) uint64
	clone func(T) T
	parse func(string) (T, error)

	liveMark   mark[T]
	shadowMark mark[T]
	// changed is set when the UI edited the shadow copy and the edit has not
	// been pulled into the live copy yet.
	changed bool
}

// Bind registers live under name and returns its binding. The shadow copy is
// initialized from the live value. The live side has no baseline until the
// first MarkLive, so LiveChanged reports false before then. The shadow lock
// must be held; Bind is meant to be called from Simulation.Prepare.
func Bind[T any](b *Buffer, name string, live *T, opts ...Option[T]) *Var[T] {
	if live == nil {
		panic(fmt.Sprintf("buffer: Bind %q with nil live pointer", name))
	}
	v := &Var[T]{name: name, live: live}
	v.eq, v.hash = defaultCompare[T]()
	v.clone = func(x T) T { return x }
	for _, opt := range opts {
		opt(v)
	}
	v.shadow = v.clone(*live)
	v.shadowMark = v.takeMark(v.shadow)
	b.add(v)
	return v
}

func defaultCompare[T any]() (func(a, b T) bool, func(T) uint64) {
	var zero T
	if _, ok := any(zero).(Hasher); ok {
		return nil, func(x T) uint64 { return any(x).(Hasher).Hash() }
	}
	if _, ok := any(zero).(Equaler[T]); ok {
		return func(a, b T) bool { return any(a).(Equaler[T]).Equal(b) }, nil
	}
	return bitsEqualFunc[T](), nil
}

// Name returns the binding name.
func (v *Var[T]) Name() string { return v.name }

// Live returns the worker's value. Only the worker goroutine, or the UI while
// it owns the frame, may call it.
func (v *Var[T]) Live() T { return *v.live }

// Shadow returns a pointer to the shadow copy. Only dereference it inside
// Buffer.Edit.
func (v *Var[T]) Shadow() *T { return &v.shadow }

func (v *Var[T]) varName() string { return v.name }

func (v *Var[T]) takeMark(x T) mark[T] {
	if v.hash != nil {
		return mark[T]{set: true, hash: v.hash(x)}
	}
	return mark[T]{set: true, value: v.clone(x)}
}

func (v *Var[T]) differs(m mark[T], x T) bool {
	if !m.set {
		return false
	}
	if v.hash != nil {
		return m.hash != v.hash(x)
	}
	return !v.eq(m.value, x)
}

func (v *Var[T]) markLive() { v.liveMark = v.takeMark(*v.live) }

func (v *Var[T]) markShadow() {
	if v.changed {
		return
	}
	v.shadowMark = v.takeMark(v.shadow)
}

func (v *Var[T]) liveChanged() bool { return v.differs(v.liveMark, *v.live) }

func (v *Var[T]) shadowChanged() bool { return v.differs(v.shadowMark, v.shadow) }

func (v *Var[T]) pending() bool { return v.changed }

func (v *Var[T]) pushLive() {
	if v.changed || !v.liveChanged() {
		return
	}
	v.shadow = v.clone(*v.live)
	v.markShadow()
}

func (v *Var[T]) refresh() {
	v.shadow = v.clone(*v.live)
	v.changed = false
	v.shadowMark = v.takeMark(v.shadow)
}

func (v *Var[T]) pushUnchanged() {
	if v.shadowChanged() {
		return
	}
	v.pushLive()
}

func (v *Var[T]) stage() bool {
	if !v.changed {
		return false
	}
	v.staged = v.clone(v.shadow)
	v.changed = false
	v.markShadow()
	return true
}

func (v *Var[T]) apply() {
	*v.live = v.staged
	var zero T
	v.staged = zero
	v.markLive()
}

func (v *Var[T]) commit() {
	v.changed = v.shadowChanged()
}

func (v *Var[T]) view() any { return v.clone(v.shadow) }

func (v *Var[T]) setString(raw string) error {
	if v.parse != nil {
		parsed, err := v.parse(raw)
		if err != nil {
			return err
		}
		v.shadow = parsed
		return nil
	}
	return parseInto(reflect.ValueOf(&v.shadow).Elem(), raw)
}

var errUnsupportedKind = errors.New("value kind cannot be parsed from text")

func parseInto(dst reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 0, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 0, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	default:
		return fmt.Errorf("%w: %s", errUnsupportedKind, dst.Type())
	}
	return nil
}
