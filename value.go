package dispatch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tidwall/sjson"
)

// Value is an uninterpreted JSON document. Handlers decode it into their
// typed Params and encode their typed result back into it; the router,
// the CLI driver, and the wire transports never interpret its contents
// directly.
type Value = json.RawMessage

// validatable is implemented by a Params or ParentParams type that wants
// a chance to reject a decoded value before the handler body runs. Both
// the pointer and value method sets are checked, so either
// `func (p Params) Validate() error` or `func (p *Params) Validate() error`
// is honored.
type validatable interface {
	Validate() error
}

// EmptyObject is the canonical zero-value Value used where a handler has
// no params and no parent has contributed any either.
var EmptyObject = Value(`{}`)

// Combine merges two JSON objects into one. It is the disjoint-union
// operator the data model requires for stitching a leaf's own params onto
// its parent's: any key present in both is an error, never a silent
// overwrite.
func Combine(a, b Value) (Value, error) {
	am, err := objectFields(a)
	if err != nil {
		return nil, invalidParamsf("combine: left side: %v", err)
	}
	bm, err := objectFields(b)
	if err != nil {
		return nil, invalidParamsf("combine: right side: %v", err)
	}
	out := make(map[string]Value, len(am)+len(bm))
	for k, v := range am {
		out[k] = v
	}
	for k, v := range bm {
		if _, dup := out[k]; dup {
			return nil, invalidParamsf("duplicate key: %s", k)
		}
		out[k] = v
	}
	return marshalFields(out)
}

// Without returns a with every top-level key present in strip removed.
// It is used by RemoteCaller to strip the Extra fields a wrapper adapter
// introduces before forwarding a call to a remote peer, so the peer sees
// only the params its own handler tree understands.
func Without(a, strip Value) (Value, error) {
	stripFields, err := objectFields(strip)
	if err != nil {
		return nil, invalidParamsf("without: strip side: %v", err)
	}
	out := append(Value(nil), a...)
	if len(out) == 0 {
		out = append(Value(nil), EmptyObject...)
	}
	keys := make([]string, 0, len(stripFields))
	for k := range stripFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		next, err := sjson.DeleteBytes(out, k)
		if err != nil {
			return nil, internalf("without: delete %s: %v", k, err)
		}
		out = next
	}
	return out, nil
}

func objectFields(v Value) (map[string]Value, error) {
	if len(v) == 0 {
		return map[string]Value{}, nil
	}
	var m map[string]Value
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func marshalFields(m map[string]Value) (Value, error) {
	return json.Marshal(m)
}

// Flat combines two records into a single flat JSON object and CLI
// surface. A is the handler's own params, B is the set of params
// inherited from its ancestors. Both must serialize to distinct sets of
// top-level keys; overlapping field names are rejected at Unmarshal time
// rather than silently shadowed.
type Flat[A, B any] struct {
	A A
	B B
}

// NewFlat constructs a Flat from its two halves.
func NewFlat[A, B any](a A, b B) Flat[A, B] {
	return Flat[A, B]{A: a, B: b}
}

func (f Flat[A, B]) MarshalJSON() ([]byte, error) {
	av, err := json.Marshal(f.A)
	if err != nil {
		return nil, err
	}
	bv, err := json.Marshal(f.B)
	if err != nil {
		return nil, err
	}
	return Combine(av, bv)
}

func (f *Flat[A, B]) UnmarshalJSON(data []byte) error {
	if err := checkFlatCollision(f.A, f.B); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &f.A); err != nil {
		return invalidParamsf("flat: %v", err)
	}
	if err := json.Unmarshal(data, &f.B); err != nil {
		return invalidParamsf("flat: %v", err)
	}
	return nil
}

// flatFieldNamer is implemented by Flat[A,B] itself so a collision check
// run against one half of a nested Flat composition sees that half's own
// recursively-flattened key set, rather than the literal Go field names
// "A"/"B" plain struct reflection would report. Every child handler's
// declared InheritedParams is itself a Flat one level deeper than its
// parent's, so this recursion is what lets the collision check see
// across the whole ancestor chain, not just one level of it.
type flatFieldNamer interface {
	flatFieldNames() []string
}

func (f Flat[A, B]) flatFieldNames() []string {
	return append(jsonFieldNames(f.A), jsonFieldNames(f.B)...)
}

// checkFlatCollision reports an InvalidParams error if own and inherited
// declare any top-level JSON key in common. It is the same disjointness
// check Flat.UnmarshalJSON performs when decoding directly off the wire,
// factored out so ParentHandler.handle and anyHandler.handle can run it
// against values they have already decoded independently, where the two
// halves never actually pass through a shared Flat.UnmarshalJSON call.
func checkFlatCollision(own, inherited any) error {
	seen := make(map[string]bool)
	for _, n := range jsonFieldNames(inherited) {
		seen[n] = true
	}
	for _, n := range jsonFieldNames(own) {
		if seen[n] {
			return invalidParamsf("flat: colliding key: %s", n)
		}
	}
	return nil
}

// jsonFieldNames returns v's top-level json field names. If v is itself
// a Flat, its own recursively-flattened key set is returned; otherwise
// v's struct field names are used, honoring `json:"name,omitempty"` and
// `json:"-"` tags. Non-struct, non-Flat values (e.g. Empty) yield no
// names, which is correct: they contribute nothing to the flattened key
// set.
func jsonFieldNames(v any) []string {
	if fn, ok := v.(flatFieldNamer); ok {
		return fn.flatFieldNames()
	}
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name := field.Name
		if tag != "" {
			if idx := strings.IndexByte(tag, ','); idx >= 0 {
				if idx > 0 {
					name = tag[:idx]
				}
			} else {
				name = tag
			}
		}
		names = append(names, name)
	}
	return names
}

func invalidParamsf(format string, args ...any) *Error {
	return InvalidParams(fmt.Errorf(format, args...))
}

func internalf(format string, args ...any) *Error {
	return Internal(fmt.Errorf(format, args...))
}

// marshalValue and unmarshalValue are the shared json.Marshal/Unmarshal
// calls used wherever a typed P or O crosses the Value boundary.
func marshalValue(v any) (Value, error) {
	return json.Marshal(v)
}

func unmarshalValue(v Value, out any) error {
	if len(v) == 0 {
		return nil
	}
	return json.Unmarshal(v, out)
}

// splitDots splits a dotted method name into path segments.
func splitDots(name string) []string {
	return strings.Split(name, ".")
}
