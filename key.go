package gate

// Key identifies related dispatches for policy purposes. Its dynamic type
// must be comparable (strings, integers, comparable structs, enum-like
// constants) because keys are used directly as map keys; two keys that
// compare equal share policy state.
//
// A dispatch may use a different key per policy: each policy configuration
// carries an optional Key field that, when nil, falls back to the
// dispatch's own key.
type Key = any
