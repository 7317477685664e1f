package chainmap

import (
	"iter"
	"reflect"
)

// ContainsKey reports whether key is visible in any layer.
func (m *LayeredMap[K, V]) ContainsKey(key K) bool {
	_, ok := m.TryGet(key)
	return ok
}

// ContainsValue reports whether value equals the effective value of some
// visible key. Values shadowed by a stronger layer are not considered.
// Equality is reflect.DeepEqual; use ContainsValueFunc for anything else.
func (m *LayeredMap[K, V]) ContainsValue(value V) bool {
	return m.ContainsValueFunc(func(candidate V) bool {
		return reflect.DeepEqual(candidate, value)
	})
}

// ContainsValueFunc reports whether match accepts the effective value of some
// visible key.
func (m *LayeredMap[K, V]) ContainsValueFunc(match func(V) bool) bool {
	if match == nil {
		return false
	}
	for _, value := range m.All() {
		if match(value) {
			return true
		}
	}
	return false
}

// Keys returns every visible key exactly once. Order is not significant.
func (m *LayeredMap[K, V]) Keys() []K {
	keys := make([]K, 0, len(m.primary))
	for key := range m.All() {
		keys = append(keys, key)
	}
	return keys
}

// Values returns the effective values of all visible keys with duplicates
// collapsed by reflect.DeepEqual.
func (m *LayeredMap[K, V]) Values() []V {
	var values []V
	for _, value := range m.All() {
		duplicate := false
		for _, seen := range values {
			if reflect.DeepEqual(seen, value) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			values = append(values, value)
		}
	}
	return values
}

// Count returns the number of visible keys.
func (m *LayeredMap[K, V]) Count() int {
	count := 0
	for range m.All() {
		count++
	}
	return count
}

// All yields each visible key once together with its effective value. Every
// call rescans the layers; mutating layers mid-iteration is not isolated.
func (m *LayeredMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		seen := make(map[K]struct{}, len(m.primary))
		for key, value := range m.primary {
			seen[key] = struct{}{}
			if !yield(key, value) {
				return
			}
		}
		for _, layer := range m.layers {
			for key := range layer.Keys() {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				value, ok := m.TryGet(key)
				if !ok {
					continue
				}
				if !yield(key, value) {
					return
				}
			}
		}
	}
}

// ToMap returns the resolved mapping as a fresh map.
func (m *LayeredMap[K, V]) ToMap() map[K]V {
	out := make(map[K]V, len(m.primary))
	for key, value := range m.All() {
		out[key] = value
	}
	return out
}
