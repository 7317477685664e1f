package chainmap

import (
	"github.com/goliatone/go-chainmap/layering"
)

// Merge flattens the map: the result holds every visible key with its
// effective value in its primary map and has no secondary layers. The result
// is independent of m; later changes to m or to its layers do not reach it.
// Values are copied shallowly; see MergeDeep.
func (m *LayeredMap[K, V]) Merge() *LayeredMap[K, V] {
	merged := &LayeredMap[K, V]{
		primary: m.ToMap(),
		cfg:     m.cfg.clone(),
	}
	return merged
}

// MergeDeep is Merge with every value deep-cloned, so nested maps, slices and
// pointers are detached from the source layers as well.
func (m *LayeredMap[K, V]) MergeDeep() *LayeredMap[K, V] {
	primary := make(map[K]V, len(m.primary))
	for key, value := range m.All() {
		primary[key] = layering.Clone(value)
	}
	return &LayeredMap[K, V]{
		primary: primary,
		cfg:     m.cfg.clone(),
	}
}

// ResolveNested merges every layer's value for key, strongest first. Nested
// maps and structs are combined field by field; scalars resolve to the
// strongest layer. It fails with ErrKeyNotFound when no layer holds key.
func (m *LayeredMap[K, V]) ResolveNested(key K) (V, error) {
	var values []V
	if value, ok := m.primary[key]; ok {
		values = append(values, value)
	}
	for _, layer := range m.layers {
		if value, ok := layer.Lookup(key); ok {
			values = append(values, value)
		}
	}
	if len(values) == 0 {
		var zero V
		err := &KeyError{Op: OpGet, Key: key, Err: ErrKeyNotFound}
		m.logOp(OpGet, key, -1, err)
		return zero, err
	}
	return layering.MergeLayers(values...), nil
}
