package chainmap

import (
	"iter"
	"slices"
)

// View is a read-only window over a single layer. It borrows the layer, so
// later writes to the underlying map are visible through the view.
type View[K comparable, V any] struct {
	reader Reader[K, V]
}

// Get returns the value stored in this layer alone.
func (v View[K, V]) Get(key K) (V, bool) {
	if v.reader == nil {
		var zero V
		return zero, false
	}
	return v.reader.Lookup(key)
}

// Has reports whether this layer holds key.
func (v View[K, V]) Has(key K) bool {
	_, ok := v.Get(key)
	return ok
}

// Len returns the number of entries in this layer.
func (v View[K, V]) Len() int {
	if v.reader == nil {
		return 0
	}
	return v.reader.Len()
}

// Keys yields the keys of this layer.
func (v View[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		if v.reader == nil {
			return
		}
		for key := range v.reader.Keys() {
			if !yield(key) {
				return
			}
		}
	}
}

// All yields the entries of this layer.
func (v View[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if v.reader == nil {
			return
		}
		for key := range v.reader.Keys() {
			value, ok := v.reader.Lookup(key)
			if !ok {
				continue
			}
			if !yield(key, value) {
				return
			}
		}
	}
}

// LayerCount returns the number of secondary layers plus one for the primary
// map.
func (m *LayeredMap[K, V]) LayerCount() int {
	return len(m.layers) + 1
}

// AddLayer inserts layer into the secondary list at index. The index is
// clamped to [0, len(layers)]: anything below zero becomes the strongest
// secondary position and anything past the end appends.
func (m *LayeredMap[K, V]) AddLayer(layer Reader[K, V], index int) {
	if layer == nil {
		return
	}
	index = max(0, min(index, len(m.layers)))
	m.layers = append(m.layers, nil)
	copy(m.layers[index+1:], m.layers[index:])
	m.layers[index] = layer
	m.logOp(OpLayerAdd, nil, index+1, nil)
	m.emitLayerAdded(index)
}

// AddMap is AddLayer for a plain Go map, which is shared rather than copied.
func (m *LayeredMap[K, V]) AddMap(layer map[K]V, index int) {
	if layer == nil {
		return
	}
	m.AddLayer(Mapping[K, V](layer), index)
}

// RemoveLayer drops the secondary layer at index. Out of range indices are
// ignored.
func (m *LayeredMap[K, V]) RemoveLayer(index int) {
	if index < 0 || index >= len(m.layers) {
		return
	}
	m.layers = slices.Delete(m.layers, index, index+1)
	m.logOp(OpLayerRemove, nil, index+1, nil)
	m.emitLayerRemoved(index)
}

// ClearLayers drops every secondary layer. The primary map is untouched.
func (m *LayeredMap[K, V]) ClearLayers() {
	m.layers = nil
	m.logOp(OpLayersClear, nil, -1, nil)
	m.emitLayersCleared()
}

// Layers returns read-only views of the secondary layers in priority order.
func (m *LayeredMap[K, V]) Layers() []View[K, V] {
	views := make([]View[K, V], len(m.layers))
	for i, layer := range m.layers {
		views[i] = View[K, V]{reader: layer}
	}
	return views
}

// Layer returns a read-only view of the secondary layer at index, failing
// with ErrIndexOutOfRange when index is invalid.
func (m *LayeredMap[K, V]) Layer(index int) (View[K, V], error) {
	if index < 0 || index >= len(m.layers) {
		err := &IndexError{Op: OpLayerGet, Index: index, Len: len(m.layers), Err: ErrIndexOutOfRange}
		m.logOp(OpLayerGet, nil, index+1, err)
		return View[K, V]{}, err
	}
	return View[K, V]{reader: m.layers[index]}, nil
}

// Primary returns a read-only view of the primary map alone. The view tracks
// later writes to the primary map.
func (m *LayeredMap[K, V]) Primary() View[K, V] {
	return View[K, V]{reader: Mapping[K, V](m.writable())}
}
