package chainmap

// New constructs a LayeredMap with an empty primary map. The supplied layers
// become the secondary layers in the given order, so layers[0] is consulted
// right after the primary map. Layers are held by reference.
func New[K comparable, V any](layers ...Reader[K, V]) *LayeredMap[K, V] {
	m := &LayeredMap[K, V]{
		primary: make(map[K]V),
	}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		m.layers = append(m.layers, layer)
	}
	return m
}

// NewFromMaps is New for plain Go maps. Each map is shared, not copied.
func NewFromMaps[K comparable, V any](maps ...map[K]V) *LayeredMap[K, V] {
	layers := make([]Reader[K, V], 0, len(maps))
	for _, layer := range maps {
		layers = append(layers, Mapping[K, V](layer))
	}
	return New(layers...)
}

// Configure applies opts to m and returns m for chaining.
func (m *LayeredMap[K, V]) Configure(opts ...Option) *LayeredMap[K, V] {
	m.cfg = applyOptions(m.cfg, opts)
	return m
}

// Get returns the effective value for key: the value held by the first layer,
// primary first, that contains it.
func (m *LayeredMap[K, V]) Get(key K) (V, error) {
	value, ok := m.TryGet(key)
	if !ok {
		err := &KeyError{Op: OpGet, Key: key, Err: ErrKeyNotFound}
		m.logOp(OpGet, key, -1, err)
		return value, err
	}
	return value, nil
}

// TryGet performs the same scan as Get and reports absence with false.
func (m *LayeredMap[K, V]) TryGet(key K) (V, bool) {
	value, _, ok := m.resolve(key)
	return value, ok
}

// resolve returns the effective value and the conceptual layer that holds it.
func (m *LayeredMap[K, V]) resolve(key K) (V, int, bool) {
	if value, ok := m.primary[key]; ok {
		return value, 0, true
	}
	for i, layer := range m.layers {
		if value, ok := layer.Lookup(key); ok {
			return value, i + 1, true
		}
	}
	var zero V
	return zero, -1, false
}

// Set replaces the value of a key that is already visible in some layer. The
// write always lands in the primary map; when the key only exists in a
// secondary layer a shadowing primary entry is created.
func (m *LayeredMap[K, V]) Set(key K, value V) error {
	old, layer, ok := m.resolve(key)
	if !ok {
		err := &KeyError{Op: OpSet, Key: key, Err: ErrKeyNotFound}
		m.logOp(OpSet, key, -1, err)
		return err
	}
	m.writable()[key] = value
	m.logOp(OpSet, key, 0, nil)
	if layer == 0 {
		m.emitEntryUpdated(key, old, value)
	} else {
		m.emitEntryCreated(key, value, true)
	}
	return nil
}

// Add inserts key into the primary map. Only a primary entry blocks the
// insert; a secondary layer holding the same key is shadowed.
func (m *LayeredMap[K, V]) Add(key K, value V) error {
	if _, exists := m.primary[key]; exists {
		err := &KeyError{Op: OpAdd, Key: key, Err: ErrDuplicateKey}
		m.logOp(OpAdd, key, 0, err)
		return err
	}
	m.insert(key, value)
	return nil
}

// TryAdd is Add without the error: it returns false and leaves the map
// untouched when the primary map already holds key.
func (m *LayeredMap[K, V]) TryAdd(key K, value V) bool {
	if _, exists := m.primary[key]; exists {
		return false
	}
	m.insert(key, value)
	return true
}

func (m *LayeredMap[K, V]) insert(key K, value V) {
	shadowing := m.inLayers(key)
	m.writable()[key] = value
	m.logOp(OpAdd, key, 0, nil)
	m.emitEntryCreated(key, value, shadowing)
}

// writable returns the primary map, allocating it for a zero LayeredMap.
func (m *LayeredMap[K, V]) writable() map[K]V {
	if m.primary == nil {
		m.primary = make(map[K]V)
	}
	return m.primary
}

func (m *LayeredMap[K, V]) inLayers(key K) bool {
	for _, layer := range m.layers {
		if _, ok := layer.Lookup(key); ok {
			return true
		}
	}
	return false
}

// Remove deletes key from the primary map and reports whether an entry was
// removed. Secondary layers are never touched, so a shadowed value becomes
// visible again.
func (m *LayeredMap[K, V]) Remove(key K) bool {
	old, ok := m.primary[key]
	if !ok {
		return false
	}
	delete(m.primary, key)
	m.logOp(OpRemove, key, 0, nil)
	m.emitEntryDeleted(key, old)
	return true
}

// Clear empties the primary map. Secondary layers are left untouched.
func (m *LayeredMap[K, V]) Clear() {
	m.ClearPrimary()
}

// ClearPrimary empties the primary map. It is the counterpart of ClearLayers.
func (m *LayeredMap[K, V]) ClearPrimary() {
	clear(m.primary)
	m.logOp(OpClear, nil, 0, nil)
	m.emitPrimaryCleared()
}
