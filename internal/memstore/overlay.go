package memstore

// overlay stages writes over a committed map until commit.
type overlay[K comparable, V any] struct {
	base  map[K]V
	put   map[K]V
	del   map[K]struct{}
	clone func(V) V
}

func newOverlay[K comparable, V any](base map[K]V, clone func(V) V) *overlay[K, V] {
	if clone == nil {
		clone = func(v V) V { return v }
	}
	return &overlay[K, V]{base: base, put: make(map[K]V), del: make(map[K]struct{}), clone: clone}
}

func (o *overlay[K, V]) get(k K) (V, bool) {
	var zero V
	if _, gone := o.del[k]; gone {
		return zero, false
	}
	if v, ok := o.put[k]; ok {
		return o.clone(v), true
	}
	v, ok := o.base[k]
	if !ok {
		return zero, false
	}
	return o.clone(v), true
}

func (o *overlay[K, V]) set(k K, v V) {
	delete(o.del, k)
	o.put[k] = o.clone(v)
}

func (o *overlay[K, V]) remove(k K) {
	delete(o.put, k)
	o.del[k] = struct{}{}
}

// values returns a copy of every visible value that passes keep.
func (o *overlay[K, V]) values(keep func(V) bool) []V {
	var out []V
	for k, v := range o.base {
		if _, gone := o.del[k]; gone {
			continue
		}
		if _, shadowed := o.put[k]; shadowed {
			continue
		}
		if keep(v) {
			out = append(out, o.clone(v))
		}
	}
	for _, v := range o.put {
		if keep(v) {
			out = append(out, o.clone(v))
		}
	}
	return out
}

func (o *overlay[K, V]) commit() {
	for k := range o.del {
		delete(o.base, k)
	}
	for k, v := range o.put {
		o.base[k] = v
	}
}
