package object

// Props is an insertion-ordered property map. Hidden properties are
// readable and writable but are not listed by Keys.
type Props struct {
	keys   []string
	values map[string]Object
	hidden map[string]bool
}

func (p *Props) Get(key string) (Object, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p *Props) Set(key string, value Object) {
	if p.values == nil {
		p.values = map[string]Object{}
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p *Props) Delete(key string) bool {
	if _, ok := p.values[key]; !ok {
		return false
	}
	delete(p.values, key)
	delete(p.hidden, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	return true
}

// SetHidden creates or updates a non-enumerable property.
func (p *Props) SetHidden(key string, value Object) {
	p.Set(key, value)
	if p.hidden == nil {
		p.hidden = map[string]bool{}
	}
	p.hidden[key] = true
}

// Keys returns the enumerable keys in insertion order.
func (p *Props) Keys() []string {
	keys := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		if !p.hidden[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of enumerable properties.
func (p *Props) Len() int {
	return len(p.keys) - len(p.hidden)
}
