package mapview

// interactions holds the pointer bindings on the route layer. It is bound
// at most once; bind on a bound set is a no-op.
type interactions struct {
	engine  Engine
	layerID string
	routes  []binding
	unsubs  []func()
}

type binding struct {
	event   EventType
	handler Handler
}

func newInteractions(engine Engine, layerID string, bindings ...binding) *interactions {
	return &interactions{engine: engine, layerID: layerID, routes: bindings}
}

func (b *interactions) bound() bool {
	return b.unsubs != nil
}

func (b *interactions) bind() {
	if b.bound() {
		return
	}
	b.unsubs = make([]func(), 0, len(b.routes))
	for _, r := range b.routes {
		b.unsubs = append(b.unsubs, b.engine.On(r.event, b.layerID, r.handler))
	}
}

func (b *interactions) unbind() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
