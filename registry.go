package interceptor

// Registry is a collector for interceptor factories. Factories are stateless
// constructors, so sessions built from the same Registry never share mutable state.
type Registry struct {
	factories []Factory
}

// Add adds a new Factory to the registry.
func (r *Registry) Add(f Factory) {
	r.factories = append(r.factories, f)
}

// Build constructs a single Interceptor from the registered factories, in
// registration order. Every call produces fresh interceptor instances.
func (r *Registry) Build(id string) (Interceptor, error) {
	if len(r.factories) == 0 {
		return &NoOp{}, nil
	}

	interceptors := []Interceptor{}
	for _, f := range r.factories {
		i, err := f.NewInterceptor(id)
		if err != nil {
			return nil, err
		}

		interceptors = append(interceptors, i)
	}

	return NewChain(interceptors), nil
}
