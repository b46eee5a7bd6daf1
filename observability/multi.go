package observability

import "context"

// Tee returns an Observer that delivers each event to every non-nil
// observer in order. Nested tees are flattened and a single observer is
// returned as is.
func Tee(observers ...Observer) Observer {
	var flat tee
	for _, o := range observers {
		switch o := o.(type) {
		case nil:
		case tee:
			flat = append(flat, o...)
		default:
			flat = append(flat, o)
		}
	}
	switch len(flat) {
	case 0:
		return NoOpObserver{}
	case 1:
		return flat[0]
	}
	return flat
}

type tee []Observer

func (t tee) OnEvent(ctx context.Context, event Event) {
	for _, o := range t {
		o.OnEvent(ctx, event)
	}
}
