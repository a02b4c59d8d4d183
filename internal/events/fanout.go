package events

import (
	"context"
	"errors"
)

// Fanout publishes every event to each publisher in turn. A failing publisher
// does not stop the others; all failures are joined into the returned error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, publisher := range f {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
