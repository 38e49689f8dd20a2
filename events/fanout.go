package events

import (
	"context"
	"errors"

	"github.com/fusione/authcore"
)

// Fanout publishes to every bus and joins their errors.
type Fanout []authcore.EventBus

func (f Fanout) Publish(ctx context.Context, name string, payload map[string]any) error {
	var errs []error
	for _, bus := range f {
		if bus == nil {
			continue
		}
		if err := bus.Publish(ctx, name, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
