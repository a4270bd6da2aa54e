// Package notify delivers human-readable alerts (falls, relayed broker
// messages) to outside services.
package notify

import (
	"context"
	"errors"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
	Name() string
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Name() string { return "multi" }
