package model

import (
	"context"
	"time"

	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
	"github.com/imamik/vnsync/internal/util/labels"
	"github.com/imamik/vnsync/internal/util/naming"
)

// DefaultAPITimeout bounds a controller call when Controller.APITimeout is zero.
const DefaultAPITimeout = 30 * time.Second

// Controller is the execution context passed to every model operation. It is
// a plain value: models read from it and never modify it.
type Controller struct {
	Store      store.Reader
	API        contrail.API
	Names      *naming.Manager
	Namespace  string
	APITimeout time.Duration
}

// call runs fn under the per-call timeout.
func (c *Controller) call(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := c.APITimeout
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// Get fetches an object under the per-call timeout. A missing object yields
// nil and no error.
func (c *Controller) Get(ctx context.Context, kind contrail.Kind, uuid string) (*contrail.Object, error) {
	var obj *contrail.Object
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		obj, err = c.API.Get(ctx, kind, uuid)
		return err
	})
	if contrail.IsNotFound(err) {
		return nil, nil
	}
	return obj, err
}

// Inventory lists every object of kind owned by this namespace.
func (c *Controller) Inventory(ctx context.Context, kind contrail.Kind) ([]*contrail.Object, error) {
	var objs []*contrail.Object
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		objs, err = c.API.List(ctx, kind, labels.Selector(c.Namespace))
		return err
	})
	return objs, err
}

func (c *Controller) labels(localID int64) map[string]string {
	return labels.NewLabelBuilder(c.Namespace).WithLocalID(localID).Build()
}
