package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/ortelius/pdvd-reposcan/model"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentDeliveries = 8

// DeliverAll sends every payload concurrently. All deliveries are attempted; the
// returned error joins the failures and still matches ErrDeliveryAuthFailed or
// ErrDeliveryFailed through errors.Is. The count of accepted payloads is returned.
func DeliverAll(ctx context.Context, d Deliverer, payloads []model.NotificationPayload, token string) (int, error) {
	var (
		mu       sync.Mutex
		errs     *multierror.Error
		accepted int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDeliveries)

	for _, p := range payloads {
		g.Go(func() error {
			_, err := d.Deliver(gctx, p, token)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", p.RepoURL, err))
				return nil
			}
			accepted++
			return nil
		})
	}

	_ = g.Wait()
	return accepted, errs.ErrorOrNil()
}
