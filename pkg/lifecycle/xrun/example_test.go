package xrun_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xcachekit/pkg/lifecycle/xrun"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

func ExampleGroup() {
	g, _ := xrun.NewGroup(context.Background(), xrun.WithLogger(xlog.Discard()))

	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		fmt.Println("monitor stopped")
		return ctx.Err()
	})
	g.Go(func(context.Context) error {
		return errors.New("metrics listener failed")
	})

	fmt.Println(g.Wait())

	// Output:
	// monitor stopped
	// metrics listener failed
}
