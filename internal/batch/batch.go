// Package batch evaluates many independent requests against one calculator.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"Kerf/internal/engine"
)

// MaxItems bounds a single batch.
const MaxItems = 1000

var ErrEmpty = errors.New("batch has no items")

// Item is one outcome at its input position.
type Item struct {
	Index   int             `json:"index"`
	Result  *engine.Result  `json:"result,omitempty"`
	Failure *engine.Failure `json:"failure,omitempty"`
}

// Report holds the outcomes in input order.
type Report struct {
	CalculatorID string `json:"calculator_id"`
	Count        int    `json:"count"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	Items        []Item `json:"items"`
}

// Run evaluates items with at most workers calculations in flight. A
// failing item does not stop the others; only context cancellation does.
func Run(ctx context.Context, c engine.Calculator, items []map[string]any, workers int) (Report, error) {
	if len(items) == 0 {
		return Report{}, ErrEmpty
	}
	if len(items) > MaxItems {
		return Report{}, fmt.Errorf("batch of %d items exceeds the limit of %d", len(items), MaxItems)
	}
	if workers < 1 {
		workers = 1
	}

	out := make([]engine.Outcome, len(items))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, raw := range items {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			out[i] = engine.Run(c, raw)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	rep := Report{CalculatorID: c.ID(), Count: len(items), Items: make([]Item, len(items))}
	for i, o := range out {
		rep.Items[i] = Item{Index: i}
		switch v := o.(type) {
		case *engine.Result:
			rep.Items[i].Result = v
			rep.Succeeded++
		case *engine.Failure:
			rep.Items[i].Failure = v
			rep.Failed++
		}
	}
	return rep, nil
}
