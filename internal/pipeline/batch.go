package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome for one path of a batch. Err is set only for input errors.
type BatchItem struct {
	Source string  `json:"source"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// PredictBatch classifies paths, decoding up to workers files at a time. Results keep
// the order of paths. Input errors are recorded per item; any other failure stops the
// batch and is returned.
func (p *Pipeline) PredictBatch(ctx context.Context, paths []string, workers int) ([]BatchItem, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	items := make([]BatchItem, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		items[i].Source = path
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := p.PredictFile(ctx, path)
			if err != nil {
				if IsInputError(err) {
					items[i].Err = err
					return nil
				}
				return err
			}
			items[i].Result = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return items, err
	}
	return items, nil
}
