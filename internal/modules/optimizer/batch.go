package optimizer

import (
	"context"
	"net/http"
)

// BatchItem is the outcome of one request of a batch.
type BatchItem struct {
	Code     int       `json:"code"`
	SolveID  string    `json:"solveId,omitempty"`
	Response *Response `json:"response"`
}

// OptimizeBatch validates every request, solves the valid ones on the worker pool and
// returns one item per request in input order. Individual failures never fail the batch.
func (s *Service) OptimizeBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, invalid("requests", "At least one request is required.")
	}
	if s.cfg.MaxBatchSize > 0 && len(reqs) > s.cfg.MaxBatchSize {
		return nil, invalid("requests", "At most %d requests are allowed per batch.", s.cfg.MaxBatchSize)
	}

	items := make([]BatchItem, len(reqs))
	inputs := make([]*solveInput, len(reqs))
	for i := range reqs {
		in, err := validate(&reqs[i], s.cfg.Limits)
		if err != nil {
			items[i] = errorItem(err)
			continue
		}
		inputs[i] = in
	}

	outcomes := s.pool.Run(ctx, inputs, s.solve)
	for i, in := range inputs {
		if in == nil {
			continue
		}
		o := outcomes[i]
		if o.err != nil {
			items[i] = errorItem(o.err)
			continue
		}
		items[i] = BatchItem{Code: http.StatusOK, SolveID: o.resp.SolveID, Response: o.resp}
	}

	s.log.Debug().Int("requests", len(reqs)).Msg("Batch solved")
	return items, nil
}

func errorItem(err error) BatchItem {
	return BatchItem{Code: StatusCode(err), Response: ErrorResponse(Notes(err)...)}
}
