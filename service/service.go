package service

import "context"

// Service is a long-running task. Run blocks until the work completes or ctx
// is cancelled; cancellation is cooperative and in-flight operations are
// allowed to finish.
type Service interface {
	Run(ctx context.Context) error
}

// Reporter is implemented by services that can describe the work done during
// Run, e.g. the range of a stream actually synced.
type Reporter interface {
	Summary() string
}
