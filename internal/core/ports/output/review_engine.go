package ports

import "context"

// ReviewEngine runs automated QA on a model artifact.
type ReviewEngine interface {
	RunReview(ctx context.Context, modelLocator string, referenceImages []string) (bool, error)
}
