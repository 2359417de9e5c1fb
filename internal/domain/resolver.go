package domain

import "context"

// Resolver converts a package name into a single fetchable artifact.
// Implementations never return an error: every fault (not-found response,
// transport failure, malformed document) is logged internally and reduced
// to a Resolution with a nil Artifact and a classifying Cause. Retry is a
// pipeline-level concern, not a resolver concern.
type Resolver interface {
	Resolve(ctx context.Context, name string) Resolution
}
