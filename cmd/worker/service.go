package main

import "context"

// OrphanReviver republishes stuck jobs.
type OrphanReviver interface {
	ReviveOrphans(ctx context.Context, limit int)
}
