// Package pipeline drives a seeding run: it asks the remote source for the
// entity count, resets the sink, then walks the index range 1..N in
// fixed-size windows.
//
// Within a window every entity is fetched concurrently and the window waits
// for all of them. The fetched records are then resolved and persisted one at
// a time in index order. The next window starts only after the previous one
// has been fully persisted, which bounds the number of in-flight requests to
// the window size plus the nested reference fetches of one record.
//
// Example usage:
//
//	orch, err := pipeline.New(swapiClient, resolver, sink, pipeline.DefaultConfig())
//	summary, err := orch.Run(ctx)
//
// The orchestrator:
//   - Fetches the entity count once
//   - Resets the sink before any write
//   - Skips indices the source reports as absent
//   - Aborts on the first fetch, resolve or persist failure (unless
//     SkipFailedWindows is set, which skips fetch and resolve failures)
package pipeline
