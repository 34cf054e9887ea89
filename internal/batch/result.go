package batch

// Result summarizes the outcome of a Commit call: how many distinct
// mentions were resolved in the batch, how many of those were brand new
// entities versus merges, how many pending relationships were created,
// and any per-item errors encountered along the way. A non-empty Errors
// slice does not mean the batch failed outright — commit reports success
// at the batch level whenever at least one relationship (or zero were
// enqueued) succeeded.
type Result struct {
	TotalEntitiesResolved int
	NewEntitiesCreated    int
	EntitiesMerged        int
	RelationshipsCreated  int
	Errors                []error
}
