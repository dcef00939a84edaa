package world

type WorldConfig struct {
	ID         string
	TickRateHz int

	// Every VerifyEveryTicks ticks the loop recomputes every container's
	// cache from scratch and reports drift. Zero disables the pass.
	VerifyEveryTicks int
	// RepairDrift rebuilds the caches when the verify pass finds drift.
	RepairDrift bool

	// Operational parameters. These are included in snapshots.
	SnapshotEveryTicks int
}
