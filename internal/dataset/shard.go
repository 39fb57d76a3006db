package dataset

// Shard partitions the corpus positionally: rank r of n owns every path
// whose index is congruent to r mod n. Every rank derives the same
// partition from the same listing, so no runtime coordination is needed,
// and the union over all ranks is the full corpus exactly once.
func Shard(paths []string, numProcesses, rank int) []string {
	var shard []string

	for i := rank; i < len(paths); i += numProcesses {
		shard = append(shard, paths[i])
	}

	return shard
}
