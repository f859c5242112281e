package badger

// Key prefixes for different data types. Prefixes must not share a
// common start, since record scans iterate by prefix.
const (
	recordPrefix     = "svc:"
	checkpointPrefix = "chkpt:"
)

// makeRecordKey generates a key for a service record by ID.
// Keys sort by ID, which gives listings their order.
func makeRecordKey(id string) []byte {
	return []byte(recordPrefix + id)
}

// makeCheckpointKey generates a key for job checkpoints.
func makeCheckpointKey(jobName string) []byte {
	return []byte(checkpointPrefix + jobName)
}
