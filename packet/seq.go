package packet

// SeqDiff returns the signed, wraparound-aware distance b-a for two 16-bit
// sequence numbers, as used throughout spec.md for gap/reorder detection
// (65535 -> 0 is in-order) and for the ring buffer's bounded insertion
// sort (spec.md §4.3).
func SeqDiff(a, b uint16) int16 {
	return int16(b - a)
}
