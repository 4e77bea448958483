package httpdl

// Range is an inclusive, zero-indexed byte span.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Size() int64 {
	return r.End - r.Start + 1
}

// Partition splits [0, total-1] into at most threads contiguous ranges of
// ceil(total/threads) bytes. Earlier ranges take the remainder and the last
// one is clipped to total-1. Ranges that would start past the end are
// dropped, so the result always covers the span exactly.
func Partition(total int64, threads int) []Range {
	if total <= 0 || threads < 1 {
		return nil
	}
	chunkSize := (total + int64(threads) - 1) / int64(threads)
	ranges := make([]Range, 0, threads)
	for i := range threads {
		start := int64(i) * chunkSize
		if start > total-1 {
			break
		}
		end := min(start+chunkSize-1, total-1)
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}
