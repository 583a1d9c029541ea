package fs

import "math"

func safeInt64ToUint64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

func safeInt64ToUint32(n int64) uint32 {
	if n < 0 {
		return 0
	}
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

// blocks is the number of 512-byte blocks size occupies.
func blocks(size int64) uint64 {
	return safeInt64ToUint64((size + 511) / 512)
}
