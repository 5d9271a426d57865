package cache

// hash is the polynomial rolling hash h = h*31 + c over the whole path
func hash(path string) uint64 {
	var h uint64
	for i := 0; i < len(path); i++ {
		h = (h << 5) - h + uint64(path[i])
	}
	return h
}

// nextPowerOfTwo returns the smallest power of two >= n, and 1 for n < 1
func nextPowerOfTwo(n int) int {
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}
