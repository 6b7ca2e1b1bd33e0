package runner

// Chunk is the half-open span [Start, End) of a task slice
type Chunk struct {
	Index int
	Start int
	End   int
}

// Len returns the number of tasks in the chunk
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Chunks partitions n tasks into ceil(n/size) consecutive, non-overlapping
// spans of at most size tasks each.
func Chunks(n, size int) []Chunk {
	if n <= 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}

	chunks := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end})
	}
	return chunks
}
