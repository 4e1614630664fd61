package pipeline

// Windows partitions the indices 1..n into consecutive windows of size w.
// The last window may be shorter. n <= 0 yields no windows; w <= 0 is
// treated as 1.
func Windows(n, w int) [][]int {
	if n <= 0 {
		return nil
	}
	if w <= 0 {
		w = 1
	}

	windows := make([][]int, 0, (n+w-1)/w)
	for start := 1; start <= n; start += w {
		end := min(start+w-1, n)
		window := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			window = append(window, i)
		}
		windows = append(windows, window)
	}
	return windows
}
