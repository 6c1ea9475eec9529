package main

func sum(xs []int) int {
	total := 0
	for i := range xs {
		total += xs[i]
	}
	xs[0] = total //memtrace:ignore
	// memtrace:unknown
	return total
}

func main() {
	println(sum([]int{1, 2, 3}))
}
