package kernels

// TraceProduct returns Tr(a·b) for square row-major n×n matrices without
// forming the product.
func TraceProduct(a, b []complex128, n int) complex128 {
	if n <= 0 || len(a) < n*n || len(b) < n*n {
		return 0
	}
	var sum complex128
	for p := 0; p < n; p++ {
		row := a[p*n : (p+1)*n]
		for q, v := range row {
			if v == 0 {
				continue
			}
			sum += v * b[q*n+p]
		}
	}
	return sum
}

// Trace returns the trace of a square row-major n×n matrix.
func Trace(a []complex128, n int) complex128 {
	if n <= 0 || len(a) < n*n {
		return 0
	}
	var sum complex128
	for i := 0; i < n; i++ {
		sum += a[i*n+i]
	}
	return sum
}
