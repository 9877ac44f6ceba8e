package kernels

func cMatMulGeneric(dst, a, b []complex128, n int) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum complex128
			for k := 0; k < n; k++ {
				sum += a[i*n+k] * b[k*n+j]
			}
			dst[i*n+j] = sum
		}
	}
}

// cMatMulRows walks b row by row so the inner loop is contiguous in both b
// and dst. Zero entries of a are skipped; spin structure makes them common.
func cMatMulRows(dst, a, b []complex128, n int) {
	clear(dst[:n*n])
	for i := 0; i < n; i++ {
		out := dst[i*n : (i+1)*n]
		for k := 0; k < n; k++ {
			aik := a[i*n+k]
			if aik == 0 {
				continue
			}
			row := b[k*n : (k+1)*n]
			j := 0
			for ; j+3 < n; j += 4 {
				out[j] += aik * row[j]
				out[j+1] += aik * row[j+1]
				out[j+2] += aik * row[j+2]
				out[j+3] += aik * row[j+3]
			}
			for ; j < n; j++ {
				out[j] += aik * row[j]
			}
		}
	}
}
