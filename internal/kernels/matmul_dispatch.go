package kernels

import "os"

var cMatMulImpl = cMatMulRows

func init() {
	if os.Getenv("LATTICE_MATMUL_GENERIC") == "1" {
		cMatMulImpl = cMatMulGeneric
	}
}

// CMatMul computes dst = a·b for square row-major n×n matrices. dst must not
// alias a or b.
func CMatMul(dst, a, b []complex128, n int) {
	if n <= 0 {
		return
	}
	if len(dst) < n*n || len(a) < n*n || len(b) < n*n {
		return
	}
	cMatMulImpl(dst, a, b, n)
}
