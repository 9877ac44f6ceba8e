package elemental

import (
	"lattice-go/internal/container"
	"lattice-go/internal/tensor"
)

func writeWithoutMomenta(path string, data *tensor.Tensor) error {
	w := container.NewWriter()
	if err := w.AddTensor(TensorName, container.TypeComplex128, data); err != nil {
		return err
	}
	return w.WriteFile(path)
}
