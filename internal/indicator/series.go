package indicator

// Shift 将序列整体后移 n 位，前 n 位填充 fill。
func Shift(values []float64, n int, fill float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < n {
			out[i] = fill
			continue
		}
		out[i] = values[i-n]
	}
	return out
}
