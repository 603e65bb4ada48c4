package ncgrid

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func vector[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func matrix[T number](in [][]T) [][]float64 {
	out := make([][]float64, len(in))
	for i, row := range in {
		out[i] = vector(row)
	}
	return out
}

func cube[T number](in [][][]T) [][][]float64 {
	out := make([][][]float64, len(in))
	for i, m := range in {
		out[i] = matrix(m)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint16:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func toVector(v any) ([]float64, bool) {
	switch x := v.(type) {
	case []float64:
		return vector(x), true
	case []float32:
		return vector(x), true
	case []int8:
		return vector(x), true
	case []uint8:
		return vector(x), true
	case []int16:
		return vector(x), true
	case []uint16:
		return vector(x), true
	case []int32:
		return vector(x), true
	case []uint32:
		return vector(x), true
	case []int64:
		return vector(x), true
	case []uint64:
		return vector(x), true
	}
	return nil, false
}

func toMatrix(v any) ([][]float64, bool) {
	switch x := v.(type) {
	case [][]float64:
		return matrix(x), true
	case [][]float32:
		return matrix(x), true
	case [][]int8:
		return matrix(x), true
	case [][]int16:
		return matrix(x), true
	case [][]int32:
		return matrix(x), true
	case [][]int64:
		return matrix(x), true
	}
	return nil, false
}

func toCube(v any) ([][][]float64, bool) {
	switch x := v.(type) {
	case [][][]float64:
		return cube(x), true
	case [][][]float32:
		return cube(x), true
	case [][][]int8:
		return cube(x), true
	case [][][]int16:
		return cube(x), true
	case [][][]int32:
		return cube(x), true
	case [][][]int64:
		return cube(x), true
	}
	return nil, false
}
