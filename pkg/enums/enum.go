package enums

import "fmt"

func isOneOf[T ~string](candidates []T, value T) bool {
	for _, candidate := range candidates {
		if candidate == value {
			return true
		}
	}
	return false
}

func parseOneOf[T ~string](candidates []T, value, kind string) (T, error) {
	for _, candidate := range candidates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
