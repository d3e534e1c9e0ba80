// Package checked provides overflow-detecting integer arithmetic.
package checked

import "golang.org/x/exp/constraints"

// Mul returns a*b and reports whether the product fits the type.
func Mul[T constraints.Signed](a, b T) (T, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	// minT * -1 wraps back to minT and slips past the division check.
	if b == -1 {
		return r, r != a
	}
	if r/b != a {
		return r, false
	}
	return r, true
}

// Add returns a+b and reports whether the sum fits the type.
func Add[T constraints.Signed](a, b T) (T, bool) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return r, false
	}
	return r, true
}
