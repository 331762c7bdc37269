package random

import (
	"crypto/rand"
	"math/big"
)

const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Code returns an unambiguous upper-case token of the given length.
func Code(length int) string {
	return pickFromSet(letters, length)
}

func pickFromSet(set string, length int) string {
	if length <= 0 {
		return ""
	}
	runes := make([]byte, length)
	for i := 0; i < length; i++ {
		runes[i] = set[Intn(len(set))]
	}
	return string(runes)
}

// Intn returns a uniform value in [0, n). It returns 0 when n <= 1.
func Intn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// Sample returns k distinct indexes from [0, n) in random order.
func Sample(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return []int{}
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
