// Package randutil generates random test payloads. Safe for concurrent use.
package randutil

import "math/rand"

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Text returns n bytes of random alphanumeric text.
func Text(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return b
}
