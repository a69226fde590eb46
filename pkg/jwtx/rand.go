package jwtx

import "crypto/rand"

func readRand(b []byte) {
	// crypto/rand.Read never fails on supported platforms.
	_, _ = rand.Read(b)
}
