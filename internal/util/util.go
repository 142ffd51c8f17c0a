// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package util holds small helpers shared across the server.
package util

import (
	"crypto/rand"
	"time"
)

const randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns n characters of cryptographically random
// alphanumeric text. Used for tokens, device ids, and salts.
func RandomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	for i, b := range buf {
		buf[i] = randomAlphabet[int(b)%len(randomAlphabet)]
	}
	return string(buf)
}

// NowMillis returns the current time as unix milliseconds, the timestamp
// format stored throughout the database.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
