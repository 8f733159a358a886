package room

import (
	"crypto/rand"
	"math/big"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// newCode draws a private room code; taken reports collisions
func newCode(taken func(string) bool) string {
	buf := make([]byte, codeLength)
	for {
		for i := range buf {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
			if err != nil {
				panic(err)
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		if code := string(buf); !taken(code) {
			return code
		}
	}
}
