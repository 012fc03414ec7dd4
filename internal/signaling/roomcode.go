package signaling

import (
	"crypto/rand"
	"math/big"
)

// roomCodeAlphabet is uppercase alphanumeric, matching the contract's
// "uppercase alphanumeric, length 6" requirement.
const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const roomCodeLength = 6

// generateRoomCode draws roomCodeLength characters from roomCodeAlphabet
// using a CSPRNG, giving just over 31 bits of entropy per code (36^6 ≈
// 2^31). The Hub retries on collision against its live room set.
func generateRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomCodeAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
