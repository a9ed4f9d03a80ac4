package match

import (
	"crypto/rand"
	"math/big"
)

// 1v1 quick-match rooms always seat two players.
const maxPlayers = 2

const roomCodeLength = 8

// newRoomCode returns a short human-shareable code. The charset skips
// easily-confused characters (I, L, O, 0, 1).
func newRoomCode() string {
	const charset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	result := make([]byte, roomCodeLength)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}
