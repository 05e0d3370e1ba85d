package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

const MinMultiplier = 1.00

// Draw is the committed outcome of one round. Commitment is published before
// betting opens; the seeds are revealed after the crash.
type Draw struct {
	ServerSeed string
	ClientSeed string
	Nonce      int
	Commitment string
	CrashPoint float64
}

// CrashSource produces the draw for a round.
type CrashSource interface {
	Next(nonce int) Draw
}

// FairSource draws every round from the same house-edge distribution.
type FairSource struct {
	HouseEdge     float64
	MaxMultiplier float64
}

func (s FairSource) Next(nonce int) Draw {
	serverSeed := GenerateSeed()
	clientSeed := GenerateSeed()
	return Draw{
		ServerSeed: serverSeed,
		ClientSeed: clientSeed,
		Nonce:      nonce,
		Commitment: HashCommitment(serverSeed),
		CrashPoint: CrashPoint(serverSeed, clientSeed, nonce, s.HouseEdge, s.MaxMultiplier),
	}
}

// CrashPoint maps HMAC-SHA256(serverSeed, "clientSeed:nonce") onto a crash
// multiplier. A houseEdge share of rounds crash instantly at 1.00x; the rest
// follow (1-edge)/(1-r), truncated to two decimals and capped at ceiling.
func CrashPoint(serverSeed, clientSeed string, nonce int, houseEdge, ceiling float64) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(h, "%s:%d", clientSeed, nonce)
	sum := h.Sum(nil)

	// 53 bits keep the float conversion exact.
	r := float64(binary.BigEndian.Uint64(sum[:8])>>11) / float64(uint64(1)<<53)

	if r < houseEdge {
		return MinMultiplier
	}

	crash := math.Floor((1-houseEdge)/(1-r)*100) / 100
	if crash < MinMultiplier {
		return MinMultiplier
	}
	if crash > ceiling {
		return ceiling
	}
	return crash
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// VerifyRound checks a revealed round against its published commitment and
// claimed crash point.
func VerifyRound(rec RoundRecord, houseEdge, ceiling float64) bool {
	if HashCommitment(rec.ServerSeed) != rec.Commitment {
		return false
	}
	want := CrashPoint(rec.ServerSeed, rec.ClientSeed, rec.Nonce, houseEdge, ceiling)
	return math.Abs(want-rec.CrashMultiplier) < 0.005
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
