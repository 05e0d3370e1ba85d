package game

import (
	"testing"
)

const (
	testEdge = 0.01
	testMax  = 1000000.0
)

func TestCrashPoint(t *testing.T) {
	tests := []struct {
		name       string
		serverSeed string
		clientSeed string
		nonce      int
	}{
		{name: "Basic test", serverSeed: "test_server_seed_123", clientSeed: "test_client_seed_456", nonce: 1},
		{name: "Different nonce", serverSeed: "test_server_seed_123", clientSeed: "test_client_seed_456", nonce: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CrashPoint(tt.serverSeed, tt.clientSeed, tt.nonce, testEdge, testMax)
			if got < MinMultiplier || got > testMax {
				t.Errorf("CrashPoint() = %v, want within [%v, %v]", got, MinMultiplier, testMax)
			}
			if got != round2(got) {
				t.Errorf("CrashPoint() = %v, want two decimals", got)
			}
		})
	}
}

func TestCrashPoint_Deterministic(t *testing.T) {
	result1 := CrashPoint("deterministic_test_seed", "deterministic_client_seed", 42, testEdge, testMax)
	result2 := CrashPoint("deterministic_test_seed", "deterministic_client_seed", 42, testEdge, testMax)

	if result1 != result2 {
		t.Errorf("CrashPoint() is not deterministic: got %v, %v", result1, result2)
	}
}

func TestCrashPoint_Ceiling(t *testing.T) {
	for i := 0; i < 2000; i++ {
		if got := CrashPoint("ceiling_seed", "client", i, testEdge, 15); got > 15 {
			t.Fatalf("CrashPoint() = %v with ceiling 15", got)
		}
	}
}

func TestCrashPoint_HouseEdge(t *testing.T) {
	// With the whole edge set to 1 every round must crash instantly.
	for i := 0; i < 50; i++ {
		if got := CrashPoint("edge_seed", "client", i, 0.9999999, testMax); got != MinMultiplier {
			t.Fatalf("CrashPoint() = %v, want instant crash", got)
		}
	}

	instant := 0
	total := 20000
	for i := 0; i < total; i++ {
		if CrashPoint("house_edge_test", "client", i, testEdge, testMax) == MinMultiplier {
			instant++
		}
	}
	// 1% edge plus the draws that land in [1.00, 1.01) naturally, roughly 2%.
	if instant < total/200 || instant > total*4/100 {
		t.Errorf("instant crash rate %d/%d outside expected range", instant, total)
	}
}

func TestFairSource_Next(t *testing.T) {
	src := FairSource{HouseEdge: testEdge, MaxMultiplier: testMax}
	d := src.Next(7)

	if d.Nonce != 7 {
		t.Errorf("Nonce = %v, want 7", d.Nonce)
	}
	if d.Commitment != HashCommitment(d.ServerSeed) {
		t.Error("Commitment does not match server seed")
	}
	if d.CrashPoint != CrashPoint(d.ServerSeed, d.ClientSeed, 7, testEdge, testMax) {
		t.Error("CrashPoint does not match seeds")
	}
}

func TestGenerateSeed(t *testing.T) {
	seed1 := GenerateSeed()
	seed2 := GenerateSeed()

	if seed1 == seed2 {
		t.Error("GenerateSeed() produced duplicate seeds")
	}

	if len(seed1) != 64 { // 32 bytes = 64 hex characters
		t.Errorf("GenerateSeed() length = %v, want 64", len(seed1))
	}
}

func TestHashCommitment(t *testing.T) {
	seed := "test_seed_12345"

	hash1 := HashCommitment(seed)
	hash2 := HashCommitment(seed)

	if hash1 != hash2 {
		t.Error("HashCommitment() is not deterministic")
	}

	if len(hash1) != 64 { // SHA256 = 64 hex characters
		t.Errorf("HashCommitment() length = %v, want 64", len(hash1))
	}
}

func TestVerifyRound(t *testing.T) {
	serverSeed := "verification_test_seed"
	clientSeed := "verification_client_seed"
	nonce := 100
	actual := CrashPoint(serverSeed, clientSeed, nonce, testEdge, testMax)

	valid := RoundRecord{
		Nonce:           nonce,
		ServerSeed:      serverSeed,
		ClientSeed:      clientSeed,
		Commitment:      HashCommitment(serverSeed),
		CrashMultiplier: actual,
	}

	tests := []struct {
		name   string
		mutate func(*RoundRecord)
		want   bool
	}{
		{name: "Valid verification", mutate: func(*RoundRecord) {}, want: true},
		{name: "Invalid multiplier", mutate: func(r *RoundRecord) { r.CrashMultiplier += 10 }, want: false},
		{name: "Wrong server seed", mutate: func(r *RoundRecord) { r.ServerSeed = "wrong_seed" }, want: false},
		{name: "Wrong commitment", mutate: func(r *RoundRecord) { r.Commitment = HashCommitment("other") }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)
			if got := VerifyRound(rec, testEdge, testMax); got != tt.want {
				t.Errorf("VerifyRound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkCrashPoint(b *testing.B) {
	for i := 0; i < b.N; i++ {
		CrashPoint("benchmark_server_seed", "benchmark_client_seed", i, testEdge, testMax)
	}
}

func BenchmarkHashCommitment(b *testing.B) {
	seed := "benchmark_seed_12345"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashCommitment(seed)
	}
}
