package password

import "testing"

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := &BcryptHasher{Cost: 4} // minimum valid bcrypt cost, keeps the test fast
	hash, err := h.Hash("hunter2")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !h.Verify("hunter2", hash) {
		t.Fatalf("Verify rejected the correct password")
	}
	if h.Verify("wrong", hash) {
		t.Fatalf("Verify accepted an incorrect password")
	}
}
