package password

import (
	"strings"
	"testing"
)

func testParams() Params {
	return Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	h, err := NewHasher(testParams())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	encoded, err := h.Hash("s3cret-passphrase")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	ok, err := h.Verify("s3cret-passphrase", encoded)
	if err != nil || !ok {
		t.Fatalf("expected verify, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("wrong-passphrase", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h, _ := NewHasher(testParams())

	a, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyUsesEmbeddedParams(t *testing.T) {
	weak, _ := NewHasher(testParams())
	encoded, err := weak.Hash("passphrase-x")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	strong := testParams()
	strong.Time = 3
	h, _ := NewHasher(strong)

	// Verification reads costs out of the stored string, not the hasher.
	ok, err := h.Verify("passphrase-x", encoded)
	if err != nil || !ok {
		t.Fatalf("expected verify with old params, ok=%v err=%v", ok, err)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, _ := NewHasher(testParams())
	encoded, err := weak.Hash("passphrase-x")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if stale, err := weak.NeedsRehash(encoded); err != nil || stale {
		t.Fatalf("same params must not need rehash, stale=%v err=%v", stale, err)
	}

	strong := testParams()
	strong.Time = 3
	h, _ := NewHasher(strong)
	if stale, err := h.NeedsRehash(encoded); err != nil || !stale {
		t.Fatalf("weaker stored params must need rehash, stale=%v err=%v", stale, err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	h, _ := NewHasher(testParams())
	for _, bad := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=64,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
	} {
		if _, err := h.Verify("x", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNewHasherEnforcesFloors(t *testing.T) {
	cases := []func(*Params){
		func(p *Params) { p.Memory = 1024 },
		func(p *Params) { p.Time = 0 },
		func(p *Params) { p.Parallelism = 0 },
		func(p *Params) { p.SaltLength = 8 },
		func(p *Params) { p.KeyLength = 8 },
	}
	for i, mutate := range cases {
		p := testParams()
		mutate(&p)
		if _, err := NewHasher(p); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
