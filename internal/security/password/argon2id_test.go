package password

import (
	"strings"
	"testing"
)

// Cheap parameters keep the tests fast; production strength is irrelevant to
// correctness here.
var testParams = Params{Memory: 8, Time: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16}

func TestHashVerify_RoundTrip(t *testing.T) {
	h := NewHasher(testParams)

	encoded, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("not a PHC string: %q", encoded)
	}
	if !h.Verify("correct-horse", encoded) {
		t.Fatalf("correct password did not verify")
	}
	if h.Verify("wrong-horse", encoded) {
		t.Fatalf("wrong password verified")
	}
}

func TestHash_SaltsAreUnique(t *testing.T) {
	h := NewHasher(testParams)

	a, err := h.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatalf("two hashes of the same input are identical, salt is not random")
	}
}

func TestHash_EmptyInputRejected(t *testing.T) {
	h := NewHasher(testParams)
	if _, err := h.Hash(""); err == nil {
		t.Fatalf("empty input accepted")
	}
}

func TestVerify_MalformedIsFalse(t *testing.T) {
	h := NewHasher(testParams)
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8,t=1,p=1$notb64!!$alsonot",
		"$bcrypt$whatever",
		"$argon2id$v=18$m=8,t=1,p=1$c2FsdA$a2V5", // wrong version
	} {
		if h.Verify("anything", encoded) {
			t.Errorf("malformed hash %q verified", encoded)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := NewHasher(testParams)
	encoded, err := weak.Hash("pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if weak.NeedsRehash(encoded) {
		t.Fatalf("hash at current parameters flagged for rehash")
	}

	stronger := NewHasher(Params{Memory: 16, Time: 2, Parallelism: 1, SaltLen: 8, KeyLen: 16})
	if !stronger.NeedsRehash(encoded) {
		t.Fatalf("weaker hash not flagged for rehash")
	}
	if !stronger.NeedsRehash("garbage") {
		t.Fatalf("unparseable hash must be flagged for rehash")
	}
}
