package murmur

import "testing"

// Vectors pinned against the reference MurmurHash2 mixing schedule; any
// change to the algorithm above must keep these stable.
func TestHash32Vectors(t *testing.T) {
	cases := []struct {
		key  string
		seed uint32
		want uint32
	}{
		{"", 0, 0x0},
		{"", 0xCAFEBABE, 0x1616738b},
		{"123", 0xCAFEBABE, 0x01ccb886},
		{"234", 0xCAFEBABE, 0xd7591e13},
		{"345", 0xCAFEBABE, 0xb35f9836},
		{"456", 0xCAFEBABE, 0x13d44984},
		{"567", 0xCAFEBABE, 0x5d76f4e0},
		{"678", 0xCAFEBABE, 0xc7e7149d},
		{"789", 0xCAFEBABE, 0x293d5f34},
		{"890", 0xCAFEBABE, 0xe5dcd3e3},
	}
	for _, c := range cases {
		got := Hash32([]byte(c.key), c.seed)
		if got != c.want {
			t.Fatalf("Hash32(%q, %#x) = %#x, want %#x", c.key, c.seed, got, c.want)
		}
	}
}

func TestHash32Deterministic(t *testing.T) {
	keys := []string{"123", "234", "345", "456", "567", "678", "789", "890"}
	for _, k := range keys {
		a := Hash32([]byte(k), 0xCAFEBABE)
		b := Hash32([]byte(k), 0xCAFEBABE)
		if a != b {
			t.Fatalf("hash not deterministic for %q: %#x != %#x", k, a, b)
		}
	}
}

func TestHash32DiffersBySeed(t *testing.T) {
	a := Hash32([]byte("123"), 1)
	b := Hash32([]byte("123"), 2)
	if a == b {
		t.Fatalf("expected different seeds to (almost always) diverge, got %#x for both", a)
	}
}

func TestHash32TailBytes(t *testing.T) {
	// Exercise the 1/2/3-remaining-byte fallthrough explicitly.
	for n := 1; n <= 8; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i + 1)
		}
		_ = Hash32(data, 0x1234)
	}
}
