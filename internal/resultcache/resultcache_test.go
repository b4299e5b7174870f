package resultcache

import (
	"bytes"
	"testing"
)

func TestKeyDistinguishesInputs(t *testing.T) {
	payload := []byte(`{"type":"FeatureCollection","features":[]}`)

	base := Key("glim", "geojson", payload)
	if Key("glhymps", "geojson", payload) == base {
		t.Fatal("key ignores dataset")
	}
	if Key("glim", "shapefile", payload) == base {
		t.Fatal("key ignores format")
	}
	if Key("glim", "geojson", append(bytes.Clone(payload), ' ')) == base {
		t.Fatal("key ignores payload bytes")
	}
	if Key("glim", "geojson", payload) != base {
		t.Fatal("key not deterministic")
	}
}

func TestPutGet(t *testing.T) {
	c, err := New(4, 1024)
	if err != nil {
		t.Fatal(err)
	}

	key := Key("glim", "geojson", []byte("aoi"))
	if _, hit := c.Get(key); hit {
		t.Fatal("hit on empty cache")
	}

	entry := Entry{Body: []byte("body"), Filename: "glim_clipped.geojson", MediaType: "application/geo+json", FeatureCount: 2}
	c.Put(key, entry)

	got, hit := c.Get(key)
	if !hit {
		t.Fatal("miss after put")
	}
	if !bytes.Equal(got.Body, entry.Body) || got.FeatureCount != 2 || got.Filename != entry.Filename {
		t.Fatalf("entry mangled: %+v", got)
	}
}

func TestPutSkipsOversizedBodies(t *testing.T) {
	c, err := New(4, 8)
	if err != nil {
		t.Fatal(err)
	}
	key := Key("glim", "geojson", []byte("aoi"))
	c.Put(key, Entry{Body: make([]byte, 9)})
	if _, hit := c.Get(key); hit {
		t.Fatal("oversized body was cached")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	c, err := New(2, 1024)
	if err != nil {
		t.Fatal(err)
	}
	k1 := Key("glim", "geojson", []byte("a"))
	k2 := Key("glim", "geojson", []byte("b"))
	k3 := Key("glim", "geojson", []byte("c"))

	c.Put(k1, Entry{Body: []byte("1")})
	c.Put(k2, Entry{Body: []byte("2")})
	c.Put(k3, Entry{Body: []byte("3")})

	if _, hit := c.Get(k1); hit {
		t.Fatal("oldest entry survived past capacity")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}
