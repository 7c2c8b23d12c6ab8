package factcheck

import "testing"

func TestVerdictCacheStoresByExactClaim(t *testing.T) {
	t.Parallel()

	cache := newVerdictCache()

	if _, hit := cache.Get("the moon is made of cheese"); hit {
		t.Fatalf("Get() hit on empty cache")
	}

	cache.Put("the moon is made of cheese", "<b>Verdict:</b> False")

	verdict, hit := cache.Get("the moon is made of cheese")
	if !hit {
		t.Fatalf("Get() miss after Put()")
	}
	if verdict != "<b>Verdict:</b> False" {
		t.Fatalf("Get() = %q", verdict)
	}

	// Keys are exact strings: casing and whitespace variants miss.
	if _, hit := cache.Get("The moon is made of cheese"); hit {
		t.Fatalf("Get() hit on case variant")
	}
	if _, hit := cache.Get("the moon is made of cheese "); hit {
		t.Fatalf("Get() hit on whitespace variant")
	}

	if cache.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cache.Len())
	}
}
