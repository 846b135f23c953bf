package catalog

import "testing"

func TestRegistryInsertionOrderAndActive(t *testing.T) {
	r := NewRegistry([]Candidate{
		{ID: "a", Active: true},
		{ID: "b", Active: true},
		{ID: "c", Active: false},
	})

	all := r.All()
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Fatalf("All should preserve insertion order, got %+v", all)
	}

	active := r.Active()
	if len(active) != 2 || active[0].ID != "a" || active[1].ID != "b" {
		t.Fatalf("Active should skip inactive candidates, got %+v", active)
	}
}

func TestRegistryUpsertAndSetActive(t *testing.T) {
	r := NewRegistry([]Candidate{{ID: "a", Name: "old", Active: true}})

	r.Upsert(Candidate{ID: "a", Name: "new", Active: true})
	if got, _ := r.Get("a"); got.Name != "new" {
		t.Fatalf("upsert should replace, got %q", got.Name)
	}
	if len(r.All()) != 1 {
		t.Fatal("upsert of an existing id must not duplicate")
	}

	if !r.SetActive("a", false) {
		t.Fatal("SetActive should find the candidate")
	}
	if len(r.Active()) != 0 {
		t.Fatal("deactivated candidate should drop from Active")
	}
	if r.SetActive("ghost", true) {
		t.Fatal("SetActive with unknown id should report false")
	}
	if _, ok := r.Get("ghost"); ok {
		t.Fatal("Get with unknown id should report false")
	}
}

func TestParseLevelAndMeets(t *testing.T) {
	cases := map[string]Level{
		"low":      LevelLow,
		"Medium":   LevelMedium,
		"med":      LevelMedium,
		" HIGH ":   LevelHigh,
		"":         LevelNone,
		"whatever": LevelNone,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}

	if !LevelHigh.Meets(LevelMedium) {
		t.Fatal("high should meet a medium requirement")
	}
	if LevelLow.Meets(LevelMedium) {
		t.Fatal("low should not meet a medium requirement")
	}
	if !LevelMedium.Meets(LevelMedium) {
		t.Fatal("equal levels meet")
	}
}

func TestFromSeedDefaultsActive(t *testing.T) {
	c := FromSeed(Seed{ID: "a", Automation: "high"})
	if !c.Active {
		t.Fatal("candidates default to active")
	}
	if c.Automation != LevelHigh {
		t.Fatalf("automation should parse, got %s", c.Automation)
	}

	inactive := false
	c = FromSeed(Seed{ID: "a", Active: &inactive})
	if c.Active {
		t.Fatal("explicit active=false must stick")
	}
}
