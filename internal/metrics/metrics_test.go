package metrics

import "testing"

func TestNewRegistryIndependentInstances(t *testing.T) {
	r1 := NewRegistry()
	r2 := NewRegistry()

	r1.ObserveClassification("success", 12.5)
	r2.ObserveClassification("no_match", 4.0)

	metrics1, err := r1.Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(metrics1) == 0 {
		t.Fatal("expected at least one metric family registered")
	}
}

func TestObserveReload(t *testing.T) {
	r := NewRegistry()
	r.ObserveReload("success")
	r.ObserveReload("failure")

	families, err := r.Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "weaveclassify_reload_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected weaveclassify_reload_total metric family")
	}
}
