package change

import (
	"testing"

	inspection "inspection_portal/internal/inspections/domain"

	"github.com/google/uuid"
)

func serviceItem(id uuid.UUID) inspection.PricingItem {
	return inspection.PricingItem{Type: inspection.PricingService, ServiceID: id}
}

func TestDetect_AddedAndRemoved(t *testing.T) {
	a := serviceItem(uuid.New())
	b := serviceItem(uuid.New())

	d := Detect([]inspection.PricingItem{a}, []inspection.PricingItem{a, b}, ServiceKey)
	if !d.Added || d.Removed {
		t.Fatalf("expected added-only, got %+v", d)
	}

	d = Detect([]inspection.PricingItem{a, b}, []inspection.PricingItem{a}, ServiceKey)
	if d.Added || !d.Removed {
		t.Fatalf("expected removed-only, got %+v", d)
	}

	d = Detect([]inspection.PricingItem{a}, []inspection.PricingItem{b}, ServiceKey)
	if !d.Added || !d.Removed {
		t.Fatalf("expected both added and removed, got %+v", d)
	}
}

func TestDetect_NoChange(t *testing.T) {
	a := serviceItem(uuid.New())
	d := Detect([]inspection.PricingItem{a}, []inspection.PricingItem{a}, ServiceKey)
	if d.Added || d.Removed {
		t.Fatalf("identical collections should report no change, got %+v", d)
	}

	d = Detect(nil, nil, ServiceKey)
	if d.Added || d.Removed {
		t.Fatalf("empty collections should report no change, got %+v", d)
	}
}

func TestServiceKey_IgnoresFees(t *testing.T) {
	fee := inspection.PricingItem{Type: inspection.PricingFee, Name: "Travel Fee"}

	d := Detect(nil, []inspection.PricingItem{fee}, ServiceKey)
	if d.Added || d.Removed {
		t.Fatalf("fee items must not register as service changes, got %+v", d)
	}

	d = Detect(nil, []inspection.PricingItem{fee}, FeeKey)
	if !d.Added {
		t.Fatal("fee item should register through FeeKey")
	}
}

func TestFeeKey_CaseInsensitive(t *testing.T) {
	before := []inspection.PricingItem{{Type: inspection.PricingFee, Name: "Travel Fee"}}
	after := []inspection.PricingItem{{Type: inspection.PricingFee, Name: "TRAVEL FEE"}}

	d := Detect(before, after, FeeKey)
	if d.Added || d.Removed {
		t.Fatalf("fee names differing only in case are the same fee, got %+v", d)
	}
}

func TestAgreementKey_SigningIsNotAChange(t *testing.T) {
	id := uuid.New()
	before := []inspection.Agreement{{AgreementID: id, IsSigned: false}}
	after := []inspection.Agreement{{AgreementID: id, IsSigned: true}}

	d := Detect(before, after, AgreementKey)
	if d.Added || d.Removed {
		t.Fatalf("signing an existing agreement is not an add or remove, got %+v", d)
	}
}

func TestDocumentKey(t *testing.T) {
	d := Detect([]string{"https://docs.example/a.pdf"}, []string{"https://docs.example/b.pdf"}, DocumentKey)
	if !d.Added || !d.Removed {
		t.Fatalf("swapping a document should report both added and removed, got %+v", d)
	}
}
