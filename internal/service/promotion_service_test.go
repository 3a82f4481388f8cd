package service

import (
	"errors"
	"testing"
	"time"

	"github.com/jmylchreest/codecredit-api/internal/models"
)

func activePromo(credits int) PromotionInput {
	return PromotionInput{
		OfferName: "diwali",
		Credits:   credits,
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(7 * day),
	}
}

func (f *fixture) promoEntries(t *testing.T, userID string) []*models.PromotionalCredit {
	t.Helper()
	entries, err := f.store.PromotionalCredit.ListByUser(t.Context(), userID)
	if err != nil {
		t.Fatalf("ListByUser(%s) error = %v", userID, err)
	}
	return entries
}

func TestPromotion_CreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   PromotionInput
	}{
		{"empty name", PromotionInput{OfferName: "  ", Credits: 5, StartDate: testNow, EndDate: testNow.Add(day)}},
		{"zero credits", PromotionInput{OfferName: "x", Credits: 0, StartDate: testNow, EndDate: testNow.Add(day)}},
		{"end before start", PromotionInput{OfferName: "x", Credits: 5, StartDate: testNow, EndDate: testNow.Add(-day)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svcs.Promotion.Create(t.Context(), tt.in, "admin"); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Create() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPromotion_Propagation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.register(t, "u2")

	promo, err := f.svcs.Promotion.Create(t.Context(), activePromo(50), "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if promo.UserCount != 2 {
		t.Errorf("UserCount = %d, want 2", promo.UserCount)
	}
	for _, id := range []string{"u1", "u2"} {
		entries := f.promoEntries(t, id)
		if len(entries) != 1 || entries[0].Amount != 50 || entries[0].OfferName != "diwali" {
			t.Errorf("%s entries = %+v, want one diwali entry of 50", id, entries)
		}
	}

	// Users created later are not granted retroactively by Create.
	f.register(t, "u3")
	if got := len(f.promoEntries(t, "u3")); got != 0 {
		t.Errorf("u3 entries before sweep = %d, want 0", got)
	}

	result, err := f.svcs.Promotion.ApplyActive(t.Context())
	if err != nil {
		t.Fatalf("ApplyActive() error = %v", err)
	}
	if result.Succeeded != 1 {
		t.Errorf("ApplyActive result = %+v, want 1 granted", result)
	}
	if got := f.promoEntries(t, "u3"); len(got) != 1 || got[0].Amount != 50 {
		t.Errorf("u3 entries after sweep = %+v, want one of 50", got)
	}

	if _, err := f.svcs.Promotion.Create(t.Context(), activePromo(10), "admin"); !errors.Is(err, ErrDuplicatePromotion) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicatePromotion", err)
	}
}

func TestPromotion_SpentEntryNotRegranted(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	if _, err := f.svcs.Promotion.Create(t.Context(), activePromo(1), "admin"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if src := f.spend(t, "u1"); src.Kind != models.SourcePromotional {
		t.Fatalf("source = %s, want promotional", src.Kind)
	}
	if got := len(f.promoEntries(t, "u1")); got != 0 {
		t.Fatalf("entries after spend = %d, want 0", got)
	}

	result, err := f.svcs.Promotion.ApplyActive(t.Context())
	if err != nil {
		t.Fatalf("ApplyActive() error = %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("ApplyActive result = %+v, want nothing to do", result)
	}
	if got := len(f.promoEntries(t, "u1")); got != 0 {
		t.Errorf("entries after sweep = %d, want 0", got)
	}
}

func TestPromotion_ApplyIgnoresInactive(t *testing.T) {
	f := newFixture(t)
	in := activePromo(5)
	in.StartDate = testNow.Add(day)
	in.EndDate = testNow.Add(2 * day)
	if _, err := f.svcs.Promotion.Create(t.Context(), in, "admin"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.register(t, "late")

	result, err := f.svcs.Promotion.ApplyActive(t.Context())
	if err != nil {
		t.Fatalf("ApplyActive() error = %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("result = %+v, want 0 processed for a future promotion", result)
	}
}

func TestPromotion_Update(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	f.register(t, "u2")
	promo, err := f.svcs.Promotion.Create(t.Context(), activePromo(10), "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.spend(t, "u1")

	// Same credits: dates move, remaining amounts stay.
	in := activePromo(10)
	in.EndDate = testNow.Add(14 * day)
	if _, err := f.svcs.Promotion.Update(t.Context(), promo.ID, in); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	e := f.promoEntries(t, "u1")[0]
	if e.Amount != 9 || !e.EndDate.Equal(in.EndDate) {
		t.Errorf("u1 entry = %d until %v, want 9 until %v", e.Amount, e.EndDate, in.EndDate)
	}

	// Changed credits and name: every holder is reset.
	in.Credits = 25
	in.OfferName = "diwali-extended"
	if _, err := f.svcs.Promotion.Update(t.Context(), promo.ID, in); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	for _, id := range []string{"u1", "u2"} {
		e := f.promoEntries(t, id)[0]
		if e.Amount != 25 || e.OfferName != "diwali-extended" {
			t.Errorf("%s entry = %s/%d, want diwali-extended/25", id, e.OfferName, e.Amount)
		}
	}

	if _, err := f.svcs.Promotion.Update(t.Context(), "missing", in); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	other := activePromo(5)
	other.OfferName = "holi"
	if _, err := f.svcs.Promotion.Create(t.Context(), other, "admin"); err != nil {
		t.Fatalf("Create(holi) error = %v", err)
	}
	if _, err := f.svcs.Promotion.Update(t.Context(), promo.ID, other); !errors.Is(err, ErrDuplicatePromotion) {
		t.Errorf("Update(rename to holi) error = %v, want ErrDuplicatePromotion", err)
	}
}

func TestPromotion_DeleteAndList(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	promo, err := f.svcs.Promotion.Create(t.Context(), activePromo(10), "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	list, err := f.svcs.Promotion.List(t.Context())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].UserCount != 1 {
		t.Errorf("List() = %+v, want one promotion with 1 holder", list)
	}

	if err := f.svcs.Promotion.Delete(t.Context(), promo.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := len(f.promoEntries(t, "u1")); got != 0 {
		t.Errorf("entries after delete = %d, want 0", got)
	}
	if err := f.svcs.Promotion.Delete(t.Context(), promo.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestPromotion_Grant(t *testing.T) {
	f := newFixture(t)
	promo, err := f.svcs.Promotion.Create(t.Context(), activePromo(10), "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.register(t, "u1")

	ok, err := f.svcs.Promotion.Grant(t.Context(), promo.ID, "u1")
	if err != nil || !ok {
		t.Fatalf("Grant() = %v, %v, want true", ok, err)
	}
	ok, err = f.svcs.Promotion.Grant(t.Context(), promo.ID, "u1")
	if err != nil || ok {
		t.Errorf("repeat Grant() = %v, %v, want false", ok, err)
	}
	if _, err := f.svcs.Promotion.Grant(t.Context(), promo.ID, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Grant(unknown user) error = %v, want ErrNotFound", err)
	}
	if _, err := f.svcs.Promotion.Grant(t.Context(), "missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Grant(unknown promotion) error = %v, want ErrNotFound", err)
	}
}

func TestPromotion_CleanupExpired(t *testing.T) {
	f := newFixture(t)
	f.register(t, "u1")
	short := activePromo(5)
	short.OfferName = "flash"
	short.EndDate = testNow.Add(time.Hour)
	if _, err := f.svcs.Promotion.Create(t.Context(), short, "admin"); err != nil {
		t.Fatalf("Create(flash) error = %v", err)
	}
	if _, err := f.svcs.Promotion.Create(t.Context(), activePromo(5), "admin"); err != nil {
		t.Fatalf("Create(diwali) error = %v", err)
	}

	f.clock.Advance(2 * time.Hour)
	n, err := f.svcs.Promotion.CleanupExpired(t.Context())
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	entries := f.promoEntries(t, "u1")
	if len(entries) != 1 || entries[0].OfferName != "diwali" {
		t.Errorf("remaining entries = %+v, want diwali only", entries)
	}
}
