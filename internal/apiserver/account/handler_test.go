package account

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pairshot/internal/apiserver/auth"
	"pairshot/internal/generation"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
)

func newTestHandler() (*Handler, *storage.MemStore) {
	store := storage.NewMemStore()
	ledger := generation.NewLedger(store, 2, 1)
	return NewHandler(store, ledger), store
}

func seedAccount(store *storage.MemStore, id string) *model.Account {
	account := &model.Account{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "Tester",
		Role:        model.AccountRoleClient,
		Status:      model.AccountStatusActive,
		SpecTemplate: map[string][]string{
			"glaze": {"matte", "glossy"},
			"size":  {"small", "large"},
		},
		Credits:   model.DefaultCredits,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	store.Accounts[id] = account
	return account
}

func asUser(req *http.Request, id string) *http.Request {
	return req.WithContext(auth.WithAuthUser(req.Context(), &auth.AuthUser{ID: id, Role: "client"}))
}

func TestGet(t *testing.T) {
	h, store := newTestHandler()
	seedAccount(store, "acc-1")

	req := asUser(httptest.NewRequest("GET", "/api/v1/account", nil), "acc-1")
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var account model.Account
	json.Unmarshal(w.Body.Bytes(), &account)
	if account.ID != "acc-1" {
		t.Errorf("id = %q", account.ID)
	}
}

func TestGet_Unauthenticated(t *testing.T) {
	h, _ := newTestHandler()
	req := httptest.NewRequest("GET", "/api/v1/account", nil)
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	h, store := newTestHandler()
	seedAccount(store, "acc-1")

	body := `{"preferred_provider":"stability"}`
	req := asUser(httptest.NewRequest("PATCH", "/api/v1/account", strings.NewReader(body)), "acc-1")
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := store.Accounts["acc-1"]
	if updated.PreferredProvider != "stability" {
		t.Errorf("preferred_provider = %q", updated.PreferredProvider)
	}
	// 未提交的字段不动
	if updated.DisplayName != "Tester" {
		t.Errorf("display_name = %q, want unchanged", updated.DisplayName)
	}
}

func TestUpdate_EmptyDisplayNameRejected(t *testing.T) {
	h, store := newTestHandler()
	seedAccount(store, "acc-1")

	body := `{"display_name":""}`
	req := asUser(httptest.NewRequest("PATCH", "/api/v1/account", strings.NewReader(body)), "acc-1")
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpdateSpecSelections(t *testing.T) {
	h, store := newTestHandler()
	seedAccount(store, "acc-1")

	body := `{"spec_selections":{"glaze":["matte"],"size":["large"]}}`
	req := asUser(httptest.NewRequest("PUT", "/api/v1/account/specs", strings.NewReader(body)), "acc-1")
	w := httptest.NewRecorder()
	h.UpdateSpecSelections(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	sel := store.Accounts["acc-1"].SpecSelections
	if len(sel["glaze"]) != 1 || sel["glaze"][0] != "matte" {
		t.Errorf("selections = %v", sel)
	}
}

func TestUpdateSpecSelections_OutsideTemplate(t *testing.T) {
	h, store := newTestHandler()
	seedAccount(store, "acc-1")

	// 模板里没有 color 这个规格
	body := `{"spec_selections":{"color":["red"]}}`
	req := asUser(httptest.NewRequest("PUT", "/api/v1/account/specs", strings.NewReader(body)), "acc-1")
	w := httptest.NewRecorder()
	h.UpdateSpecSelections(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateSpecSelections_ValueNotAllowed(t *testing.T) {
	h, store := newTestHandler()
	seedAccount(store, "acc-1")

	body := `{"spec_selections":{"glaze":["metallic"]}}`
	req := asUser(httptest.NewRequest("PUT", "/api/v1/account/specs", strings.NewReader(body)), "acc-1")
	w := httptest.NewRecorder()
	h.UpdateSpecSelections(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGetCredits(t *testing.T) {
	h, store := newTestHandler()
	account := seedAccount(store, "acc-1")
	account.Credits = 7

	req := asUser(httptest.NewRequest("GET", "/api/v1/account/credits", nil), "acc-1")
	w := httptest.NewRecorder()
	h.GetCredits(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp creditsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Credits != 7 {
		t.Errorf("credits = %d, want 7", resp.Credits)
	}
}

func TestListCreditPackages(t *testing.T) {
	h, _ := newTestHandler()

	req := asUser(httptest.NewRequest("GET", "/api/v1/account/credit-packages", nil), "acc-1")
	w := httptest.NewRecorder()
	h.ListCreditPackages(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var packages []model.CreditPackage
	json.Unmarshal(w.Body.Bytes(), &packages)
	if len(packages) == 0 {
		t.Fatal("expected at least one credit package")
	}
}

func TestTopUp(t *testing.T) {
	h, store := newTestHandler()
	seedAccount(store, "acc-1")
	pkg := model.CreditPackages[0]

	body := `{"package_id":"` + pkg.ID + `"}`
	req := asUser(httptest.NewRequest("POST", "/api/v1/account/topup", strings.NewReader(body)), "acc-1")
	w := httptest.NewRecorder()
	h.TopUp(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := store.Accounts["acc-1"]
	if updated.Credits != model.DefaultCredits+pkg.Credits {
		t.Errorf("credits = %d, want %d", updated.Credits, model.DefaultCredits+pkg.Credits)
	}
	if len(updated.Purchases) != 1 {
		t.Errorf("purchases = %d, want 1", len(updated.Purchases))
	}
}

func TestTopUp_UnknownPackage(t *testing.T) {
	h, store := newTestHandler()
	seedAccount(store, "acc-1")

	body := `{"package_id":"no-such-package"}`
	req := asUser(httptest.NewRequest("POST", "/api/v1/account/topup", strings.NewReader(body)), "acc-1")
	w := httptest.NewRecorder()
	h.TopUp(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if store.Accounts["acc-1"].Credits != model.DefaultCredits {
		t.Error("balance changed on failed topup")
	}
}
