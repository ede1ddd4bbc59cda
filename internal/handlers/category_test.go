package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/closetly/apiserver/types"
)

func TestCategoryReadsAreOpen(t *testing.T) {
	env := newTestEnv(t)
	shirts := env.addCategory("Shirts")
	env.addCategory("Shoes")

	resp := env.doJSON(t, http.MethodGet, "/categories", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("anonymous list: status %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Count   int              `json:"count"`
		Results []types.Category `json:"results"`
	}
	decodeBody(t, resp, &out)
	if out.Count != 2 {
		t.Fatalf("count = %d, want 2", out.Count)
	}

	resp = env.doJSON(t, http.MethodGet, fmt.Sprintf("/categories/%d", shirts.ID), "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("anonymous get: status %d", resp.Code)
	}
}

func TestCategoryWritesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice")

	// Unauthenticated writes fail at the auth middleware.
	resp := env.doJSON(t, http.MethodPost, "/categories", "", `{"name":"Hats"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: status %d, want 401", resp.Code)
	}

	// Authenticated non-admins fail at the policy.
	resp = env.doJSON(t, http.MethodPost, "/categories", token, `{"name":"Hats"}`)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("plain user create: status %d, want 403: %s", resp.Code, resp.Body.String())
	}

	env.promoteAdmin("alice")
	resp = env.doJSON(t, http.MethodPost, "/categories", token, `{"name":"Hats"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("admin create: status %d: %s", resp.Code, resp.Body.String())
	}
	var created types.Category
	decodeBody(t, resp, &created)
	if created.Name != "Hats" || created.ID == 0 {
		t.Fatalf("created = %+v", created)
	}

	path := fmt.Sprintf("/categories/%d", created.ID)
	resp = env.doJSON(t, http.MethodPut, path, token, `{"name":"Headwear"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("admin update: status %d: %s", resp.Code, resp.Body.String())
	}

	resp = env.doJSON(t, http.MethodDelete, path, token, "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("admin delete: status %d", resp.Code)
	}
	resp = env.doJSON(t, http.MethodGet, path, "", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", resp.Code)
	}
}

func TestCategoryDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	env.addCategory("Shirts")
	token := env.register(t, "root")
	env.promoteAdmin("root")

	resp := env.doJSON(t, http.MethodPost, "/categories", token, `{"name":"Shirts"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	decodeBody(t, resp, &out)
	if out.Errors["name"] != "already exists" {
		t.Fatalf("errors = %v", out.Errors)
	}
}
