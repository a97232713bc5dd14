package shardnodeserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dreamware/authzd/internal/accessmanager"
)

func testServer(t *testing.T) (*httptest.Server, *accessmanager.Manager) {
	t.Helper()
	mgr := accessmanager.New()
	return httptest.NewServer(NewHandler(mgr)), mgr
}

func post(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestAddUserThenContainsUser(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	post(t, srv, "/v1/User/AddUser", map[string]string{"user": "alice"}).Body.Close()

	resp := post(t, srv, "/v1/User/ContainsUser", map[string]string{"user": "alice"})
	defer resp.Body.Close()
	var out map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out["value"] {
		t.Fatal("expected alice present")
	}
}

func TestContainsEntityUnregisteredTypeReturns404(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	resp := post(t, srv, "/v1/Entity/ContainsEntity", map[string]string{"entityType": "document", "entity": "doc-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered entity type, got %d", resp.StatusCode)
	}
}

func TestGroupToGroupMappingRoundtrip(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	post(t, srv, "/v1/GroupToGroupMapping/AddGroupToGroupMapping", map[string]string{"fromGroup": "A", "toGroup": "B"}).Body.Close()

	resp := post(t, srv, "/v1/GroupToGroupMapping/GetGroupsToGroupMappings", map[string]any{"groups": []string{"A"}})
	defer resp.Body.Close()
	var out map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out["values"]) != 1 || out["values"][0] != "B" {
		t.Fatalf("expected [B], got %v", out["values"])
	}
}

func TestStatsCountsRequests(t *testing.T) {
	srv, mgr := testServer(t)
	defer srv.Close()

	post(t, srv, "/v1/User/AddUser", map[string]string{"user": "alice"}).Body.Close()
	post(t, srv, "/v1/User/ContainsUser", map[string]string{"user": "alice"}).Body.Close()

	stats := mgr.Stats()
	if stats.Events != 1 || stats.Queries != 1 {
		t.Fatalf("expected 1 event and 1 query, got %+v", stats)
	}
}
