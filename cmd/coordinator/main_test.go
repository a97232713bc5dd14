package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dreamware/authzd/internal/coordinator"
	"github.com/dreamware/authzd/internal/domain"
	"github.com/dreamware/authzd/internal/metrics"
	"github.com/dreamware/authzd/internal/router"
	"github.com/dreamware/authzd/internal/shardclient"
	"github.com/dreamware/authzd/internal/shardconfig"
	"github.com/dreamware/authzd/internal/shardmgr"
)

const minInt32 = -1 << 31

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	fake := shardclient.NewFake("only-shard")

	var segments []shardconfig.Segment
	for _, class := range []domain.ElementClass{domain.User, domain.Group, domain.GroupToGroupMapping} {
		for _, kind := range []domain.OperationKind{domain.Event, domain.Query} {
			segments = append(segments, shardconfig.Segment{
				Class: class, Kind: kind, HashRangeStart: minInt32,
				Endpoints: []shardconfig.EndpointDescriptor{{Endpoint: "fake://only", Description: "only-shard"}},
			})
		}
	}
	set, err := shardconfig.New(segments)
	if err != nil {
		t.Fatal(err)
	}

	mgr := shardmgr.NewManager(set, func(endpoint, description string) shardclient.Client { return fake })
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	log := zerolog.New(io.Discard)
	coord := coordinator.New(mgr, rec, log)
	rtr := router.New(mgr, rec, log)

	mux := http.NewServeMux()
	registerHandlers(mux, coord, rtr, mgr, "", log)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
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

func TestAddUserThenContainsUserOverHTTP(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	resp := postJSON(t, srv, "/v1/user/add", map[string]string{"user": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from add, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv, "/v1/user/contains", map[string]string{"user": "alice"})
	defer resp.Body.Close()
	var out map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out["value"] {
		t.Fatal("expected alice to be present")
	}
}

func TestGroupMembershipThenContainsGroupOverHTTP(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	postJSON(t, srv, "/v1/group/add", map[string]string{"group": "admins"}).Body.Close()
	postJSON(t, srv, "/v1/user/add", map[string]string{"user": "bob"}).Body.Close()

	resp := postJSON(t, srv, "/v1/group/add-membership", map[string]string{"fromGroup": "admins", "toGroup": "superadmins"})
	resp.Body.Close()

	resp = postJSON(t, srv, "/v1/group/contains", map[string]string{"group": "admins"})
	defer resp.Body.Close()
	var out map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out["value"] {
		t.Fatal("expected admins group to be present")
	}
}

func TestUnionLookupRoutesOverHTTP(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	postJSON(t, srv, "/v1/user/add", map[string]string{"user": "alice"}).Body.Close()
	postJSON(t, srv, "/v1/user/add", map[string]string{"user": "bob"}).Body.Close()
	postJSON(t, srv, "/v1/group/add", map[string]string{"group": "engineers"}).Body.Close()
	postJSON(t, srv, "/v1/user/add-to-group", map[string]string{"user": "alice", "group": "engineers"}).Body.Close()

	resp := postJSON(t, srv, "/v1/user/list", map[string]string{})
	defer resp.Body.Close()
	var users map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, u := range users["values"] {
		seen[u] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Fatalf("expected alice and bob from /v1/user/list, got %v", users["values"])
	}

	resp = postJSON(t, srv, "/v1/group/list", map[string]string{})
	defer resp.Body.Close()
	var groups map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		t.Fatal(err)
	}
	if len(groups["values"]) != 1 || groups["values"][0] != "engineers" {
		t.Fatalf("expected [engineers] from /v1/group/list, got %v", groups["values"])
	}

	resp = postJSON(t, srv, "/v1/group/users", map[string][]string{"groups": {"engineers"}})
	defer resp.Body.Close()
	var mapped map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&mapped); err != nil {
		t.Fatal(err)
	}
	if len(mapped["values"]) != 1 || mapped["values"][0] != "alice" {
		t.Fatalf("expected [alice] from /v1/group/users, got %v", mapped["values"])
	}
}

func TestRefreshConfigWithoutPathFails(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/refresh-config", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("expected refresh to fail without a configured shard-config path")
	}
}
