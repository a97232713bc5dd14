package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallDecodesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"value": body["user"] == "alice"})
	}))
	defer srv.Close()

	var out map[string]bool
	if err := call(srv.URL, "/v1/user/contains", map[string]string{"user": "alice"}, &out); err != nil {
		t.Fatal(err)
	}
	if !out["value"] {
		t.Fatal("expected value true for alice")
	}
}

func TestCallReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := call(srv.URL, "/v1/user/add", map[string]string{"user": "alice"}, nil); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"user", "group", "entity", "check"} {
		if !names[want] {
			t.Fatalf("expected root command to include %q, got %v", want, names)
		}
	}
}
