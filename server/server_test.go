package server

import (
	"encoding/json"
	"go/types"
	"net/http"
	"net/http/httptest"
	"testing"

	"goji.io"
	"goji.io/pat"
)

func TestHumanPayloadEncodings(t *testing.T) {
	cases := []struct {
		hp   HumanPayload
		want string
	}{
		{HumanPayload{T: types.Float64, Float: 1.5}, `{"f64":1.5}`},
		{HumanPayload{T: types.Int, Int: 7}, `{"int":7}`},
		{HumanPayload{T: types.String, String: "ok"}, `{"str":"ok"}`},
		{HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		tc.hp.EncodeAndRespond(rec, req)
		got := rec.Body.String()
		if got != tc.want+"\n" {
			t.Errorf("kind %v encoded %q, want %q", tc.hp.T, got, tc.want)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
	}
}

func TestHumanPayloadUnknownKind(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	hp := HumanPayload{T: types.Complex128}
	hp.EncodeAndRespond(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status %d, want 500", rec.Code)
	}
}

func TestRouteTableBindServesEndpointList(t *testing.T) {
	rt := RouteTable{
		pat.Get("/a"):  func(w http.ResponseWriter, r *http.Request) {},
		pat.Post("/b"): func(w http.ResponseWriter, r *http.Request) {},
	}
	mux := goji.NewMux()
	rt.Bind(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/endpoints")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var eps []string
	err = json.NewDecoder(resp.Body).Decode(&eps)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 2 {
		t.Errorf("got %d endpoints, want 2: %v", len(eps), eps)
	}
}
