// Package server contains the HTTP plumbing shared by all device
// servers: typed JSON payloads and goji-backed route tables.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"

	"goji.io"
	"goji.io/pat"
)

// HumanPayload is a struct containing the basic types and their
// encoded values, sent as single-value JSON objects over the wire.
type HumanPayload struct {
	// T holds the type of data actually contained
	T types.BasicKind

	// Bool holds a boolean
	Bool bool

	// Int holds an int
	Int int

	// Float holds a float64
	Float float64

	// String holds a string
	String string
}

// EncodeAndRespond writes the payload to w as JSON with the
// single-value convention used by all routes: {'f64': v}, {'int': v},
// {'str': v}, or {'bool': v}.
func (hp *HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var obj interface{}
	switch hp.T {
	case types.Bool:
		obj = BoolT{Bool: hp.Bool}
	case types.Int:
		obj = IntT{Int: hp.Int}
	case types.Float64:
		obj = FloatT{F64: hp.Float}
	case types.String:
		obj = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("unknown payload kind %v", hp.T), http.StatusInternalServerError)
		return
	}
	err := json.NewEncoder(w).Encode(obj)
	if err != nil {
		fstr := fmt.Sprintf("error encoding %+v to json %q", obj, err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// FloatT is a struct with a single f64 field for JSON body exchange
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single int field for JSON body exchange
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single str field for JSON body exchange
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a struct with a single bool field for JSON body exchange
type BoolT struct {
	Bool bool `json:"bool"`
}

// RouteTable maps goji patterns to handler funcs
type RouteTable map[*pat.Pattern]http.HandlerFunc

// Endpoints returns the URL fragments in the route table
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k.String())
	}
	return routes
}

// Bind attaches each route in the table to mux
func (rt RouteTable) Bind(mux *goji.Mux) {
	for ptrn, handler := range rt {
		mux.Handle(ptrn, handler)
	}
	mux.HandleFunc(pat.Get("/endpoints"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(rt.Endpoints())
		if err != nil {
			fstr := fmt.Sprintf("error encoding endpoint list to json %q", err)
			log.Println(fstr)
			http.Error(w, fstr, http.StatusInternalServerError)
		}
	})
}

// HTTPer is an interface which allows types to yield their route tables
// for binding to a mux
type HTTPer interface {
	// RT yields the route table for the object
	RT() RouteTable
}
