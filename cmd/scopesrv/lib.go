package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/oscilab/scopehal/generichttp/tmc"
	"github.com/oscilab/scopehal/mxo"
	"github.com/oscilab/scopehal/oscilloscope"
	"github.com/oscilab/scopehal/server"
	"github.com/oscilab/scopehal/server/middleware/locker"
	"github.com/oscilab/scopehal/store"
	"github.com/oscilab/scopehal/usbtmc"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"goji.io"
)

// ObjSetup holds the args for setting up one instrument node.
type ObjSetup struct {
	// Addr is the network address (host:port) for TCP nodes, or the
	// device path (/dev/ttyUSB0) for serial nodes.  Ignored for USB.
	Addr string `yaml:"Addr"`

	// Endpoint is the URL stem the node's routes are served under,
	// e.g. "bench/scope" produces /bench/scope/waveform/1 and friends
	Endpoint string `yaml:"Endpoint"`

	// Type selects the node flavor: scope, scope-usb, scope-serial,
	// or generator
	Type string `yaml:"Type"`

	// Baud applies to scope-serial nodes; zero means 115200
	Baud int `yaml:"Baud"`
}

// DataSetup controls waveform archiving.
type DataSetup struct {
	// Dir is where captured waveforms are written as CSV.  Empty
	// disables archiving.
	Dir string `yaml:"Dir"`

	// Index is the path of the sqlite capture index.  Empty disables
	// indexing.
	Index string `yaml:"Index"`
}

// Config holds the server initialization parameters, populated from
// the YAML config file.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr"`

	Data DataSetup `yaml:"Data"`

	// Nodes is the list of instruments to set up
	Nodes []ObjSetup `yaml:"Nodes"`
}

// sanitizeEndpoint turns "bench/scope" into "/bench/scope".
func sanitizeEndpoint(s string) string {
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return strings.TrimSuffix(s, "/")
}

// archiver returns a capture hook that writes each waveform to dir
// and records it in idx.  Either may be disabled by its zero value.
func archiver(idx *store.Index, dir string) func(int, oscilloscope.Waveform) {
	return func(ch int, wav oscilloscope.Waveform) {
		if dir == "" {
			return
		}
		fn := fmt.Sprintf("ch%d-%s.csv", ch, time.Now().UTC().Format("20060102T150405.000"))
		path := filepath.Join(dir, fn)
		err := wav.WriteCSV(path)
		if err != nil {
			log.Println("archiving waveform:", err)
			return
		}
		if idx == nil {
			return
		}
		_, err = idx.Record(store.Capture{
			Channel: ch,
			Points:  len(wav.Samples),
			DT:      wav.Meta.TimeStep(),
			Path:    path,
		})
		if err != nil {
			log.Println("indexing waveform:", err)
		}
	}
}

// BuildMux constructs the root router from the config, one submux per
// node, each with its own lock.  A special route, /endpoints, returns
// the routes of every node as JSON.
func BuildMux(c Config) (chi.Router, error) {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	var idx *store.Index
	if c.Data.Index != "" {
		var err error
		idx, err = store.Open(c.Data.Index)
		if err != nil {
			return nil, err
		}
	}
	hook := archiver(idx, c.Data.Dir)

	for _, node := range c.Nodes {
		var httper server.HTTPer
		typ := strings.ToLower(node.Type)
		switch typ {
		case "scope", "mxo", "mxo44":
			h := tmc.NewHTTPOscilloscope(mxo.NewScope(node.Addr))
			h.CaptureHook = hook
			httper = h

		case "scope-usb":
			h := tmc.NewHTTPOscilloscope(mxo.NewScopeUSB(usbtmc.ID{}))
			h.CaptureHook = hook
			httper = h

		case "scope-serial":
			baud := node.Baud
			if baud == 0 {
				baud = 115200
			}
			h := tmc.NewHTTPOscilloscope(mxo.NewScopeSerial(node.Addr, baud))
			h.CaptureHook = hook
			httper = h

		case "generator", "wgen":
			gen := mxo.NewScope(node.Addr).Generator()
			httper = tmc.NewHTTPFunctionGenerator(gen)

		default:
			return nil, fmt.Errorf("node type %q not understood", node.Type)
		}

		hndl := sanitizeEndpoint(node.Endpoint)
		supergraph[hndl] = httper.RT().Endpoints()

		lock := locker.New()
		locker.Inject(httper, lock)

		mux := goji.NewMux()
		mux.Use(lock.Check)
		httper.RT().Bind(mux)
		root.Mount(hndl, http.StripPrefix(hndl, mux))
	}

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root, nil
}
