// Package tmc provides an HTTP interface to test and measurement
// devices: oscilloscopes and function generators.
package tmc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/oscilab/scopehal/arb"
	"github.com/oscilab/scopehal/generichttp"
	"github.com/oscilab/scopehal/mxo"
	"github.com/oscilab/scopehal/oscilloscope"
	"github.com/oscilab/scopehal/server"

	"goji.io/pat"
)

// FunctionGenerator describes an interface to a function generator
type FunctionGenerator interface {
	// SetFunction sets the function
	SetFunction(string) error

	// GetFunction returns the current function type used
	GetFunction() (string, error)

	// SetFrequency configures the frequency of the output waveform
	SetFrequency(float64) error

	// GetFrequency gets the frequency of the output waveform
	GetFrequency() (float64, error)

	// SetVoltage configures the voltage of the output waveform
	SetVoltage(float64) error

	// GetVoltage retrieves the voltage of the output waveform
	GetVoltage() (float64, error)

	// SetOffset configures the offset of the output waveform
	SetOffset(float64) error

	// GetOffset retrieves the offset of the output waveform
	GetOffset() (float64, error)

	// EnableOutput begins outputting the signal on the output connector
	EnableOutput() error

	// DisableOutput ceases output on the output connector
	DisableOutput() error

	// GetOutput queries if the generator output is active
	GetOutput() (bool, error)
}

// InjectFunctionGenerator adds HTTP routes for a function generator
// to a route table
func InjectFunctionGenerator(fg FunctionGenerator, rt server.RouteTable) {
	rt[pat.Get("/function")] = generichttp.GetString(fg.GetFunction)
	rt[pat.Post("/function")] = generichttp.SetString(fg.SetFunction)
	rt[pat.Get("/frequency")] = generichttp.GetFloat(fg.GetFrequency)
	rt[pat.Post("/frequency")] = generichttp.SetFloat(fg.SetFrequency)
	rt[pat.Get("/voltage")] = generichttp.GetFloat(fg.GetVoltage)
	rt[pat.Post("/voltage")] = generichttp.SetFloat(fg.SetVoltage)
	rt[pat.Get("/offset")] = generichttp.GetFloat(fg.GetOffset)
	rt[pat.Post("/offset")] = generichttp.SetFloat(fg.SetOffset)
	rt[pat.Get("/output")] = generichttp.GetBool(fg.GetOutput)
	rt[pat.Post("/output")] = generichttp.SetBool(fg.EnableOutput, fg.DisableOutput)
}

// HTTPFunctionGenerator wraps a function generator in a standalone
// route table, for nodes that expose only the generator
type HTTPFunctionGenerator struct {
	routeTable server.RouteTable
}

// NewHTTPFunctionGenerator wraps fg with routes for function,
// frequency, voltage, offset, and output control
func NewHTTPFunctionGenerator(fg FunctionGenerator) *HTTPFunctionGenerator {
	rt := server.RouteTable{}
	InjectFunctionGenerator(fg, rt)
	return &HTTPFunctionGenerator{routeTable: rt}
}

// RT yields the route table for binding
func (h *HTTPFunctionGenerator) RT() server.RouteTable {
	return h.routeTable
}

// ChannelConfig is the JSON body for channel configuration
type ChannelConfig struct {
	Channel  int     `json:"channel"`
	Enabled  bool    `json:"enabled"`
	Coupling string  `json:"coupling"`
	Range    float64 `json:"range"`
	Offset   float64 `json:"offset"`
}

// TriggerConfig is the JSON body for trigger configuration
type TriggerConfig struct {
	Mode   string  `json:"mode"`
	Source int     `json:"source"`
	Level  float64 `json:"level"`
	Slope  string  `json:"slope"`
}

// TimebaseConfig is the JSON body for horizontal configuration
type TimebaseConfig struct {
	Scale    float64 `json:"scale"`
	Position float64 `json:"position"`
}

// AcquisitionConfig is the JSON body for acquisition configuration
type AcquisitionConfig struct {
	Points     int     `json:"points"`
	SampleRate float64 `json:"sampleRate"`
	Type       string  `json:"type"`
	Averages   int     `json:"averages"`
}

// ArbitraryUpload is the JSON body for loading an arbitrary waveform
type ArbitraryUpload struct {
	Values []float64 `json:"values"`

	// Rate in Hz; zero means derive or default
	Rate float64 `json:"rate"`

	// RunOnce plays the waveform single-shot instead of looping
	RunOnce bool `json:"runOnce"`

	// Path on the instrument's disk; empty uses the default
	Path string `json:"path"`
}

// HTTPOscilloscope wraps a scope in an HTTP route table
type HTTPOscilloscope struct {
	scope *mxo.Scope

	// CaptureHook is called after each successful waveform capture
	// over HTTP.  Used to archive and index captures; nil is skipped.
	CaptureHook func(ch int, wav oscilloscope.Waveform)

	routeTable server.RouteTable
}

// NewHTTPOscilloscope wraps s with routes for channel, trigger,
// timebase, acquisition, and generator control plus waveform capture
func NewHTTPOscilloscope(s *mxo.Scope) *HTTPOscilloscope {
	h := &HTTPOscilloscope{scope: s}
	rt := server.RouteTable{
		pat.Get("/id"):           generichttp.GetString(s.ID),
		pat.Post("/channel"):     h.setChannel,
		pat.Get("/channel/:ch"):  h.getChannel,
		pat.Post("/trigger"):     h.setTrigger,
		pat.Post("/timebase"):    h.setTimebase,
		pat.Post("/acquisition"): h.setAcquisition,
		pat.Get("/waveform/:ch"): h.acquireWaveform,
		pat.Post("/arbitrary"):   h.loadArbitrary,
	}
	InjectFunctionGenerator(s.Generator(), rt)
	h.routeTable = rt
	return h
}

// RT yields the route table for binding
func (h *HTTPOscilloscope) RT() server.RouteTable {
	return h.routeTable
}

func (h *HTTPOscilloscope) setChannel(w http.ResponseWriter, r *http.Request) {
	cfg := ChannelConfig{}
	err := json.NewDecoder(r.Body).Decode(&cfg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	coup, err := parseCoupling(cfg.Coupling)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.scope.ConfigureChannel(cfg.Channel, mxo.ChannelSettings{
		Enabled:     cfg.Enabled,
		Coupling:    coup,
		RangeVolts:  cfg.Range,
		OffsetVolts: cfg.Offset,
	})
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPOscilloscope) getChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := channelParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	set, err := h.scope.FetchSettings(ch)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	cfg := ChannelConfig{
		Channel:  ch,
		Enabled:  set.Enabled,
		Coupling: couplingName(set.Coupling),
		Range:    set.RangeVolts,
		Offset:   set.OffsetVolts,
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *HTTPOscilloscope) setTrigger(w http.ResponseWriter, r *http.Request) {
	cfg := TriggerConfig{}
	err := json.NewDecoder(r.Body).Decode(&cfg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mode, err := parseTriggerMode(cfg.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slope := mxo.Positive
	if cfg.Slope == "negative" || cfg.Slope == "falling" {
		slope = mxo.Negative
	}
	err = h.scope.ConfigureTrigger(mxo.TriggerSettings{
		Mode:       mode,
		Source:     cfg.Source,
		LevelVolts: cfg.Level,
		Slope:      slope,
	})
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPOscilloscope) setTimebase(w http.ResponseWriter, r *http.Request) {
	cfg := TimebaseConfig{}
	err := json.NewDecoder(r.Body).Decode(&cfg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.scope.ConfigureTimebase(mxo.TimebaseSettings{
		ScaleSecondsPerDiv: cfg.Scale,
		PositionSeconds:    cfg.Position,
	})
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPOscilloscope) setAcquisition(w http.ResponseWriter, r *http.Request) {
	cfg := AcquisitionConfig{}
	err := json.NewDecoder(r.Body).Decode(&cfg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	typ, err := parseAcqType(cfg.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.scope.ConfigureAcquisition(mxo.AcquisitionSettings{
		Points:       cfg.Points,
		SampleRateHz: cfg.SampleRate,
		Type:         typ,
		Averages:     cfg.Averages,
	})
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// acquireWaveform streams the capture as CSV with metadata comments
func (h *HTTPOscilloscope) acquireWaveform(w http.ResponseWriter, r *http.Request) {
	ch, err := channelParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wav, err := h.scope.CaptureWaveform(ch)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	if h.CaptureHook != nil {
		h.CaptureHook(ch, wav)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=waveform.csv")
	err = wav.EncodeCSV(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *HTTPOscilloscope) loadArbitrary(w http.ResponseWriter, r *http.Request) {
	up := ArbitraryUpload{}
	err := json.NewDecoder(r.Body).Decode(&up)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rate := up.Rate
	if rate == 0 {
		rate = arb.DefaultSampleRate
	}
	run := mxo.Repetitive
	if up.RunOnce {
		run = mxo.SingleShot
	}
	spec := arb.Spec{SampleRate: rate, Values: up.Values}
	err = h.scope.LoadArbitrary(spec, mxo.ArbitrarySettings{
		InstrumentPath: up.Path,
		RunMode:        run,
	})
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func channelParam(r *http.Request) (int, error) {
	return strconv.Atoi(pat.Param(r, "ch"))
}

func parseCoupling(s string) (mxo.Coupling, error) {
	switch s {
	case "", "dc":
		return mxo.DC, nil
	case "ac":
		return mxo.AC, nil
	case "gnd", "ground":
		return mxo.GND, nil
	}
	return 0, &badEnum{field: "coupling", value: s}
}

func couplingName(c mxo.Coupling) string {
	switch c {
	case mxo.AC:
		return "ac"
	case mxo.GND:
		return "gnd"
	default:
		return "dc"
	}
}

func parseTriggerMode(s string) (mxo.TriggerMode, error) {
	switch s {
	case "", "auto":
		return mxo.Auto, nil
	case "normal":
		return mxo.Normal, nil
	case "single":
		return mxo.Single, nil
	}
	return 0, &badEnum{field: "mode", value: s}
}

func parseAcqType(s string) (mxo.AcqType, error) {
	switch s {
	case "", "normal":
		return mxo.NormalAcq, nil
	case "average":
		return mxo.Average, nil
	case "peak":
		return mxo.Peak, nil
	case "highres":
		return mxo.HighRes, nil
	}
	return 0, &badEnum{field: "type", value: s}
}

type badEnum struct {
	field, value string
}

func (e *badEnum) Error() string {
	return "unknown " + e.field + " " + strconv.Quote(e.value)
}
