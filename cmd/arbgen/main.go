// arbgen converts source data (images, FITS frames, or existing
// waveform files) into arbitrary waveform files for a scope's
// function generator, and validates waveform files.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oscilab/scopehal/arb"
	"github.com/oscilab/scopehal/mxo"
	"github.com/oscilab/scopehal/synth"

	"github.com/theckman/yacspin"
)

var (
	in    = flag.String("in", "", "input file: .fits, .png/.jpg/.gif, or a waveform .csv")
	out   = flag.String("out", "", "output waveform file")
	form  = flag.String("form", "rate", "output form: rate, pairs, or volts")
	rate  = flag.Float64("rate", 0, "sample rate in Hz; 0 derives from the input")
	lo    = flag.Float64("lo", -1, "low output voltage")
	hi    = flag.Float64("hi", 1, "high output voltage")
	count = flag.Int("count", 0, "resample the output to exactly this many points; 0 keeps the natural length")

	scan     = flag.String("scan", "row", "scan order for 2-D sources: row or col")
	agg      = flag.String("agg", "concat", "aggregation for 2-D sources: concat or mean")
	binarize = flag.Bool("binarize", false, "threshold the source before synthesis")
	thresh   = flag.Float64("threshold", synth.DefaultThreshold, "binarize threshold as a fraction of the source range")

	pulse = flag.Bool("pulse", false, "expand each pixel into a timed pulse train")
	pixel = flag.Float64("pixel", 1e-5, "pulse on-time in seconds")
	gap   = flag.Float64("gap", 1e-5, "gap between pulses in seconds")
	dt    = flag.Float64("dt", 1e-7, "pulse train sample spacing in seconds")

	check  = flag.String("check", "", "decode and summarize a waveform file, then exit")
	upload = flag.String("upload", "", "scope address (host:port) to load the result into")
)

func spin(msg string) (*yacspin.Spinner, error) {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " " + msg,
		SuffixAutoColon: true,
		StopCharacter:   "done",
	}
	s, err := yacspin.New(cfg)
	if err != nil {
		return nil, err
	}
	return s, s.Start()
}

func parseForm(s string) (arb.Form, error) {
	switch strings.ToLower(s) {
	case "rate":
		return arb.RateHeader, nil
	case "pairs":
		return arb.TimeVoltagePairs, nil
	case "volts", "voltage":
		return arb.VoltageOnly, nil
	}
	return 0, fmt.Errorf("unknown form %q", s)
}

func loadSource(path string) (synth.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return synth.Source{}, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		return synth.ReadFITS(f)
	default:
		return synth.ReadImage(f)
	}
}

// synthesize builds the waveform spec from the input file per the flags.
func synthesize(path string) (arb.Spec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".csv" || ext == ".arb" || ext == ".txt" {
		// already a waveform; decode for form/rate conversion
		spec, err := arb.DecodeFile(path)
		if err != nil {
			return spec, err
		}
		if *rate != 0 {
			spec = arb.Spec{SampleRate: *rate, Values: spec.Values}
		}
		return spec, nil
	}

	src, err := loadSource(path)
	if err != nil {
		return arb.Spec{}, err
	}
	if *binarize {
		src = synth.Binarize(src, *thresh)
	}

	pol := synth.Policy{
		TargetCount: *count,
		VoltsLo:     *lo,
		VoltsHi:     *hi,
		SampleRate:  *rate,
	}
	if strings.HasPrefix(strings.ToLower(*scan), "col") {
		pol.Scan = synth.ColMajor
	}
	if strings.HasPrefix(strings.ToLower(*agg), "mean") {
		pol.Aggregate = synth.Mean
	}
	if *pulse {
		pol.Pulse = &synth.PulseShape{PixelTime: *pixel, GapTime: *gap, DT: *dt}
	}
	return synth.Synthesize(src, pol)
}

func summarize(path string) error {
	spec, err := arb.DecodeFile(path)
	if err != nil {
		return err
	}
	rate, err := spec.Rate()
	if err != nil {
		return err
	}
	min, max := spec.Values[0], spec.Values[0]
	for _, v := range spec.Values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	fmt.Printf("%s: %d points, %G Hz, %G s, voltage [%G, %G]\n",
		path, len(spec.Values), rate,
		float64(len(spec.Values))/rate, min, max)
	return nil
}

func main() {
	flag.Parse()

	if *check != "" {
		if err := summarize(*check); err != nil {
			log.Fatal(err)
		}
		return
	}
	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := parseForm(*form)
	if err != nil {
		log.Fatal(err)
	}

	sp, err := spin("synthesizing")
	if err != nil {
		log.Fatal(err)
	}
	spec, err := synthesize(*in)
	if err != nil {
		sp.StopFail()
		log.Fatal(err)
	}
	sp.Stop()

	if *out != "" {
		if f == arb.TimeVoltagePairs && spec.Times == nil {
			// pairs need explicit times; lay them out from the rate
			r, err := spec.Rate()
			if err != nil {
				log.Fatal(err)
			}
			times := make([]float64, len(spec.Values))
			for i := range times {
				times[i] = float64(i) / r
			}
			spec = arb.Spec{Values: spec.Values, Times: times}
		}
		err = arb.WriteFile(*out, spec, f)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %d points to %s\n", len(spec.Values), *out)
	}

	if *upload != "" {
		sp, err = spin("uploading to " + *upload)
		if err != nil {
			log.Fatal(err)
		}
		scope := mxo.NewScope(*upload)
		err = scope.LoadArbitrary(spec, mxo.ArbitrarySettings{})
		if err != nil {
			sp.StopFail()
			log.Fatal(err)
		}
		sp.Stop()
		fmt.Println("waveform loaded; enable the generator output to play it")
	}

	if *out == "" && *upload == "" {
		log.Fatal("nothing to do: pass -out and/or -upload")
	}
}
