// Package mxo provides remote control of Rohde & Schwarz MXO-series
// oscilloscopes and their built-in arbitrary waveform generator.  The
// methods speak SCPI over a pooled connection, which may be TCP or
// USBTMC.
package mxo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oscilab/scopehal/arb"
	"github.com/oscilab/scopehal/comm"
	"github.com/oscilab/scopehal/oscilloscope"
	"github.com/oscilab/scopehal/scpi"
	"github.com/oscilab/scopehal/usbtmc"

	"github.com/tarm/serial"
)

// acquireTimeout is how long a single-shot acquisition may run before
// the driver gives up waiting on *OPC?.
const acquireTimeout = 30 * time.Second

// Bus is the instrument command surface the driver needs.  *scpi.SCPI
// satisfies it; tests substitute a scripted fake.
type Bus interface {
	Write(cmds ...string) error
	ReadString(cmds ...string) (string, error)
	ReadFloat(cmds ...string) (float64, error)
	ReadInt(cmds ...string) (int, error)
	ReadBinaryBlock(cmd string) ([]byte, error)
	WriteBlock(prefix string, payload []byte) error
	WriteOPC(waitUpTo time.Duration, cmds ...string) error
}

// Scope is an MXO-series oscilloscope.
type Scope struct {
	Bus
}

// NewScope creates a Scope speaking SCPI over TCP.  addr is host:port,
// typically port 5025.
func NewScope(addr string) *Scope {
	maker := comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	pool := comm.NewPool(1, time.Minute, maker)
	return &Scope{Bus: &scpi.SCPI{Pool: pool, Handshaking: true}}
}

// NewScopeSerial creates a Scope speaking SCPI over RS232, for bench
// setups without a network drop.  Commands are CR/LF terminated.
func NewScopeSerial(device string, baud int) *Scope {
	conf := &serial.Config{Name: device, Baud: baud, ReadTimeout: 10 * time.Second}
	pool := comm.NewPool(1, time.Minute, comm.SerialConnMaker(conf))
	return &Scope{Bus: &scpi.SCPI{Pool: pool, Handshaking: true}}
}

// NewScopeUSB creates a Scope speaking SCPI over USBTMC.  Pass a zero
// ID to use the first MXO44 found.
func NewScopeUSB(id usbtmc.ID) *Scope {
	if id == (usbtmc.ID{}) {
		id = usbtmc.MXO44
	}
	pool := comm.NewPool(1, time.Minute, usbtmc.Maker(id))
	return &Scope{Bus: &scpi.SCPI{Pool: pool, Handshaking: true}}
}

// ID returns the identification string of the instrument.
func (s *Scope) ID() (string, error) {
	return s.ReadString("*IDN?")
}

// Reset restores the instrument to its default state and waits for it
// to settle.
func (s *Scope) Reset() error {
	return s.WriteOPC(acquireTimeout, "*RST")
}

// ConfigureChannel applies settings to analog channel ch (1..4).
func (s *Scope) ConfigureChannel(ch int, set ChannelSettings) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := set.validate(); err != nil {
		return err
	}
	state := "OFF"
	if set.Enabled {
		state = "ON"
	}
	cmds := []string{
		fmt.Sprintf("CHANnel%d:STATe %s", ch, state),
		fmt.Sprintf("CHANnel%d:COUPling %s", ch, set.Coupling.scpi()),
		fmt.Sprintf("CHANnel%d:RANGe %s", ch, ftoa(set.RangeVolts)),
		fmt.Sprintf("CHANnel%d:OFFSet %s", ch, ftoa(set.OffsetVolts)),
	}
	return s.writeEach(cmds)
}

// ConfigureTrigger applies edge trigger settings.
func (s *Scope) ConfigureTrigger(set TriggerSettings) error {
	if err := set.validate(); err != nil {
		return err
	}
	cmds := []string{
		fmt.Sprintf("TRIGger:MODE %s", set.Mode.scpi()),
		fmt.Sprintf("TRIGger:EVENt1:SOURce C%d", set.Source),
		"TRIGger:EVENt1:TYPE EDGE",
		fmt.Sprintf("TRIGger:EVENt1:EDGE:SLOPe %s", set.Slope.scpi()),
		fmt.Sprintf("TRIGger:EVENt1:LEVel%d %s", set.Source, ftoa(set.LevelVolts)),
	}
	return s.writeEach(cmds)
}

// ConfigureTimebase applies horizontal settings.
func (s *Scope) ConfigureTimebase(set TimebaseSettings) error {
	if err := set.validate(); err != nil {
		return err
	}
	cmds := []string{
		fmt.Sprintf("TIMebase:SCALe %s", ftoa(set.ScaleSecondsPerDiv)),
		fmt.Sprintf("TIMebase:HORizontal:POSition %s", ftoa(set.PositionSeconds)),
	}
	return s.writeEach(cmds)
}

// ConfigureAcquisition applies record length, sample rate, and the
// binary transfer format used by CaptureWaveform.
func (s *Scope) ConfigureAcquisition(set AcquisitionSettings) error {
	if err := set.validate(); err != nil {
		return err
	}
	cmds := []string{
		"ACQuire:POINts:MODE MANual",
		fmt.Sprintf("ACQuire:POINts %d", set.Points),
		fmt.Sprintf("ACQuire:SRATe %s", ftoa(set.SampleRateHz)),
		fmt.Sprintf("ACQuire:TYPE %s", set.Type.scpi()),
	}
	if set.Type == Average {
		cmds = append(cmds, fmt.Sprintf("ACQuire:AVERage:COUNt %d", set.Averages))
	}
	return s.writeEach(cmds)
}

// ConfigureGenerator applies function generator settings and switches
// the output on or off.
func (s *Scope) ConfigureGenerator(set GeneratorSettings) error {
	if err := set.validate(); err != nil {
		return err
	}
	cmds := []string{
		fmt.Sprintf("WGENerator1:FUNCtion %s", set.Function.scpi()),
		fmt.Sprintf("WGENerator1:VOLTage:VPP %s", ftoa(set.AmplitudeVpp)),
		fmt.Sprintf("WGENerator1:VOLTage:OFFSet %s", ftoa(set.OffsetVolts)),
	}
	if set.Function != DCLevel {
		cmds = append(cmds, fmt.Sprintf("WGENerator1:FREQuency %s", ftoa(set.FrequencyHz)))
	}
	switch set.Function {
	case Square:
		cmds = append(cmds, fmt.Sprintf("WGENerator1:FUNCtion:SQUare:DCYCle %s", ftoa(set.DutyCyclePct)))
	case Ramp:
		cmds = append(cmds, fmt.Sprintf("WGENerator1:FUNCtion:RAMP:SYMMetry %s", ftoa(set.SymmetryPct)))
	case Pulse:
		cmds = append(cmds, fmt.Sprintf("WGENerator1:FUNCtion:PULSe:WIDTh %s", ftoa(set.WidthSeconds)))
	}
	state := "OFF"
	if set.Enabled {
		state = "ON"
	}
	cmds = append(cmds, fmt.Sprintf("WGENerator1:ENABle %s", state))
	return s.writeEach(cmds)
}

// EnableGenerator turns the generator output on or off without touching
// the rest of its configuration.
func (s *Scope) EnableGenerator(on bool) error {
	state := "OFF"
	if on {
		state = "ON"
	}
	return s.Write(fmt.Sprintf("WGENerator1:ENABle %s", state))
}

// CaptureWaveform runs a single acquisition on channel ch and returns
// the scaled waveform.  The transfer uses 32-bit floats, little endian.
func (s *Scope) CaptureWaveform(ch int) (oscilloscope.Waveform, error) {
	var wav oscilloscope.Waveform
	if err := checkChannel(ch); err != nil {
		return wav, err
	}
	err := s.Write("SYSTem:DISPlay:UPDate ON")
	if err != nil {
		return wav, err
	}
	err = s.WriteOPC(acquireTimeout, "RUNSingle")
	if err != nil {
		return wav, err
	}
	points, err := s.ReadInt("ACQuire:POINts?")
	if err != nil {
		return wav, err
	}
	err = s.writeEach([]string{"FORMat:DATA REAL,32", "FORMat:BORDer LSBFirst"})
	if err != nil {
		return wav, err
	}
	raw, err := s.ReadBinaryBlock(fmt.Sprintf("CHANnel%d:DATA?", ch))
	if err != nil {
		return wav, err
	}
	tpd, err := s.ReadFloat("TIMebase:SCALe?")
	if err != nil {
		return wav, err
	}
	rng, err := s.ReadFloat(fmt.Sprintf("CHANnel%d:RANGe?", ch))
	if err != nil {
		return wav, err
	}
	voff, err := s.ReadFloat(fmt.Sprintf("CHANnel%d:OFFSet?", ch))
	if err != nil {
		return wav, err
	}
	hoff, err := s.ReadFloat("TIMebase:HORizontal:POSition?")
	if err != nil {
		return wav, err
	}
	meta := oscilloscope.AcquisitionMetadata{
		TimePerDiv:       tpd,
		Points:           points,
		HorizontalOffset: hoff,
		VoltsPerDiv:      rng / oscilloscope.DivisionsVisible,
		VerticalOffset:   voff,
		ByteOrder:        oscilloscope.LSBFirst,
		Format:           oscilloscope.Float32,
	}
	return oscilloscope.Decode(meta, raw)
}

// SaveWaveform captures channel ch and writes it to path as CSV.
func (s *Scope) SaveWaveform(ch int, path string) error {
	wav, err := s.CaptureWaveform(ch)
	if err != nil {
		return err
	}
	return wav.WriteCSV(path)
}

// LoadArbitrary uploads an arbitrary waveform to the instrument's disk
// and configures the generator to play it.  The generator output is
// left disabled; call EnableGenerator or ConfigureGenerator to start it.
func (s *Scope) LoadArbitrary(spec arb.Spec, set ArbitrarySettings) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	rate := set.SampleRateHz
	if rate == 0 {
		var err error
		rate, err = spec.Rate()
		if err != nil {
			return err
		}
	}
	path := set.InstrumentPath
	if path == "" {
		path = DefaultInstrumentPath
	}
	text, err := arb.Encode(arb.Spec{SampleRate: rate, Values: spec.Values}, arb.RateHeader)
	if err != nil {
		return err
	}
	prefix := fmt.Sprintf("MMEMory:DATA '%s',", path)
	err = s.WriteBlock(prefix, []byte(text))
	if err != nil {
		return err
	}
	cmds := []string{
		"WGENerator1:FUNCtion ARBitrary",
		fmt.Sprintf("WGENerator1:ARBGen:NAME '%s'", path),
		"WGENerator1:ARBGen:OPEN",
		fmt.Sprintf("WGENerator1:ARBGen:SRATe %s", ftoa(rate)),
		fmt.Sprintf("WGENerator1:ARBGen:RUNMode %s", set.RunMode.scpi()),
	}
	return s.writeEach(cmds)
}

// FetchSettings reads back the live channel configuration, for the HTTP
// layer's GET endpoints.
func (s *Scope) FetchSettings(ch int) (ChannelSettings, error) {
	var set ChannelSettings
	if err := checkChannel(ch); err != nil {
		return set, err
	}
	state, err := s.ReadString(fmt.Sprintf("CHANnel%d:STATe?", ch))
	if err != nil {
		return set, err
	}
	set.Enabled = state == "1" || strings.EqualFold(state, "ON")
	coup, err := s.ReadString(fmt.Sprintf("CHANnel%d:COUPling?", ch))
	if err != nil {
		return set, err
	}
	switch {
	case strings.HasPrefix(coup, "AC"):
		set.Coupling = AC
	case strings.HasPrefix(coup, "GND"):
		set.Coupling = GND
	default:
		set.Coupling = DC
	}
	set.RangeVolts, err = s.ReadFloat(fmt.Sprintf("CHANnel%d:RANGe?", ch))
	if err != nil {
		return set, err
	}
	set.OffsetVolts, err = s.ReadFloat(fmt.Sprintf("CHANnel%d:OFFSet?", ch))
	return set, err
}

func (s *Scope) writeEach(cmds []string) error {
	for _, cmd := range cmds {
		if err := s.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'G', -1, 64)
}
