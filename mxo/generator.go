package mxo

import (
	"fmt"
	"strings"
)

// Generator exposes the built-in waveform generator as individual
// getters and setters, the granularity the HTTP layer traffics in.
// It shares the scope's connection pool.
type Generator struct {
	Bus
}

// Generator returns a view of the scope's function generator.
func (s *Scope) Generator() *Generator {
	return &Generator{Bus: s.Bus}
}

// SetFunction sets the output shape from a mnemonic ("sinusoid",
// "square", "ramp", "pulse", "noise", "dc", "arbitrary").
func (g *Generator) SetFunction(fcn string) error {
	f, err := ParseFunction(fcn)
	if err != nil {
		return err
	}
	return g.Write(fmt.Sprintf("WGENerator1:FUNCtion %s", f.scpi()))
}

// GetFunction returns the current output shape mnemonic.
func (g *Generator) GetFunction() (string, error) {
	resp, err := g.ReadString("WGENerator1:FUNCtion?")
	if err != nil {
		return "", err
	}
	f, err := ParseFunction(resp)
	if err != nil {
		// pass the instrument's own spelling through rather than fail
		return strings.ToLower(resp), nil
	}
	return f.String(), nil
}

// SetFrequency sets the output frequency in Hz.
func (g *Generator) SetFrequency(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("mxo: frequency must be positive, got %G", hz)
	}
	return g.Write(fmt.Sprintf("WGENerator1:FREQuency %s", ftoa(hz)))
}

// GetFrequency returns the output frequency in Hz.
func (g *Generator) GetFrequency() (float64, error) {
	return g.ReadFloat("WGENerator1:FREQuency?")
}

// SetVoltage sets the peak-to-peak amplitude in volts.
func (g *Generator) SetVoltage(vpp float64) error {
	return g.Write(fmt.Sprintf("WGENerator1:VOLTage:VPP %s", ftoa(vpp)))
}

// GetVoltage returns the peak-to-peak amplitude in volts.
func (g *Generator) GetVoltage() (float64, error) {
	return g.ReadFloat("WGENerator1:VOLTage:VPP?")
}

// SetOffset sets the DC offset in volts.
func (g *Generator) SetOffset(v float64) error {
	return g.Write(fmt.Sprintf("WGENerator1:VOLTage:OFFSet %s", ftoa(v)))
}

// GetOffset returns the DC offset in volts.
func (g *Generator) GetOffset() (float64, error) {
	return g.ReadFloat("WGENerator1:VOLTage:OFFSet?")
}

// EnableOutput switches the output connector on.
func (g *Generator) EnableOutput() error {
	return g.Write("WGENerator1:ENABle ON")
}

// DisableOutput switches the output connector off.
func (g *Generator) DisableOutput() error {
	return g.Write("WGENerator1:ENABle OFF")
}

// GetOutput reports whether the output connector is on.
func (g *Generator) GetOutput() (bool, error) {
	resp, err := g.ReadString("WGENerator1:ENABle?")
	if err != nil {
		return false, err
	}
	return resp == "1" || strings.EqualFold(resp, "ON"), nil
}
