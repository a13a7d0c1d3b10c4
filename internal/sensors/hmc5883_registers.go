// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "fmt"

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is the metadata for one device register.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterValue pairs register metadata with a value read from the device.
type RegisterValue struct {
	RegisterInfo
	Value byte `json:"value"`
}

func (v RegisterValue) String() string {
	return fmt.Sprintf("0x%02X %-8s = 0x%02X  (%s)", v.Address, v.Name, v.Value, v.Description)
}

// HMC5883RegisterMap returns metadata for the registers the door sensor touches.
func HMC5883RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: RegCRA, Name: "CRA", Description: "Configuration Register A", Access: "RW", Default: "0x10",
			BitFields: []BitField{
				{Bits: "6:5", Name: "MA", Description: "Samples averaged per output", Values: "0=1, 1=2, 2=4, 3=8"},
				{Bits: "4:2", Name: "DO", Description: "Output data rate", Values: "0=0.75Hz, 1=1.5Hz, 2=3Hz, 3=7.5Hz, 4=15Hz, 5=30Hz, 6=75Hz"},
				{Bits: "1:0", Name: "MS", Description: "Measurement bias", Values: "0=Normal, 1=Positive, 2=Negative"},
			}},
		{Address: RegCRB, Name: "CRB", Description: "Configuration Register B", Access: "RW", Default: "0x20",
			BitFields: []BitField{
				{Bits: "7:5", Name: "GN", Description: "Gain", Values: "0=±0.88Ga ... 5=±4.7Ga ... 7=±8.1Ga"},
			}},
		{Address: RegMode, Name: "MODE", Description: "Mode Register", Access: "RW", Default: "0x01",
			BitFields: []BitField{
				{Bits: "1:0", Name: "MD", Description: "Operating mode", Values: "0=Continuous, 1=Single, 2/3=Idle"},
			}},
		{Address: 0x03, Name: "DXRA", Description: "Data Output X MSB", Access: "R"},
		{Address: 0x04, Name: "DXRB", Description: "Data Output X LSB", Access: "R"},
		{Address: 0x05, Name: "DZRA", Description: "Data Output Z MSB", Access: "R"},
		{Address: 0x06, Name: "DZRB", Description: "Data Output Z LSB", Access: "R"},
		{Address: 0x07, Name: "DYRA", Description: "Data Output Y MSB", Access: "R"},
		{Address: 0x08, Name: "DYRB", Description: "Data Output Y LSB", Access: "R"},
		{Address: RegStatus, Name: "SR", Description: "Status Register", Access: "R",
			BitFields: []BitField{
				{Bits: "1", Name: "LOCK", Description: "Data output registers locked"},
				{Bits: "0", Name: "RDY", Description: "Data ready"},
			}},
		{Address: RegIDA, Name: "IRA", Description: "Identification Register A", Access: "R", Default: "'H'"},
		{Address: RegIDA + 1, Name: "IRB", Description: "Identification Register B", Access: "R", Default: "'4'"},
		{Address: RegIDA + 2, Name: "IRC", Description: "Identification Register C", Access: "R", Default: "'3'"},
	}
}

// DumpRegisters reads every register in HMC5883RegisterMap. It stops at the
// first bus error.
func (d *HMC5883) DumpRegisters() ([]RegisterValue, error) {
	regs := HMC5883RegisterMap()
	out := make([]RegisterValue, 0, len(regs))
	for _, info := range regs {
		v, err := d.ReadRegister(info.Address)
		if err != nil {
			return out, err
		}
		out = append(out, RegisterValue{RegisterInfo: info, Value: v})
	}
	return out, nil
}
