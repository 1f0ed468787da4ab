// Package report defines the consistency report produced by checking a
// topology. A report lists findings (rule violations and notable gaps)
// and the bit-level layout of every frame and signal PDU.
//
// Reports are deterministic: analyzing the same system twice yields
// byte-identical JSON. Findings are ordered by severity, then entity,
// so output is stable across runs and safe to cache by content hash.
package report

import (
	"math/bits"

	"github.com/busweaver/busweaver/pkg/errors"
)

// Severity classifies a finding.
type Severity string

const (
	// SeverityError marks violations that make the topology inconsistent.
	SeverityError Severity = "error"
	// SeverityWarning marks gaps that are legal but usually unintended.
	SeverityWarning Severity = "warning"
	// SeverityInfo marks observations with no required action.
	SeverityInfo Severity = "info"
)

// rank orders severities for sorting, most severe first.
func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Finding is one analyzer observation about a single entity.
type Finding struct {
	Severity Severity    `json:"severity" bson:"severity"`
	Code     errors.Code `json:"code" bson:"code"`
	Kind     string      `json:"kind" bson:"kind"`
	Name     string      `json:"name" bson:"name"`
	Message  string      `json:"message" bson:"message"`
}

// Layout records the bit occupancy of one frame or PDU buffer.
// Coverage is the hex-encoded occupancy bitmap, one byte per buffer byte.
type Layout struct {
	Kind       string `json:"kind" bson:"kind"`
	Name       string `json:"name" bson:"name"`
	ByteLength int    `json:"byte_length" bson:"byte_length"`
	UsedBits   int    `json:"used_bits" bson:"used_bits"`
	FreeBits   int    `json:"free_bits" bson:"free_bits"`
	Coverage   string `json:"coverage" bson:"coverage"`
}

// Summary aggregates entity and finding counts.
type Summary struct {
	Clusters          int `json:"clusters" bson:"clusters"`
	Channels          int `json:"channels" bson:"channels"`
	ECUs              int `json:"ecus" bson:"ecus"`
	Frames            int `json:"frames" bson:"frames"`
	PDUs              int `json:"pdus" bson:"pdus"`
	Signals           int `json:"signals" bson:"signals"`
	FrameTriggerings  int `json:"frame_triggerings" bson:"frame_triggerings"`
	PDUTriggerings    int `json:"pdu_triggerings" bson:"pdu_triggerings"`
	SignalTriggerings int `json:"signal_triggerings" bson:"signal_triggerings"`
	Ports             int `json:"ports" bson:"ports"`

	Errors   int `json:"errors" bson:"errors"`
	Warnings int `json:"warnings" bson:"warnings"`
	Infos    int `json:"infos" bson:"infos"`
}

// Report is the result of checking one topology.
type Report struct {
	System   string    `json:"system" bson:"system"`
	Summary  Summary   `json:"summary" bson:"summary"`
	Findings []Finding `json:"findings" bson:"findings"`
	Layouts  []Layout  `json:"layouts" bson:"layouts"`
}

// HasErrors reports whether any finding has error severity.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Worst returns the most severe finding level present, or "" when the
// report is clean.
func (r *Report) Worst() Severity {
	switch {
	case r.Summary.Errors > 0:
		return SeverityError
	case r.Summary.Warnings > 0:
		return SeverityWarning
	case r.Summary.Infos > 0:
		return SeverityInfo
	default:
		return ""
	}
}

// FindingsAt returns the findings with the given severity, in report order.
func (r *Report) FindingsAt(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// usedBits counts the occupied bits of a coverage bitmap.
func usedBits(coverage []byte) int {
	n := 0
	for _, b := range coverage {
		n += bits.OnesCount8(b)
	}
	return n
}
