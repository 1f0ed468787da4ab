package report

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/busweaver/busweaver/pkg/errors"
	"github.com/busweaver/busweaver/pkg/topology"
	"github.com/busweaver/busweaver/pkg/topology/bitlayout"
)

// Analyze checks a system for consistency and returns the report.
//
// The construction operations on topology.System already reject most
// violations, so a system built through them yields a clean layout
// section. Analyze re-derives everything from the stored entities, which
// also covers systems decoded from JSON or assembled by hand: overlaps,
// dangling references and chain violations become error findings instead
// of being silently trusted.
func Analyze(sys *topology.System) *Report {
	a := &analyzer{sys: sys, report: &Report{System: sys.Name}}

	a.checkFrames()
	a.checkPDUs()
	a.checkSignals()
	a.checkTriggerings()
	a.checkECUs()
	a.checkChannels()
	a.checkTransformations()

	a.finish()
	return a.report
}

type analyzer struct {
	sys    *topology.System
	report *Report
}

func (a *analyzer) add(severity Severity, code errors.Code, kind, name, format string, args ...any) {
	a.report.Findings = append(a.report.Findings, Finding{
		Severity: severity,
		Code:     code,
		Kind:     kind,
		Name:     name,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (a *analyzer) addLayout(kind, name string, byteLength int, coverage *bitlayout.CoverageMap) {
	bytes := coverage.Bytes()
	used := usedBits(bytes)
	a.report.Layouts = append(a.report.Layouts, Layout{
		Kind:       kind,
		Name:       name,
		ByteLength: byteLength,
		UsedBits:   used,
		FreeBits:   byteLength*8 - used,
		Coverage:   hex.EncodeToString(bytes),
	})
}

// checkFrames validates every frame's PDU layout and records its coverage.
func (a *analyzer) checkFrames() {
	for _, name := range sortedKeys(a.sys.Frames) {
		frame := a.sys.Frames[name]
		coverage := bitlayout.NewCoverageMap(frame.ByteLength)

		for _, m := range frame.PDUMappings {
			pdu, ok := a.sys.PDUs[m.PDURef]
			if !ok {
				a.add(SeverityError, errors.ErrCodeNotFound, "frame", name,
					"mapping %q references unknown PDU %q", m.Name, m.PDURef)
				continue
			}
			if !coverage.Reserve(m.StartPosition, pdu.ByteLength*8, m.ByteOrder, m.UpdateBit) {
				a.add(SeverityError, errors.ErrCodeOverlap, "frame", name,
					"PDU %q overlaps other content or exceeds the %d byte frame", m.PDURef, frame.ByteLength)
			}
		}

		a.addLayout("frame", name, frame.ByteLength, coverage)

		if len(frame.PDUMappings) > 0 && len(frame.TriggeringRefs) == 0 {
			a.add(SeverityWarning, errors.ErrCodeNotConnected, "frame", name,
				"frame carries %d PDU(s) but is not triggered on any channel", len(frame.PDUMappings))
		}
	}
}

// checkPDUs validates signal layouts, group ordering and frame membership.
func (a *analyzer) checkPDUs() {
	mappedPDUs := map[string]bool{}
	for _, frame := range a.sys.Frames {
		for _, m := range frame.PDUMappings {
			mappedPDUs[m.PDURef] = true
		}
	}

	for _, name := range sortedKeys(a.sys.PDUs) {
		pdu := a.sys.PDUs[name]

		if pdu.Kind == topology.PDUKindISignal {
			a.checkSignalLayout(pdu)
		}

		if !mappedPDUs[name] && len(pdu.TriggeringRefs) == 0 {
			a.add(SeverityWarning, errors.ErrCodeNotConnected, "pdu", name,
				"PDU is not mapped into any frame and not triggered on any channel")
		}
	}
}

func (a *analyzer) checkSignalLayout(pdu *topology.PDU) {
	coverage := bitlayout.NewCoverageMap(pdu.ByteLength)
	groupMapped := map[string]bool{}
	for _, m := range pdu.SignalMappings {
		if m.GroupRef != "" && m.SignalRef == "" {
			groupMapped[m.GroupRef] = true
		}
	}

	for _, m := range pdu.SignalMappings {
		if m.SignalRef == "" {
			continue // group mappings occupy no bits
		}
		signal, ok := a.sys.Signals[m.SignalRef]
		if !ok {
			a.add(SeverityError, errors.ErrCodeNotFound, "pdu", pdu.Name,
				"mapping %q references unknown signal %q", m.Name, m.SignalRef)
			continue
		}
		if signal.GroupRef != "" && !groupMapped[signal.GroupRef] {
			a.add(SeverityError, errors.ErrCodeInvalidParameter, "pdu", pdu.Name,
				"signal %q is grouped in %q but the group is not mapped into this PDU", m.SignalRef, signal.GroupRef)
		}
		if !coverage.Reserve(m.StartPosition, signal.BitLength, m.ByteOrder, m.UpdateBit) {
			a.add(SeverityError, errors.ErrCodeOverlap, "pdu", pdu.Name,
				"signal %q overlaps other content or exceeds the %d byte PDU", m.SignalRef, pdu.ByteLength)
		}
	}

	a.addLayout("pdu", pdu.Name, pdu.ByteLength, coverage)
}

// checkSignals reports signals that no PDU maps.
func (a *analyzer) checkSignals() {
	mapped := map[string]bool{}
	for _, pdu := range a.sys.PDUs {
		for _, m := range pdu.SignalMappings {
			if m.SignalRef != "" {
				mapped[m.SignalRef] = true
			}
		}
	}

	for _, name := range sortedKeys(a.sys.Signals) {
		if !mapped[name] {
			a.add(SeverityInfo, errors.ErrCodeNotConnected, "signal", name,
				"signal is not mapped into any PDU")
		}
	}
}

// checkTriggerings reports triggerings no ECU sends or receives.
func (a *analyzer) checkTriggerings() {
	for _, name := range sortedKeys(a.sys.FrameTriggerings) {
		ft := a.sys.FrameTriggerings[name]
		if len(ft.PortRefs) == 0 {
			a.add(SeverityWarning, errors.ErrCodeNotConnected, "frame_triggering", name,
				"no ECU is connected to frame %q on channel %q", ft.FrameRef, ft.ChannelRef)
		}
	}
}

func (a *analyzer) checkECUs() {
	for _, name := range sortedKeys(a.sys.ECUs) {
		ecu := a.sys.ECUs[name]
		if len(ecu.ConnectorRefs) == 0 {
			a.add(SeverityWarning, errors.ErrCodeNotConnected, "ecu", name,
				"ECU is not connected to any channel")
		}
	}
}

func (a *analyzer) checkChannels() {
	for _, name := range sortedKeys(a.sys.Channels) {
		channel := a.sys.Channels[name]
		if len(channel.FrameTriggeringRefs) == 0 && len(channel.PDUTriggeringRefs) == 0 {
			a.add(SeverityInfo, errors.ErrCodeNotConnected, "channel", name,
				"channel carries no frames or PDUs")
		}
	}
}

// checkTransformations re-validates every chain against the construction
// rules.
func (a *analyzer) checkTransformations() {
	for _, name := range sortedKeys(a.sys.DataTransformations) {
		dt := a.sys.DataTransformations[name]

		if len(dt.ChainRefs) == 0 {
			a.add(SeverityError, errors.ErrCodeInvalidParameter, "data_transformation", name,
				"transformation chain is empty")
			continue
		}

		for i, techName := range dt.ChainRefs {
			tech, ok := a.sys.TransformationTechnologies[techName]
			if !ok {
				a.add(SeverityError, errors.ErrCodeNotFound, "data_transformation", name,
					"chain references unknown technology %q", techName)
				continue
			}
			if tech.SetRef != dt.SetRef {
				a.add(SeverityError, errors.ErrCodeInvalidParameter, "data_transformation", name,
					"technology %q belongs to set %q, not %q", techName, tech.SetRef, dt.SetRef)
			}
			if i > 0 && tech.TransformerClass == topology.TransformerClassSerializer {
				a.add(SeverityError, errors.ErrCodeInvalidParameter, "data_transformation", name,
					"serializer %q must be the first element of the chain", techName)
			}
			if tech.Protocol == "E2E" && !dt.ExecuteDespiteDataUnavailability {
				a.add(SeverityError, errors.ErrCodeInvalidParameter, "data_transformation", name,
					"chain contains E2E technology %q but does not execute despite data unavailability", techName)
			}
		}
	}
}

// finish fills the summary and puts findings into their stable order.
func (a *analyzer) finish() {
	r := a.report

	sort.SliceStable(r.Findings, func(i, j int) bool {
		fi, fj := r.Findings[i], r.Findings[j]
		if fi.Severity.rank() != fj.Severity.rank() {
			return fi.Severity.rank() < fj.Severity.rank()
		}
		if fi.Kind != fj.Kind {
			return fi.Kind < fj.Kind
		}
		if fi.Name != fj.Name {
			return fi.Name < fj.Name
		}
		return fi.Message < fj.Message
	})
	sort.SliceStable(r.Layouts, func(i, j int) bool {
		if r.Layouts[i].Kind != r.Layouts[j].Kind {
			return r.Layouts[i].Kind < r.Layouts[j].Kind
		}
		return r.Layouts[i].Name < r.Layouts[j].Name
	})

	r.Summary = Summary{
		Clusters:          len(a.sys.Clusters),
		Channels:          len(a.sys.Channels),
		ECUs:              len(a.sys.ECUs),
		Frames:            len(a.sys.Frames),
		PDUs:              len(a.sys.PDUs),
		Signals:           len(a.sys.Signals),
		FrameTriggerings:  len(a.sys.FrameTriggerings),
		PDUTriggerings:    len(a.sys.PDUTriggerings),
		SignalTriggerings: len(a.sys.SignalTriggerings),
		Ports:             len(a.sys.Ports),
	}
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityError:
			r.Summary.Errors++
		case SeverityWarning:
			r.Summary.Warnings++
		default:
			r.Summary.Infos++
		}
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
