package topology

import (
	"github.com/busweaver/busweaver/pkg/errors"
)

// This file holds the propagation walks that keep the derived part of the
// graph consistent. Mapping content into a frame or PDU and connecting an
// ECU to a triggering both call into these walks, so the result does not
// depend on construction order. Every walk finds an existing triggering or
// port before creating one, which makes repeated propagation a no-op.

// propagateFrameContent derives a PDU triggering for every PDU mapped into
// the frame.
func (s *System) propagateFrameContent(ft *FrameTriggering, frame *Frame) error {
	for _, mapping := range frame.PDUMappings {
		if _, err := s.ensurePDUTriggering(ft, mapping.PDURef); err != nil {
			return err
		}
	}
	return nil
}

// ensurePDUTriggering finds or creates the PDU triggering for the PDU below
// the frame triggering and syncs its ports with the frame ports.
func (s *System) ensurePDUTriggering(ft *FrameTriggering, pduName string) (*PDUTriggering, error) {
	var pt *PDUTriggering
	for _, ref := range ft.PDUTriggeringRefs {
		candidate, err := s.pduTriggeringByName(ref)
		if err != nil {
			return nil, err
		}
		if candidate.PDURef == pduName {
			pt = candidate
			break
		}
	}
	if pt == nil {
		channel, err := s.channelByName(ft.ChannelRef)
		if err != nil {
			return nil, err
		}
		pdu, err := s.pduByName(pduName)
		if err != nil {
			return nil, err
		}
		pt, err = s.newPDUTriggering(channel, pdu)
		if err != nil {
			return nil, err
		}
		ft.PDUTriggeringRefs = append(ft.PDUTriggeringRefs, pt.Name)
	}

	for _, ref := range ft.PortRefs {
		port, err := s.portByName(ref)
		if err != nil {
			return nil, err
		}
		if _, err := s.ensurePDUPort(pt, port.ECURef, port.Direction); err != nil {
			return nil, err
		}
	}
	return pt, nil
}

// newPDUTriggering registers a PDU triggering on the channel and derives a
// signal triggering for every signal and group mapped into the PDU.
func (s *System) newPDUTriggering(channel *PhysicalChannel, pdu *PDU) (*PDUTriggering, error) {
	name := uniqueName("PT_"+pdu.Name, func(n string) bool {
		_, taken := s.PDUTriggerings[n]
		return taken
	})
	pt := &PDUTriggering{Name: name, PDURef: pdu.Name, ChannelRef: channel.Name}
	s.PDUTriggerings[name] = pt
	channel.PDUTriggeringRefs = append(channel.PDUTriggeringRefs, name)
	pdu.TriggeringRefs = append(pdu.TriggeringRefs, name)

	for _, mapping := range pdu.SignalMappings {
		if _, err := s.ensureSignalTriggering(pt, mapping.SignalRef, mapping.GroupRef); err != nil {
			return nil, err
		}
	}
	return pt, nil
}

// ensureSignalTriggering finds or creates the signal triggering for the
// signal or group below the PDU triggering and syncs its ports with the PDU
// ports.
func (s *System) ensureSignalTriggering(pt *PDUTriggering, signalRef, groupRef string) (*SignalTriggering, error) {
	var st *SignalTriggering
	for _, ref := range pt.SignalTriggeringRefs {
		candidate, err := s.signalTriggeringByName(ref)
		if err != nil {
			return nil, err
		}
		if candidate.SignalRef == signalRef && candidate.GroupRef == groupRef {
			st = candidate
			break
		}
	}
	if st == nil {
		channel, err := s.channelByName(pt.ChannelRef)
		if err != nil {
			return nil, err
		}
		base := signalRef
		if base == "" {
			base = groupRef
		}
		name := uniqueName("ST_"+base, func(n string) bool {
			_, taken := s.SignalTriggerings[n]
			return taken
		})
		st = &SignalTriggering{Name: name, SignalRef: signalRef, GroupRef: groupRef, ChannelRef: pt.ChannelRef}
		s.SignalTriggerings[name] = st
		channel.SignalTriggeringRefs = append(channel.SignalTriggeringRefs, name)
		pt.SignalTriggeringRefs = append(pt.SignalTriggeringRefs, name)
	}

	for _, ref := range pt.PortRefs {
		port, err := s.portByName(ref)
		if err != nil {
			return nil, err
		}
		if _, err := s.ensureSignalPort(st, port.ECURef, port.Direction); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// ensureFramePort finds or creates the frame port for the ECU and direction
// and derives matching PDU ports below the frame triggering.
func (s *System) ensureFramePort(ft *FrameTriggering, ecuName string, direction Direction) (*Port, error) {
	port, err := s.findOrCreatePort(&ft.PortRefs, PortKindFrame, ft.Name, ft.ChannelRef, ecuName, direction)
	if err != nil {
		return nil, err
	}
	for _, ref := range ft.PDUTriggeringRefs {
		pt, err := s.pduTriggeringByName(ref)
		if err != nil {
			return nil, err
		}
		if _, err := s.ensurePDUPort(pt, ecuName, direction); err != nil {
			return nil, err
		}
	}
	return port, nil
}

// ensurePDUPort finds or creates the PDU port for the ECU and direction and
// derives matching signal ports below the PDU triggering.
func (s *System) ensurePDUPort(pt *PDUTriggering, ecuName string, direction Direction) (*Port, error) {
	port, err := s.findOrCreatePort(&pt.PortRefs, PortKindPDU, pt.Name, pt.ChannelRef, ecuName, direction)
	if err != nil {
		return nil, err
	}
	for _, ref := range pt.SignalTriggeringRefs {
		st, err := s.signalTriggeringByName(ref)
		if err != nil {
			return nil, err
		}
		if _, err := s.ensureSignalPort(st, ecuName, direction); err != nil {
			return nil, err
		}
	}
	return port, nil
}

// ensureSignalPort finds or creates the signal port for the ECU and
// direction.
func (s *System) ensureSignalPort(st *SignalTriggering, ecuName string, direction Direction) (*Port, error) {
	return s.findOrCreatePort(&st.PortRefs, PortKindSignal, st.Name, st.ChannelRef, ecuName, direction)
}

// findOrCreatePort returns the port of the triggering matching the ECU and
// direction, creating and registering it if none exists. The ECU must have
// a connector on the triggering's channel.
func (s *System) findOrCreatePort(portRefs *[]string, kind PortKind, triggeringName, channelName, ecuName string, direction Direction) (*Port, error) {
	channel, err := s.channelByName(channelName)
	if err != nil {
		return nil, err
	}
	connector := s.ecuConnector(channel, ecuName)
	if connector == nil {
		return nil, errors.New(errors.ErrCodeNotConnected,
			"ECU %q is not connected to channel %q", ecuName, channelName)
	}

	for _, ref := range *portRefs {
		port, err := s.portByName(ref)
		if err != nil {
			return nil, err
		}
		if port.Kind == kind && port.ECURef == ecuName && port.Direction == direction {
			return port, nil
		}
	}

	name := uniqueName(triggeringName+"_"+direction.portSuffix(), func(n string) bool {
		_, taken := s.Ports[n]
		return taken
	})
	port := &Port{Name: name, Kind: kind, ECURef: ecuName, Direction: direction}
	s.Ports[name] = port
	*portRefs = append(*portRefs, name)
	connector.PortRefs = append(connector.PortRefs, name)
	return port, nil
}
