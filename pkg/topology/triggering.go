package topology

import (
	"github.com/busweaver/busweaver/pkg/errors"
)

// CanAddressingMode selects between 11 bit and 29 bit CAN identifiers.
type CanAddressingMode string

const (
	CanAddressingModeStandard CanAddressingMode = "standard"
	CanAddressingModeExtended CanAddressingMode = "extended"
)

// Valid reports whether m is a defined addressing mode.
func (m CanAddressingMode) Valid() bool {
	return m == CanAddressingModeStandard || m == CanAddressingModeExtended
}

// CanFrameType restricts which CAN flavor may carry a frame.
type CanFrameType string

const (
	CanFrameTypeCan20 CanFrameType = "can20"
	CanFrameTypeCanFD CanFrameType = "canfd"
	CanFrameTypeAny   CanFrameType = "any"
)

// Valid reports whether t is a defined frame type.
func (t CanFrameType) Valid() bool {
	return t == CanFrameTypeCan20 || t == CanFrameTypeCanFD || t == CanFrameTypeAny
}

// CanFrameTriggeringSpec carries the CAN specific send parameters of a
// frame triggering.
type CanFrameTriggeringSpec struct {
	Identifier     uint32            `json:"identifier" bson:"identifier"`
	AddressingMode CanAddressingMode `json:"addressing_mode" bson:"addressing_mode"`
	FrameType      CanFrameType      `json:"frame_type" bson:"frame_type"`
}

// FlexrayCommunicationCycle describes in which communication cycles a
// FlexRay frame is sent. Exactly one variant is set: a fixed cycle counter,
// or a base cycle with a repetition.
type FlexrayCommunicationCycle struct {
	CycleCounter    *int `json:"cycle_counter,omitempty" bson:"cycle_counter,omitempty"`
	BaseCycle       *int `json:"base_cycle,omitempty" bson:"base_cycle,omitempty"`
	CycleRepetition *int `json:"cycle_repetition,omitempty" bson:"cycle_repetition,omitempty"`
}

// Valid reports whether the cycle is a well-formed variant with values in
// range. Cycle counters and base cycles count 0 to 63, repetitions are
// powers of two up to 64.
func (c FlexrayCommunicationCycle) Valid() bool {
	if c.CycleCounter != nil {
		if c.BaseCycle != nil || c.CycleRepetition != nil {
			return false
		}
		return *c.CycleCounter >= 0 && *c.CycleCounter <= 63
	}
	if c.BaseCycle == nil || c.CycleRepetition == nil {
		return false
	}
	if *c.BaseCycle < 0 || *c.BaseCycle > 63 {
		return false
	}
	switch *c.CycleRepetition {
	case 1, 2, 4, 8, 16, 32, 64:
		return true
	}
	return false
}

// FlexrayFrameTriggeringSpec carries the FlexRay specific send parameters
// of a frame triggering.
type FlexrayFrameTriggeringSpec struct {
	SlotID uint32                    `json:"slot_id" bson:"slot_id"`
	Cycle  FlexrayCommunicationCycle `json:"cycle" bson:"cycle"`
}

// FrameTriggering is the occurrence of a frame on one physical channel.
// Exactly one of the bus specific specs is set, matching the channel kind.
type FrameTriggering struct {
	Name       string `json:"name" bson:"name"`
	FrameRef   string `json:"frame_ref" bson:"frame_ref"`
	ChannelRef string `json:"channel_ref" bson:"channel_ref"`

	Can     *CanFrameTriggeringSpec     `json:"can,omitempty" bson:"can,omitempty"`
	Flexray *FlexrayFrameTriggeringSpec `json:"flexray,omitempty" bson:"flexray,omitempty"`

	PDUTriggeringRefs []string `json:"pdu_triggering_refs,omitempty" bson:"pdu_triggering_refs,omitempty"`
	PortRefs          []string `json:"port_refs,omitempty" bson:"port_refs,omitempty"`
}

// PDUTriggering is the occurrence of a PDU on one physical channel, either
// below a frame triggering or directly on an Ethernet channel.
type PDUTriggering struct {
	Name       string `json:"name" bson:"name"`
	PDURef     string `json:"pdu_ref" bson:"pdu_ref"`
	ChannelRef string `json:"channel_ref" bson:"channel_ref"`

	SignalTriggeringRefs []string `json:"signal_triggering_refs,omitempty" bson:"signal_triggering_refs,omitempty"`
	PortRefs             []string `json:"port_refs,omitempty" bson:"port_refs,omitempty"`
}

// SignalTriggering is the occurrence of a signal or signal group on one
// physical channel. Exactly one of the refs is set.
type SignalTriggering struct {
	Name       string `json:"name" bson:"name"`
	SignalRef  string `json:"signal_ref,omitempty" bson:"signal_ref,omitempty"`
	GroupRef   string `json:"group_ref,omitempty" bson:"group_ref,omitempty"`
	ChannelRef string `json:"channel_ref" bson:"channel_ref"`

	PortRefs []string `json:"port_refs,omitempty" bson:"port_refs,omitempty"`
}

// PortKind identifies which triggering layer a port belongs to.
type PortKind string

const (
	PortKindFrame  PortKind = "frame"
	PortKindPDU    PortKind = "pdu"
	PortKindSignal PortKind = "signal"
)

// Port attaches an ECU to a triggering in one direction. Ports are created
// by the connect operations and by propagation, never directly.
type Port struct {
	Name      string    `json:"name" bson:"name"`
	Kind      PortKind  `json:"kind" bson:"kind"`
	ECURef    string    `json:"ecu_ref" bson:"ecu_ref"`
	Direction Direction `json:"direction" bson:"direction"`
}

// TriggerCanFrame sends a frame on a CAN channel with the given identifier.
// Standard addressing allows identifiers up to 0x7FF, extended addressing
// up to 0x1FFFFFFF. PDU and signal triggerings for the frame's content are
// derived immediately.
func (s *System) TriggerCanFrame(channelName, frameName string, spec CanFrameTriggeringSpec) (*FrameTriggering, error) {
	channel, err := s.channelByName(channelName)
	if err != nil {
		return nil, err
	}
	frame, err := s.frameByName(frameName)
	if err != nil {
		return nil, err
	}
	if channel.Kind != ClusterKindCan {
		return nil, errors.New(errors.ErrCodeConversion,
			"channel %q is a %s channel, CAN frames can only be triggered on a %s channel",
			channelName, channel.Kind, ClusterKindCan)
	}
	if frame.Kind != ClusterKindCan {
		return nil, errors.New(errors.ErrCodeConversion,
			"frame %q is a %s frame, not a %s frame", frameName, frame.Kind, ClusterKindCan)
	}
	if !spec.AddressingMode.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid addressing mode %q", spec.AddressingMode)
	}
	if !spec.FrameType.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid frame type %q", spec.FrameType)
	}
	if spec.AddressingMode == CanAddressingModeStandard && spec.Identifier > 0x7FF {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"identifier 0x%X does not fit into a standard CAN identifier", spec.Identifier)
	}
	if spec.Identifier > 0x1FFFFFFF {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"identifier 0x%X does not fit into an extended CAN identifier", spec.Identifier)
	}

	ft := s.newFrameTriggering(channel, frame)
	ft.Can = &spec
	if err := s.propagateFrameContent(ft, frame); err != nil {
		return nil, err
	}
	return ft, nil
}

// TriggerFlexrayFrame sends a frame in a FlexRay slot and cycle. PDU and
// signal triggerings for the frame's content are derived immediately.
func (s *System) TriggerFlexrayFrame(channelName, frameName string, spec FlexrayFrameTriggeringSpec) (*FrameTriggering, error) {
	channel, err := s.channelByName(channelName)
	if err != nil {
		return nil, err
	}
	frame, err := s.frameByName(frameName)
	if err != nil {
		return nil, err
	}
	if channel.Kind != ClusterKindFlexray {
		return nil, errors.New(errors.ErrCodeConversion,
			"channel %q is a %s channel, FlexRay frames can only be triggered on a %s channel",
			channelName, channel.Kind, ClusterKindFlexray)
	}
	if frame.Kind != ClusterKindFlexray {
		return nil, errors.New(errors.ErrCodeConversion,
			"frame %q is a %s frame, not a %s frame", frameName, frame.Kind, ClusterKindFlexray)
	}
	if spec.SlotID < 1 || spec.SlotID > 2047 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"slot %d is outside the valid FlexRay slot range 1 to 2047", spec.SlotID)
	}
	if !spec.Cycle.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"invalid FlexRay communication cycle for frame %q", frameName)
	}

	ft := s.newFrameTriggering(channel, frame)
	ft.Flexray = &spec
	if err := s.propagateFrameContent(ft, frame); err != nil {
		return nil, err
	}
	return ft, nil
}

// newFrameTriggering registers a frame triggering on the channel.
func (s *System) newFrameTriggering(channel *PhysicalChannel, frame *Frame) *FrameTriggering {
	name := uniqueName("FT_"+frame.Name, func(n string) bool {
		_, taken := s.FrameTriggerings[n]
		return taken
	})
	ft := &FrameTriggering{Name: name, FrameRef: frame.Name, ChannelRef: channel.Name}
	s.FrameTriggerings[name] = ft
	channel.FrameTriggeringRefs = append(channel.FrameTriggeringRefs, name)
	frame.TriggeringRefs = append(frame.TriggeringRefs, name)
	return ft
}

// TriggerPDU sends a PDU directly on an Ethernet channel, without a frame.
// Triggering the same PDU on the same channel again returns the existing
// triggering.
func (s *System) TriggerPDU(channelName, pduName string) (*PDUTriggering, error) {
	channel, err := s.channelByName(channelName)
	if err != nil {
		return nil, err
	}
	pdu, err := s.pduByName(pduName)
	if err != nil {
		return nil, err
	}
	if channel.Kind != ClusterKindEthernet {
		return nil, errors.New(errors.ErrCodeConversion,
			"channel %q is a %s channel, PDUs can only be triggered directly on an %s channel",
			channelName, channel.Kind, ClusterKindEthernet)
	}
	for _, ptName := range channel.PDUTriggeringRefs {
		pt, err := s.pduTriggeringByName(ptName)
		if err != nil {
			return nil, err
		}
		if pt.PDURef == pduName {
			return pt, nil
		}
	}
	return s.newPDUTriggering(channel, pdu)
}

// ConnectFrameTriggeringToECU adds a frame port for the ECU in the given
// direction and derives matching PDU and signal ports for the content of
// the frame. The ECU must already be connected to the triggering's channel.
// Connecting the same ECU in the same direction again returns the existing
// port.
func (s *System) ConnectFrameTriggeringToECU(triggeringName, ecuName string, direction Direction) (*Port, error) {
	ft, err := s.frameTriggeringByName(triggeringName)
	if err != nil {
		return nil, err
	}
	if _, err := s.ecuByName(ecuName); err != nil {
		return nil, err
	}
	if !direction.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid direction %q", direction)
	}
	return s.ensureFramePort(ft, ecuName, direction)
}

// ConnectPDUTriggeringToECU adds a PDU port for the ECU in the given
// direction and derives matching signal ports for the content of the PDU.
// The ECU must already be connected to the triggering's channel. Connecting
// the same ECU in the same direction again returns the existing port.
func (s *System) ConnectPDUTriggeringToECU(triggeringName, ecuName string, direction Direction) (*Port, error) {
	pt, err := s.pduTriggeringByName(triggeringName)
	if err != nil {
		return nil, err
	}
	if _, err := s.ecuByName(ecuName); err != nil {
		return nil, err
	}
	if !direction.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid direction %q", direction)
	}
	return s.ensurePDUPort(pt, ecuName, direction)
}

// ConnectSignalTriggeringToECU adds a signal port for the ECU in the given
// direction. The ECU must already be connected to the triggering's channel.
// Connecting the same ECU in the same direction again returns the existing
// port.
func (s *System) ConnectSignalTriggeringToECU(triggeringName, ecuName string, direction Direction) (*Port, error) {
	st, err := s.signalTriggeringByName(triggeringName)
	if err != nil {
		return nil, err
	}
	if _, err := s.ecuByName(ecuName); err != nil {
		return nil, err
	}
	if !direction.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid direction %q", direction)
	}
	return s.ensureSignalPort(st, ecuName, direction)
}
