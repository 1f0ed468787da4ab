package topology

import (
	"github.com/busweaver/busweaver/pkg/errors"
	"github.com/busweaver/busweaver/pkg/topology/bitlayout"
)

// ByteOrder is re-exported from the bitlayout package, which defines the
// coverage arithmetic over it.
type ByteOrder = bitlayout.ByteOrder

// Byte order values for mapping placements.
const (
	MostSignificantByteFirst = bitlayout.MostSignificantByteFirst
	MostSignificantByteLast  = bitlayout.MostSignificantByteLast
	Opaque                   = bitlayout.Opaque
)

// PDUKind identifies the sub-kind of a PDU.
type PDUKind string

const (
	// PDUKindISignal is a PDU carrying individually mapped signals.
	PDUKindISignal PDUKind = "isignal-ipdu"
	// PDUKindNm is a network management PDU.
	PDUKindNm PDUKind = "nm-pdu"
	// PDUKindN is a transport layer PDU.
	PDUKindN PDUKind = "n-pdu"
	// PDUKindDcm is a diagnostic PDU.
	PDUKindDcm PDUKind = "dcm-ipdu"
	// PDUKindGeneralPurpose is a general purpose PDU outside the COM stack.
	PDUKindGeneralPurpose PDUKind = "general-purpose-pdu"
	// PDUKindGeneralPurposeI is a general purpose PDU inside the COM stack.
	PDUKindGeneralPurposeI PDUKind = "general-purpose-ipdu"
	// PDUKindContainer is a container PDU carrying other PDUs.
	PDUKindContainer PDUKind = "container-ipdu"
	// PDUKindSecured is a PDU wrapping a payload PDU with authentication.
	PDUKindSecured PDUKind = "secured-ipdu"
	// PDUKindMultiplexed is a PDU whose layout depends on a selector field.
	PDUKindMultiplexed PDUKind = "multiplexed-ipdu"
)

// Valid reports whether k is a defined PDU kind.
func (k PDUKind) Valid() bool {
	switch k {
	case PDUKindISignal, PDUKindNm, PDUKindN, PDUKindDcm, PDUKindGeneralPurpose,
		PDUKindGeneralPurposeI, PDUKindContainer, PDUKindSecured, PDUKindMultiplexed:
		return true
	}
	return false
}

// PDU is a fixed-length byte buffer transmitted inside a frame or directly
// on an Ethernet channel. Only signal PDUs carry signal mappings.
type PDU struct {
	Name       string  `json:"name" bson:"name"`
	Kind       PDUKind `json:"kind" bson:"kind"`
	ByteLength int     `json:"byte_length" bson:"byte_length"`

	SignalMappings []*SignalToPDUMapping `json:"signal_mappings,omitempty" bson:"signal_mappings,omitempty"`
	TriggeringRefs []string              `json:"triggering_refs,omitempty" bson:"triggering_refs,omitempty"`
}

// SignalToPDUMapping places one signal or one signal group inside a PDU.
// Signal mappings carry a bit position, byte order and transfer property;
// group mappings only record membership, since the grouped signals are
// mapped individually.
type SignalToPDUMapping struct {
	Name      string `json:"name" bson:"name"`
	SignalRef string `json:"signal_ref,omitempty" bson:"signal_ref,omitempty"`
	GroupRef  string `json:"group_ref,omitempty" bson:"group_ref,omitempty"`

	StartPosition    int              `json:"start_position,omitempty" bson:"start_position,omitempty"`
	ByteOrder        ByteOrder        `json:"byte_order,omitempty" bson:"byte_order,omitempty"`
	UpdateBit        *int             `json:"update_bit,omitempty" bson:"update_bit,omitempty"`
	TransferProperty TransferProperty `json:"transfer_property,omitempty" bson:"transfer_property,omitempty"`
}

// CreatePDU adds a new PDU of the given kind and length.
func (s *System) CreatePDU(name string, kind PDUKind, byteLength int) (*PDU, error) {
	if err := checkNewEntityName(s.PDUs, "PDU", name); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid PDU kind %q", kind)
	}
	if byteLength < 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"PDU %q must not have a negative length, got %d", name, byteLength)
	}
	pdu := &PDU{Name: name, Kind: kind, ByteLength: byteLength}
	s.PDUs[name] = pdu
	return pdu, nil
}

// MapSignalToPDU places a signal inside a signal PDU.
//
// The placement is checked against every signal already mapped into the
// PDU: overlapping bits, including update bits, fail with OVERLAP. A signal
// that belongs to a signal group can only be mapped after its group. For
// every existing triggering of the PDU, a signal triggering and matching
// signal ports are created so the derived graph stays consistent.
func (s *System) MapSignalToPDU(pduName, signalName string, startPosition int, order ByteOrder, updateBit *int, transferProperty TransferProperty) (*SignalToPDUMapping, error) {
	pdu, err := s.pduByName(pduName)
	if err != nil {
		return nil, err
	}
	signal, err := s.signalByName(signalName)
	if err != nil {
		return nil, err
	}
	if pdu.Kind != PDUKindISignal {
		return nil, errors.New(errors.ErrCodeConversion,
			"PDU %q is a %s, signals can only be mapped into a %s", pduName, pdu.Kind, PDUKindISignal)
	}
	if !order.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid byte order %q", order)
	}
	if !transferProperty.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid transfer property %q", transferProperty)
	}

	// build a bitmap of all signals that are already mapped in this PDU
	coverage := bitlayout.NewCoverageMap(pdu.ByteLength)
	for _, mapping := range pdu.SignalMappings {
		if mapping.SignalRef == "" {
			continue
		}
		mapped, err := s.signalByName(mapping.SignalRef)
		if err != nil {
			continue
		}
		coverage.Reserve(mapping.StartPosition, mapped.BitLength, mapping.ByteOrder, mapping.UpdateBit)
	}
	if !coverage.Reserve(startPosition, signal.BitLength, order, updateBit) {
		return nil, errors.New(errors.ErrCodeOverlap,
			"cannot map signal %q to an overlapping position in PDU %q", signalName, pduName)
	}

	if signal.GroupRef != "" && !s.groupMapped(pdu, signal.GroupRef) {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"cannot map signal %q: its signal group %q is not mapped into PDU %q",
			signalName, signal.GroupRef, pduName)
	}

	// wire a signal triggering into every existing triggering of this PDU
	for _, ptName := range pdu.TriggeringRefs {
		pt, err := s.pduTriggeringByName(ptName)
		if err != nil {
			return nil, err
		}
		if _, err := s.ensureSignalTriggering(pt, signalName, ""); err != nil {
			return nil, err
		}
	}

	mapping := &SignalToPDUMapping{
		Name:             uniqueName(signalName, pdu.mappingNameTaken),
		SignalRef:        signalName,
		StartPosition:    startPosition,
		ByteOrder:        order,
		UpdateBit:        updateBit,
		TransferProperty: transferProperty,
	}
	pdu.SignalMappings = append(pdu.SignalMappings, mapping)
	return mapping, nil
}

// MapSignalGroupToPDU places a signal group inside a signal PDU. The group
// occupies no bits of its own; it must be mapped before its member signals.
func (s *System) MapSignalGroupToPDU(pduName, groupName string) (*SignalToPDUMapping, error) {
	pdu, err := s.pduByName(pduName)
	if err != nil {
		return nil, err
	}
	group, err := s.signalGroupByName(groupName)
	if err != nil {
		return nil, err
	}
	if pdu.Kind != PDUKindISignal {
		return nil, errors.New(errors.ErrCodeConversion,
			"PDU %q is a %s, signal groups can only be mapped into a %s", pduName, pdu.Kind, PDUKindISignal)
	}

	// wire a signal triggering into every existing triggering of this PDU
	for _, ptName := range pdu.TriggeringRefs {
		pt, err := s.pduTriggeringByName(ptName)
		if err != nil {
			return nil, err
		}
		if _, err := s.ensureSignalTriggering(pt, "", group.Name); err != nil {
			return nil, err
		}
	}

	mapping := &SignalToPDUMapping{
		Name:     uniqueName(groupName, pdu.mappingNameTaken),
		GroupRef: groupName,
	}
	pdu.SignalMappings = append(pdu.SignalMappings, mapping)
	return mapping, nil
}

// groupMapped reports whether the group is already mapped into the PDU.
func (s *System) groupMapped(pdu *PDU, groupName string) bool {
	for _, mapping := range pdu.SignalMappings {
		if mapping.GroupRef == groupName {
			return true
		}
	}
	return false
}

// mappingNameTaken reports whether a mapping with the given name exists in
// the PDU.
func (p *PDU) mappingNameTaken(name string) bool {
	for _, mapping := range p.SignalMappings {
		if mapping.Name == name {
			return true
		}
	}
	return false
}
