package topology

import (
	"github.com/busweaver/busweaver/pkg/errors"
	"github.com/busweaver/busweaver/pkg/topology/bitlayout"
)

// Frame is a fixed-length bus frame carrying one or more PDUs. Frames exist
// on CAN and FlexRay; Ethernet transports PDUs without a frame entity.
type Frame struct {
	Name       string      `json:"name" bson:"name"`
	Kind       ClusterKind `json:"kind" bson:"kind"`
	ByteLength int         `json:"byte_length" bson:"byte_length"`

	PDUMappings    []*PDUToFrameMapping `json:"pdu_mappings,omitempty" bson:"pdu_mappings,omitempty"`
	TriggeringRefs []string             `json:"triggering_refs,omitempty" bson:"triggering_refs,omitempty"`
}

// PDUToFrameMapping places one PDU inside a frame. The start position names
// the bit where the PDU begins; depending on the byte order that is the most
// significant bit of the first byte or the least significant one.
type PDUToFrameMapping struct {
	Name          string    `json:"name" bson:"name"`
	PDURef        string    `json:"pdu_ref" bson:"pdu_ref"`
	StartPosition int       `json:"start_position" bson:"start_position"`
	ByteOrder     ByteOrder `json:"byte_order" bson:"byte_order"`
	UpdateBit     *int      `json:"update_bit,omitempty" bson:"update_bit,omitempty"`
}

// CreateCanFrame adds a new CAN frame of the given length.
func (s *System) CreateCanFrame(name string, byteLength int) (*Frame, error) {
	return s.createFrame(name, ClusterKindCan, byteLength)
}

// CreateFlexrayFrame adds a new FlexRay frame of the given length.
func (s *System) CreateFlexrayFrame(name string, byteLength int) (*Frame, error) {
	return s.createFrame(name, ClusterKindFlexray, byteLength)
}

func (s *System) createFrame(name string, kind ClusterKind, byteLength int) (*Frame, error) {
	if err := checkNewEntityName(s.Frames, "frame", name); err != nil {
		return nil, err
	}
	if byteLength < 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"frame %q must not have a negative length, got %d", name, byteLength)
	}
	frame := &Frame{Name: name, Kind: kind, ByteLength: byteLength}
	s.Frames[name] = frame
	return frame, nil
}

// MapPDUToFrame places a PDU inside a frame.
//
// PDU placements must be byte aligned and may not use the opaque byte
// order. All PDUs inside one frame share a single byte order, a CAN frame
// holds at most one PDU, and placements that overlap an already mapped PDU
// fail with OVERLAP. For every existing triggering of the frame, a PDU
// triggering is created so the derived graph stays consistent.
func (s *System) MapPDUToFrame(frameName, pduName string, startPosition int, order ByteOrder, updateBit *int) (*PDUToFrameMapping, error) {
	frame, err := s.frameByName(frameName)
	if err != nil {
		return nil, err
	}
	pdu, err := s.pduByName(pduName)
	if err != nil {
		return nil, err
	}
	if !order.Valid() || order == Opaque {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"PDUs must be mapped with byte order %q or %q, got %q",
			MostSignificantByteFirst, MostSignificantByteLast, order)
	}
	if frame.Kind == ClusterKindCan && len(frame.PDUMappings) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"CAN frame %q already has a mapped PDU", frameName)
	}
	for _, mapping := range frame.PDUMappings {
		if mapping.ByteOrder != order {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"all PDUs mapped into frame %q must use the same byte order", frameName)
		}
	}
	switch order {
	case MostSignificantByteFirst:
		if startPosition%8 != 7 {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"PDU %q must start at the most significant bit of a byte, got position %d", pduName, startPosition)
		}
	case MostSignificantByteLast:
		if startPosition%8 != 0 {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"PDU %q must start at the least significant bit of a byte, got position %d", pduName, startPosition)
		}
	}

	// build a bitmap of all PDUs that are already mapped in this frame
	coverage := bitlayout.NewCoverageMap(frame.ByteLength)
	for _, mapping := range frame.PDUMappings {
		mapped, err := s.pduByName(mapping.PDURef)
		if err != nil {
			continue
		}
		coverage.Reserve(mapping.StartPosition, mapped.ByteLength*8, mapping.ByteOrder, mapping.UpdateBit)
	}
	if !coverage.Reserve(startPosition, pdu.ByteLength*8, order, updateBit) {
		return nil, errors.New(errors.ErrCodeOverlap,
			"cannot map PDU %q to an overlapping position in frame %q", pduName, frameName)
	}

	// wire a PDU triggering into every existing triggering of this frame
	for _, ftName := range frame.TriggeringRefs {
		ft, err := s.frameTriggeringByName(ftName)
		if err != nil {
			return nil, err
		}
		if _, err := s.ensurePDUTriggering(ft, pduName); err != nil {
			return nil, err
		}
	}

	mapping := &PDUToFrameMapping{
		Name:          uniqueName(pduName, frame.mappingNameTaken),
		PDURef:        pduName,
		StartPosition: startPosition,
		ByteOrder:     order,
		UpdateBit:     updateBit,
	}
	frame.PDUMappings = append(frame.PDUMappings, mapping)
	return mapping, nil
}

// mappingNameTaken reports whether a mapping with the given name exists in
// the frame.
func (f *Frame) mappingNameTaken(name string) bool {
	for _, mapping := range f.PDUMappings {
		if mapping.Name == name {
			return true
		}
	}
	return false
}
