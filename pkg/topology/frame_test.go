package topology

import (
	"testing"

	"github.com/busweaver/busweaver/pkg/errors"
)

// flexrayFrameFixture builds a system with a FlexRay frame and a number of
// small PDUs to map into it.
func flexrayFrameFixture(t *testing.T, pduBytes ...int) *System {
	t.Helper()
	s := NewSystem("Vehicle")
	if _, err := s.CreateFlexrayFrame("Frame1", 8); err != nil {
		t.Fatalf("CreateFlexrayFrame: %v", err)
	}
	for i, bytes := range pduBytes {
		name := string(rune('A'+i)) + "Data"
		if _, err := s.CreatePDU(name, PDUKindISignal, bytes); err != nil {
			t.Fatalf("CreatePDU %s: %v", name, err)
		}
	}
	return s
}

func TestMapPDUToFrameRejectsOpaqueOrder(t *testing.T) {
	s := flexrayFrameFixture(t, 4)

	_, err := s.MapPDUToFrame("Frame1", "AData", 0, Opaque, nil)
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)
}

func TestMapPDUToFrameAlignment(t *testing.T) {
	cases := []struct {
		name     string
		order    ByteOrder
		position int
		wantErr  bool
	}{
		{"big endian at msb", MostSignificantByteFirst, 7, false},
		{"big endian second byte", MostSignificantByteFirst, 15, false},
		{"big endian unaligned", MostSignificantByteFirst, 0, true},
		{"little endian at lsb", MostSignificantByteLast, 0, false},
		{"little endian second byte", MostSignificantByteLast, 8, false},
		{"little endian unaligned", MostSignificantByteLast, 5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := flexrayFrameFixture(t, 4)
			_, err := s.MapPDUToFrame("Frame1", "AData", tc.position, tc.order, nil)
			if tc.wantErr {
				assertErrCode(t, err, errors.ErrCodeInvalidParameter)
			} else if err != nil {
				t.Fatalf("MapPDUToFrame: %v", err)
			}
		})
	}
}

func TestMapPDUToFrameCanFrameHoldsOnePDU(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreateCanFrame("Frame1", 8); err != nil {
		t.Fatalf("CreateCanFrame: %v", err)
	}
	if _, err := s.CreatePDU("AData", PDUKindISignal, 4); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreatePDU("BData", PDUKindISignal, 4); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}

	if _, err := s.MapPDUToFrame("Frame1", "AData", 0, MostSignificantByteLast, nil); err != nil {
		t.Fatalf("first mapping: %v", err)
	}
	_, err := s.MapPDUToFrame("Frame1", "BData", 32, MostSignificantByteLast, nil)
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)
}

func TestMapPDUToFrameMixedByteOrder(t *testing.T) {
	s := flexrayFrameFixture(t, 4, 4)

	if _, err := s.MapPDUToFrame("Frame1", "AData", 0, MostSignificantByteLast, nil); err != nil {
		t.Fatalf("first mapping: %v", err)
	}
	_, err := s.MapPDUToFrame("Frame1", "BData", 39, MostSignificantByteFirst, nil)
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)
}

func TestMapPDUToFrameDetectsOverlap(t *testing.T) {
	s := flexrayFrameFixture(t, 4, 4, 4)

	if _, err := s.MapPDUToFrame("Frame1", "AData", 0, MostSignificantByteLast, nil); err != nil {
		t.Fatalf("first mapping: %v", err)
	}
	_, err := s.MapPDUToFrame("Frame1", "BData", 24, MostSignificantByteLast, nil)
	assertErrCode(t, err, errors.ErrCodeOverlap)

	// the failed placement reserved nothing, the upper half is still free
	if _, err := s.MapPDUToFrame("Frame1", "CData", 32, MostSignificantByteLast, nil); err != nil {
		t.Fatalf("mapping after failed placement: %v", err)
	}
	if got := len(s.Frames["Frame1"].PDUMappings); got != 2 {
		t.Errorf("frame has %d mappings, want 2", got)
	}
}

func TestMapPDUToFrameRejectsOversizedPDU(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreateFlexrayFrame("Small", 4); err != nil {
		t.Fatalf("CreateFlexrayFrame: %v", err)
	}
	if _, err := s.CreatePDU("Big", PDUKindISignal, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}

	_, err := s.MapPDUToFrame("Small", "Big", 0, MostSignificantByteLast, nil)
	assertErrCode(t, err, errors.ErrCodeOverlap)
}

func TestMapPDUToFrameUpdateBits(t *testing.T) {
	s := flexrayFrameFixture(t, 4, 2, 1)

	if _, err := s.MapPDUToFrame("Frame1", "AData", 0, MostSignificantByteLast, intRef(32)); err != nil {
		t.Fatalf("first mapping: %v", err)
	}
	// BData fits behind AData, but its update bit is already taken
	_, err := s.MapPDUToFrame("Frame1", "BData", 40, MostSignificantByteLast, intRef(32))
	assertErrCode(t, err, errors.ErrCodeOverlap)

	if _, err := s.MapPDUToFrame("Frame1", "BData", 40, MostSignificantByteLast, intRef(33)); err != nil {
		t.Fatalf("mapping with free update bit: %v", err)
	}
}

func TestMapPDUToFrameAssignsUniqueMappingNames(t *testing.T) {
	s := flexrayFrameFixture(t, 2)

	first, err := s.MapPDUToFrame("Frame1", "AData", 0, MostSignificantByteLast, nil)
	if err != nil {
		t.Fatalf("first mapping: %v", err)
	}
	second, err := s.MapPDUToFrame("Frame1", "AData", 16, MostSignificantByteLast, nil)
	if err != nil {
		t.Fatalf("second mapping: %v", err)
	}

	if first.Name != "AData" || second.Name != "AData_1" {
		t.Errorf("mapping names = %q, %q, want AData, AData_1", first.Name, second.Name)
	}
}
