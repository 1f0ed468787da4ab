package topology

import (
	"testing"

	"github.com/busweaver/busweaver/pkg/errors"
)

func TestCreatePDU(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreatePDU("EngineData", PDUKindISignal, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}

	_, err := s.CreatePDU("EngineData", PDUKindNm, 8)
	assertErrCode(t, err, errors.ErrCodeAlreadyExists)

	_, err = s.CreatePDU("Broken", PDUKind("telegram"), 8)
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)

	_, err = s.CreatePDU("Negative", PDUKindISignal, -1)
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)
}

func TestMapSignalToPDURequiresSignalPDU(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreatePDU("NmPdu", PDUKindNm, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreateSignal("Alive", 1); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}

	_, err := s.MapSignalToPDU("NmPdu", "Alive", 0, MostSignificantByteLast, nil, TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeConversion)
}

func TestMapSignalToPDUValidatesArguments(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreatePDU("EngineData", PDUKindISignal, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreateSignal("Speed", 10); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}

	_, err := s.MapSignalToPDU("EngineData", "Speed", 0, ByteOrder("middle-endian"), nil, TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)

	_, err = s.MapSignalToPDU("EngineData", "Speed", 0, MostSignificantByteLast, nil, TransferProperty("sometimes"))
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)

	_, err = s.MapSignalToPDU("EngineData", "Ghost", 0, MostSignificantByteLast, nil, TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeNotFound)

	_, err = s.MapSignalToPDU("Ghost", "Speed", 0, MostSignificantByteLast, nil, TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeNotFound)
}

func TestMapSignalToPDUPacksSignals(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreatePDU("Data", PDUKindISignal, 2); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	signals := []struct {
		name     string
		bits     int
		position int
	}{
		{"Low", 5, 0},
		{"Mid", 10, 5},
		{"High", 1, 15},
	}
	for _, sig := range signals {
		if _, err := s.CreateSignal(sig.name, sig.bits); err != nil {
			t.Fatalf("CreateSignal %s: %v", sig.name, err)
		}
		if _, err := s.MapSignalToPDU("Data", sig.name, sig.position, MostSignificantByteLast, nil, TransferPropertyPending); err != nil {
			t.Fatalf("map %s at bit %d: %v", sig.name, sig.position, err)
		}
	}

	// the PDU is completely filled, any further placement overlaps
	if _, err := s.CreateSignal("Extra", 1); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}
	_, err := s.MapSignalToPDU("Data", "Extra", 3, MostSignificantByteLast, nil, TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeOverlap)

	// positions past the end of the PDU are rejected as well
	_, err = s.MapSignalToPDU("Data", "Extra", 16, MostSignificantByteLast, nil, TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeOverlap)

	if got := len(s.PDUs["Data"].SignalMappings); got != 3 {
		t.Errorf("failed placements changed the mapping count to %d, want 3", got)
	}
}

func TestMapSignalToPDUUpdateBits(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreatePDU("Data", PDUKindISignal, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	for _, name := range []string{"First", "Second", "Third"} {
		bits := 8
		if name != "First" {
			bits = 7
		}
		if _, err := s.CreateSignal(name, bits); err != nil {
			t.Fatalf("CreateSignal %s: %v", name, err)
		}
	}

	if _, err := s.MapSignalToPDU("Data", "First", 0, MostSignificantByteLast, intRef(8), TransferPropertyPending); err != nil {
		t.Fatalf("map First: %v", err)
	}
	if _, err := s.MapSignalToPDU("Data", "Second", 9, MostSignificantByteLast, intRef(16), TransferPropertyPending); err != nil {
		t.Fatalf("map Second: %v", err)
	}

	// the update bit of First is already taken
	_, err := s.MapSignalToPDU("Data", "Third", 17, MostSignificantByteLast, intRef(8), TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeOverlap)
}

func TestMapSignalGroupBeforeMembers(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreatePDU("Data", PDUKindISignal, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreateSignalGroup("Gauges"); err != nil {
		t.Fatalf("CreateSignalGroup: %v", err)
	}
	if _, err := s.CreateSignal("Rpm", 16); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}
	if err := s.AddSignalToGroup("Gauges", "Rpm"); err != nil {
		t.Fatalf("AddSignalToGroup: %v", err)
	}

	// a grouped signal cannot be mapped before its group
	_, err := s.MapSignalToPDU("Data", "Rpm", 0, MostSignificantByteLast, nil, TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)

	mapping, err := s.MapSignalGroupToPDU("Data", "Gauges")
	if err != nil {
		t.Fatalf("MapSignalGroupToPDU: %v", err)
	}
	if mapping.GroupRef != "Gauges" || mapping.SignalRef != "" {
		t.Errorf("group mapping refs = %q/%q, want Gauges and empty", mapping.GroupRef, mapping.SignalRef)
	}

	if _, err := s.MapSignalToPDU("Data", "Rpm", 0, MostSignificantByteLast, nil, TransferPropertyPending); err != nil {
		t.Fatalf("map Rpm after group: %v", err)
	}

	// the group in another PDU does not help
	if _, err := s.CreatePDU("Other", PDUKindISignal, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreateSignal("Fuel", 8); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}
	if err := s.AddSignalToGroup("Gauges", "Fuel"); err != nil {
		t.Fatalf("AddSignalToGroup: %v", err)
	}
	_, err = s.MapSignalToPDU("Other", "Fuel", 0, MostSignificantByteLast, nil, TransferPropertyPending)
	assertErrCode(t, err, errors.ErrCodeInvalidParameter)
}

func TestMapSignalGroupToPDURequiresSignalPDU(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreatePDU("NmPdu", PDUKindNm, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreateSignalGroup("Gauges"); err != nil {
		t.Fatalf("CreateSignalGroup: %v", err)
	}

	_, err := s.MapSignalGroupToPDU("NmPdu", "Gauges")
	assertErrCode(t, err, errors.ErrCodeConversion)
}

func TestMapSignalToPDUAssignsUniqueMappingNames(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreatePDU("Data", PDUKindISignal, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreateSignal("Speed", 10); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}

	first, err := s.MapSignalToPDU("Data", "Speed", 0, MostSignificantByteLast, nil, TransferPropertyPending)
	if err != nil {
		t.Fatalf("first mapping: %v", err)
	}
	second, err := s.MapSignalToPDU("Data", "Speed", 16, MostSignificantByteLast, nil, TransferPropertyPending)
	if err != nil {
		t.Fatalf("second mapping: %v", err)
	}

	if first.Name != "Speed" || second.Name != "Speed_1" {
		t.Errorf("mapping names = %q, %q, want Speed, Speed_1", first.Name, second.Name)
	}
}

func TestMapSignalToPDUPropagatesToTriggeredPDU(t *testing.T) {
	s := ethernetFixture(t)
	if _, err := s.CreatePDU("CameraStatus", PDUKindISignal, 4); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreateSignal("Exposure", 12); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}
	pt, err := s.TriggerPDU("Untagged", "CameraStatus")
	if err != nil {
		t.Fatalf("TriggerPDU: %v", err)
	}
	if _, err := s.ConnectPDUTriggeringToECU(pt.Name, "Camera", DirectionOut); err != nil {
		t.Fatalf("ConnectPDUTriggeringToECU: %v", err)
	}

	if _, err := s.MapSignalToPDU("CameraStatus", "Exposure", 0, MostSignificantByteLast, nil, TransferPropertyTriggered); err != nil {
		t.Fatalf("MapSignalToPDU: %v", err)
	}

	st, ok := s.SignalTriggerings["ST_Exposure"]
	if !ok {
		t.Fatal("signal triggering ST_Exposure not found")
	}
	if len(pt.SignalTriggeringRefs) != 1 || pt.SignalTriggeringRefs[0] != st.Name {
		t.Errorf("PDU triggering references %v, want [%s]", pt.SignalTriggeringRefs, st.Name)
	}
	if _, ok := s.Ports["ST_Exposure_Tx"]; !ok {
		t.Error("signal port ST_Exposure_Tx not derived from the PDU port")
	}
}
