package topology

import (
	"testing"

	"github.com/busweaver/busweaver/pkg/errors"
)

// assertErrCode fails the test unless err carries the expected code.
func assertErrCode(t *testing.T, err error, code errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !errors.Is(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

// canFixture builds a CAN cluster with a single channel and two connected
// ECUs. Engine transmits, Dashboard receives.
func canFixture(t *testing.T) *System {
	t.Helper()
	s := NewSystem("Vehicle")
	if _, err := s.CreateCluster("Powertrain", ClusterKindCan); err != nil {
		t.Fatalf("CreateCluster: %v", err)
	}
	if _, err := s.CreatePhysicalChannel("Powertrain", "Main"); err != nil {
		t.Fatalf("CreatePhysicalChannel: %v", err)
	}
	for _, ecu := range []string{"Engine", "Dashboard"} {
		if _, err := s.CreateECUInstance(ecu); err != nil {
			t.Fatalf("CreateECUInstance: %v", err)
		}
		if _, err := s.CreateCommunicationController(ecu, ecu+"Can", ClusterKindCan); err != nil {
			t.Fatalf("CreateCommunicationController: %v", err)
		}
		if _, err := s.ConnectPhysicalChannel(ecu+"Can", ecu+"Conn", "Main"); err != nil {
			t.Fatalf("ConnectPhysicalChannel: %v", err)
		}
	}
	return s
}

// canContentFixture extends canFixture with a frame, a PDU and a signal
// that are not yet mapped or triggered.
func canContentFixture(t *testing.T) *System {
	t.Helper()
	s := canFixture(t)
	if _, err := s.CreateSignal("Speed", 10); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}
	if _, err := s.CreatePDU("EngineData", PDUKindISignal, 8); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.CreateCanFrame("Frame1", 8); err != nil {
		t.Fatalf("CreateCanFrame: %v", err)
	}
	return s
}

// ethernetFixture builds an Ethernet cluster with an untagged channel and
// two connected ECUs.
func ethernetFixture(t *testing.T) *System {
	t.Helper()
	s := NewSystem("Vehicle")
	if _, err := s.CreateCluster("Backbone", ClusterKindEthernet); err != nil {
		t.Fatalf("CreateCluster: %v", err)
	}
	if _, err := s.CreateEthernetPhysicalChannel("Backbone", "Untagged", nil); err != nil {
		t.Fatalf("CreateEthernetPhysicalChannel: %v", err)
	}
	for _, ecu := range []string{"Camera", "HeadUnit"} {
		if _, err := s.CreateECUInstance(ecu); err != nil {
			t.Fatalf("CreateECUInstance: %v", err)
		}
		if _, err := s.CreateCommunicationController(ecu, ecu+"Eth", ClusterKindEthernet); err != nil {
			t.Fatalf("CreateCommunicationController: %v", err)
		}
		if _, err := s.ConnectPhysicalChannel(ecu+"Eth", ecu+"Conn", "Untagged"); err != nil {
			t.Fatalf("ConnectPhysicalChannel: %v", err)
		}
	}
	return s
}

func TestDerivedGraphIgnoresConstructionOrder(t *testing.T) {
	mapSignal := func(s *System) error {
		_, err := s.MapSignalToPDU("EngineData", "Speed", 5, MostSignificantByteLast, nil, TransferPropertyPending)
		return err
	}
	mapPDU := func(s *System) error {
		_, err := s.MapPDUToFrame("Frame1", "EngineData", 0, MostSignificantByteLast, nil)
		return err
	}
	trigger := func(s *System) error {
		_, err := s.TriggerCanFrame("Main", "Frame1", CanFrameTriggeringSpec{
			Identifier:     0x123,
			AddressingMode: CanAddressingModeStandard,
			FrameType:      CanFrameTypeCan20,
		})
		return err
	}
	connectTx := func(s *System) error {
		_, err := s.ConnectFrameTriggeringToECU("FT_Frame1", "Engine", DirectionOut)
		return err
	}
	connectRx := func(s *System) error {
		_, err := s.ConnectFrameTriggeringToECU("FT_Frame1", "Dashboard", DirectionIn)
		return err
	}

	orders := []struct {
		name  string
		steps []func(*System) error
	}{
		{"map content before triggering", []func(*System) error{mapSignal, mapPDU, trigger, connectTx, connectRx}},
		{"trigger empty frame first", []func(*System) error{trigger, connectTx, connectRx, mapPDU, mapSignal}},
		{"connect between mappings", []func(*System) error{trigger, mapPDU, connectTx, mapSignal, connectRx}},
	}
	for _, order := range orders {
		t.Run(order.name, func(t *testing.T) {
			s := canContentFixture(t)
			for i, step := range order.steps {
				if err := step(s); err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
			}
			assertSpeedFrameGraph(t, s)
		})
	}
}

// assertSpeedFrameGraph checks the derived graph that every construction
// order of the Speed/EngineData/Frame1 scenario must converge to.
func assertSpeedFrameGraph(t *testing.T, s *System) {
	t.Helper()
	if len(s.FrameTriggerings) != 1 || len(s.PDUTriggerings) != 1 || len(s.SignalTriggerings) != 1 {
		t.Fatalf("expected one triggering per layer, got %d frame, %d PDU, %d signal",
			len(s.FrameTriggerings), len(s.PDUTriggerings), len(s.SignalTriggerings))
	}
	ft, ok := s.FrameTriggerings["FT_Frame1"]
	if !ok {
		t.Fatal("frame triggering FT_Frame1 not found")
	}
	pt, ok := s.PDUTriggerings["PT_EngineData"]
	if !ok {
		t.Fatal("PDU triggering PT_EngineData not found")
	}
	st, ok := s.SignalTriggerings["ST_Speed"]
	if !ok {
		t.Fatal("signal triggering ST_Speed not found")
	}
	if len(ft.PDUTriggeringRefs) != 1 || ft.PDUTriggeringRefs[0] != pt.Name {
		t.Errorf("frame triggering references %v, want [%s]", ft.PDUTriggeringRefs, pt.Name)
	}
	if len(pt.SignalTriggeringRefs) != 1 || pt.SignalTriggeringRefs[0] != st.Name {
		t.Errorf("PDU triggering references %v, want [%s]", pt.SignalTriggeringRefs, st.Name)
	}

	wantPorts := []string{
		"FT_Frame1_Tx", "FT_Frame1_Rx",
		"PT_EngineData_Tx", "PT_EngineData_Rx",
		"ST_Speed_Tx", "ST_Speed_Rx",
	}
	if len(s.Ports) != len(wantPorts) {
		t.Fatalf("expected %d ports, got %d", len(wantPorts), len(s.Ports))
	}
	for _, name := range wantPorts {
		if _, ok := s.Ports[name]; !ok {
			t.Errorf("port %s not found", name)
		}
	}
	if port := s.Ports["FT_Frame1_Tx"]; port.ECURef != "Engine" || port.Direction != DirectionOut {
		t.Errorf("FT_Frame1_Tx belongs to %s/%s, want Engine/out", port.ECURef, port.Direction)
	}
	if port := s.Ports["ST_Speed_Rx"]; port.ECURef != "Dashboard" || port.Direction != DirectionIn {
		t.Errorf("ST_Speed_Rx belongs to %s/%s, want Dashboard/in", port.ECURef, port.Direction)
	}

	// each ECU reaches frame, PDU and signal through its connector
	for _, conn := range []string{"EngineConn", "DashboardConn"} {
		if got := len(s.Connectors[conn].PortRefs); got != 3 {
			t.Errorf("connector %s has %d ports, want 3", conn, got)
		}
	}
}

func TestConnectFrameTriggeringIsIdempotent(t *testing.T) {
	s := canContentFixture(t)
	if _, err := s.MapSignalToPDU("EngineData", "Speed", 5, MostSignificantByteLast, nil, TransferPropertyPending); err != nil {
		t.Fatalf("MapSignalToPDU: %v", err)
	}
	if _, err := s.MapPDUToFrame("Frame1", "EngineData", 0, MostSignificantByteLast, nil); err != nil {
		t.Fatalf("MapPDUToFrame: %v", err)
	}
	if _, err := s.TriggerCanFrame("Main", "Frame1", CanFrameTriggeringSpec{
		Identifier:     0x123,
		AddressingMode: CanAddressingModeStandard,
		FrameType:      CanFrameTypeCan20,
	}); err != nil {
		t.Fatalf("TriggerCanFrame: %v", err)
	}

	first, err := s.ConnectFrameTriggeringToECU("FT_Frame1", "Engine", DirectionOut)
	if err != nil {
		t.Fatalf("first connect: %v", err)
	}
	second, err := s.ConnectFrameTriggeringToECU("FT_Frame1", "Engine", DirectionOut)
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if first.Name != second.Name {
		t.Errorf("repeated connect created port %s, want %s", second.Name, first.Name)
	}
	if len(s.Ports) != 3 {
		t.Errorf("expected 3 ports after repeated connect, got %d", len(s.Ports))
	}
}

func TestConnectRequiresChannelConnection(t *testing.T) {
	s := canContentFixture(t)
	if _, err := s.TriggerCanFrame("Main", "Frame1", CanFrameTriggeringSpec{
		Identifier:     0x123,
		AddressingMode: CanAddressingModeStandard,
		FrameType:      CanFrameTypeCan20,
	}); err != nil {
		t.Fatalf("TriggerCanFrame: %v", err)
	}
	if _, err := s.CreateECUInstance("Gateway"); err != nil {
		t.Fatalf("CreateECUInstance: %v", err)
	}

	_, err := s.ConnectFrameTriggeringToECU("FT_Frame1", "Gateway", DirectionIn)
	assertErrCode(t, err, errors.ErrCodeNotConnected)
	if len(s.Ports) != 0 {
		t.Errorf("failed connect left %d ports behind", len(s.Ports))
	}
}

func TestUniqueName(t *testing.T) {
	taken := map[string]bool{"Frame": true, "Frame_1": true}
	lookup := func(n string) bool { return taken[n] }

	if got := uniqueName("Frame", lookup); got != "Frame_2" {
		t.Errorf("uniqueName(Frame) = %s, want Frame_2", got)
	}
	if got := uniqueName("Other", lookup); got != "Other" {
		t.Errorf("uniqueName(Other) = %s, want Other", got)
	}
}

func TestEntityNamesAreValidated(t *testing.T) {
	s := NewSystem("Vehicle")
	if _, err := s.CreateCluster("1Powertrain", ClusterKindCan); err == nil {
		t.Fatal("expected error for name starting with a digit")
	} else {
		assertErrCode(t, err, errors.ErrCodeInvalidName)
	}
	if _, err := s.CreateSignal("my-signal", 8); err == nil {
		t.Fatal("expected error for name containing a dash")
	} else {
		assertErrCode(t, err, errors.ErrCodeInvalidName)
	}
}
