package render

import (
	"context"
	"strings"
	"testing"

	"github.com/busweaver/busweaver/pkg/topology"
)

func demoSystem(t *testing.T) *topology.System {
	t.Helper()
	s := topology.NewSystem("Demo")

	mustNot := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("build system: %v", err)
		}
	}

	_, err := s.CreateCluster("Powertrain", topology.ClusterKindCan)
	mustNot(err)
	_, err = s.CreatePhysicalChannel("Powertrain", "Main")
	mustNot(err)

	_, err = s.CreateECUInstance("Engine")
	mustNot(err)
	_, err = s.CreateCommunicationController("Engine", "EngineCan", topology.ClusterKindCan)
	mustNot(err)
	_, err = s.ConnectPhysicalChannel("EngineCan", "EngineConn", "Main")
	mustNot(err)

	_, err = s.CreateSignal("Speed", 10)
	mustNot(err)
	_, err = s.CreatePDU("EngineData", topology.PDUKindISignal, 2)
	mustNot(err)
	_, err = s.MapSignalToPDU("EngineData", "Speed", 0, topology.MostSignificantByteLast, nil, topology.TransferPropertyTriggered)
	mustNot(err)

	_, err = s.CreateCanFrame("EngineFrame", 8)
	mustNot(err)
	_, err = s.MapPDUToFrame("EngineFrame", "EngineData", 0, topology.MostSignificantByteLast, nil)
	mustNot(err)
	_, err = s.TriggerCanFrame("Main", "EngineFrame", topology.CanFrameTriggeringSpec{
		Identifier:     0x120,
		AddressingMode: topology.CanAddressingModeStandard,
		FrameType:      topology.CanFrameTypeAny,
	})
	mustNot(err)
	_, err = s.ConnectFrameTriggeringToECU("FT_EngineFrame", "Engine", topology.DirectionOut)
	mustNot(err)

	return s
}

func TestToDOT_Basic(t *testing.T) {
	dot := ToDOT(demoSystem(t), Options{})

	for _, want := range []string{
		"digraph System",
		`label="Demo"`,
		"subgraph cluster_0",
		`"Powertrain (can)"`,
		`"channel:Main"`,
		`"ecu:Engine"`,
		`"frame:EngineFrame"`,
		`"frame:EngineFrame" -> "channel:Main" [label="0x120"]`,
		`"ecu:Engine" -> "channel:Main" [dir=none`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() output missing %q:\n%s", want, dot)
		}
	}

	if strings.Contains(dot, "signal:Speed") {
		t.Error("ToDOT() basic output should not contain signals")
	}
}

func TestToDOT_Detailed(t *testing.T) {
	dot := ToDOT(demoSystem(t), Options{Detailed: true})

	for _, want := range []string{
		`"pdu:EngineData" -> "frame:EngineFrame" [label="@0"`,
		`"signal:Speed" -> "pdu:EngineData" [label="@0"`,
		`"ecu:Engine" -> "frame:EngineFrame" [style=dotted, label="tx"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() detailed output missing %q:\n%s", want, dot)
		}
	}
}

func TestToDOT_DirectPDU(t *testing.T) {
	s := topology.NewSystem("Backbone")
	if _, err := s.CreateCluster("Core", topology.ClusterKindEthernet); err != nil {
		t.Fatalf("CreateCluster: %v", err)
	}
	if _, err := s.CreateEthernetPhysicalChannel("Core", "Diag", &topology.VlanInfo{Name: "VLAN_2", ID: 2}); err != nil {
		t.Fatalf("CreateEthernetPhysicalChannel: %v", err)
	}
	if _, err := s.CreatePDU("DiagData", topology.PDUKindDcm, 64); err != nil {
		t.Fatalf("CreatePDU: %v", err)
	}
	if _, err := s.TriggerPDU("Diag", "DiagData"); err != nil {
		t.Fatalf("TriggerPDU: %v", err)
	}

	dot := ToDOT(s, Options{})

	if !strings.Contains(dot, `"pdu:DiagData" -> "channel:Diag" [label="direct"]`) {
		t.Errorf("ToDOT() output missing direct PDU edge:\n%s", dot)
	}
	if !strings.Contains(dot, "VLAN 2") {
		t.Errorf("ToDOT() output missing VLAN label:\n%s", dot)
	}
}

func TestToDOT_Deterministic(t *testing.T) {
	s := demoSystem(t)
	first := ToDOT(s, Options{Detailed: true})
	for i := 0; i < 5; i++ {
		if got := ToDOT(s, Options{Detailed: true}); got != first {
			t.Fatal("ToDOT() output varies between calls")
		}
	}
}

func TestChannelLabel(t *testing.T) {
	flexray := &topology.PhysicalChannel{Name: "ChassisA", FlexrayChannel: topology.FlexrayChannelA}
	if got := channelLabel(flexray); got != "ChassisA\nch A" {
		t.Errorf("channelLabel() flexray = %q", got)
	}

	plain := &topology.PhysicalChannel{Name: "Main"}
	if got := channelLabel(plain); got != "Main" {
		t.Errorf("channelLabel() plain = %q", got)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	tests := []struct {
		name string
		svg  string
		want string
	}{
		{
			name: "with viewBox",
			svg:  `<svg viewBox="10 20 800 600" xmlns="http://www.w3.org/2000/svg">content</svg>`,
			want: `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 800.00 600.00" width="800" height="600">content</svg>`,
		},
		{
			name: "no viewBox",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg">content</svg>`,
			want: `<svg xmlns="http://www.w3.org/2000/svg">content</svg>`,
		},
		{
			name: "zero dimensions",
			svg:  `<svg viewBox="0 0 0 0">content</svg>`,
			want: `<svg viewBox="0 0 0 0">content</svg>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeViewBox([]byte(tt.svg))
			if string(got) != tt.want {
				t.Errorf("normalizeViewBox() = %q, want %q", string(got), tt.want)
			}
		})
	}
}

func TestRenderSVG(t *testing.T) {
	dot := ToDOT(demoSystem(t), Options{})
	svg, err := RenderSVG(context.Background(), dot)
	if err != nil {
		t.Fatalf("RenderSVG() error: %v", err)
	}

	if !strings.Contains(string(svg), "<svg") {
		t.Error("RenderSVG() output missing <svg> tag")
	}
	if !strings.Contains(string(svg), "EngineFrame") {
		t.Error("RenderSVG() output missing frame label")
	}
}

func TestRenderSVG_InvalidDOT(t *testing.T) {
	_, err := RenderSVG(context.Background(), "not valid DOT {{{")
	if err == nil {
		t.Error("RenderSVG() should return error for invalid DOT")
	}
}
