package manifest

import (
	"fmt"

	"github.com/busweaver/busweaver/pkg/topology"
)

// Build constructs a topology system by replaying the manifest through
// the construction operations. The first violated rule aborts the build;
// the returned error names the entity being declared and carries the
// structured code of the underlying violation.
func (m *Manifest) Build() (*topology.System, error) {
	sys := topology.NewSystem(m.System)

	if err := m.buildClusters(sys); err != nil {
		return nil, err
	}
	if err := m.buildECUs(sys); err != nil {
		return nil, err
	}
	if err := m.buildSignals(sys); err != nil {
		return nil, err
	}
	if err := m.buildPDUs(sys); err != nil {
		return nil, err
	}
	if err := m.buildFrames(sys); err != nil {
		return nil, err
	}
	if err := m.buildTriggerings(sys); err != nil {
		return nil, err
	}
	if err := m.buildTransformations(sys); err != nil {
		return nil, err
	}
	return sys, nil
}

func (m *Manifest) buildClusters(sys *topology.System) error {
	for _, cluster := range m.Clusters {
		kind := topology.ClusterKind(cluster.Kind)
		if _, err := sys.CreateCluster(cluster.Name, kind); err != nil {
			return fmt.Errorf("cluster %q: %w", cluster.Name, err)
		}
		for _, channel := range cluster.Channels {
			var err error
			switch {
			case channel.FlexrayChannel != "":
				_, err = sys.CreateFlexrayPhysicalChannel(cluster.Name, channel.Name,
					topology.FlexrayChannelName(channel.FlexrayChannel))
			case kind == topology.ClusterKindFlexray:
				_, err = sys.CreateFlexrayPhysicalChannel(cluster.Name, channel.Name, topology.FlexrayChannelA)
			case kind == topology.ClusterKindEthernet:
				var vlan *topology.VlanInfo
				if channel.Vlan != nil {
					vlan = &topology.VlanInfo{Name: channel.Vlan.Name, ID: channel.Vlan.ID}
				}
				_, err = sys.CreateEthernetPhysicalChannel(cluster.Name, channel.Name, vlan)
			default:
				_, err = sys.CreatePhysicalChannel(cluster.Name, channel.Name)
			}
			if err != nil {
				return fmt.Errorf("channel %q: %w", channel.Name, err)
			}
		}
	}
	return nil
}

func (m *Manifest) buildECUs(sys *topology.System) error {
	for _, ecu := range m.ECUs {
		if _, err := sys.CreateECUInstance(ecu.Name); err != nil {
			return fmt.Errorf("ECU %q: %w", ecu.Name, err)
		}
		for _, ctrl := range ecu.Controllers {
			if _, err := sys.CreateCommunicationController(ecu.Name, ctrl.Name, topology.ClusterKind(ctrl.Kind)); err != nil {
				return fmt.Errorf("controller %q: %w", ctrl.Name, err)
			}
			for _, conn := range ctrl.Connections {
				if _, err := sys.ConnectPhysicalChannel(ctrl.Name, conn.Connector, conn.Channel); err != nil {
					return fmt.Errorf("connector %q: %w", conn.Connector, err)
				}
			}
		}
	}
	return nil
}

func (m *Manifest) buildSignals(sys *topology.System) error {
	for _, signal := range m.Signals {
		if _, err := sys.CreateSignal(signal.Name, signal.BitLength); err != nil {
			return fmt.Errorf("signal %q: %w", signal.Name, err)
		}
	}
	for _, group := range m.SignalGroups {
		if _, err := sys.CreateSignalGroup(group.Name); err != nil {
			return fmt.Errorf("signal group %q: %w", group.Name, err)
		}
		for _, member := range group.Signals {
			if err := sys.AddSignalToGroup(group.Name, member); err != nil {
				return fmt.Errorf("signal group %q: %w", group.Name, err)
			}
		}
	}
	return nil
}

func (m *Manifest) buildPDUs(sys *topology.System) error {
	for _, pdu := range m.PDUs {
		if _, err := sys.CreatePDU(pdu.Name, topology.PDUKind(pdu.Kind), pdu.ByteLength); err != nil {
			return fmt.Errorf("PDU %q: %w", pdu.Name, err)
		}
		for _, group := range pdu.Groups {
			if _, err := sys.MapSignalGroupToPDU(pdu.Name, group); err != nil {
				return fmt.Errorf("PDU %q, group %q: %w", pdu.Name, group, err)
			}
		}
		for _, sm := range pdu.Signals {
			_, err := sys.MapSignalToPDU(pdu.Name, sm.Signal, sm.StartPosition,
				topology.ByteOrder(sm.ByteOrder), sm.UpdateBit,
				topology.TransferProperty(sm.TransferProperty))
			if err != nil {
				return fmt.Errorf("PDU %q, signal %q: %w", pdu.Name, sm.Signal, err)
			}
		}
	}
	return nil
}

func (m *Manifest) buildFrames(sys *topology.System) error {
	for _, frame := range m.Frames {
		var err error
		switch topology.ClusterKind(frame.Kind) {
		case topology.ClusterKindCan:
			_, err = sys.CreateCanFrame(frame.Name, frame.ByteLength)
		case topology.ClusterKindFlexray:
			_, err = sys.CreateFlexrayFrame(frame.Name, frame.ByteLength)
		default:
			err = fmt.Errorf("unsupported frame kind %q", frame.Kind)
		}
		if err != nil {
			return fmt.Errorf("frame %q: %w", frame.Name, err)
		}
		for _, pm := range frame.PDUs {
			_, err := sys.MapPDUToFrame(frame.Name, pm.PDU, pm.StartPosition,
				topology.ByteOrder(pm.ByteOrder), pm.UpdateBit)
			if err != nil {
				return fmt.Errorf("frame %q, PDU %q: %w", frame.Name, pm.PDU, err)
			}
		}
	}
	return nil
}

func (m *Manifest) buildTriggerings(sys *topology.System) error {
	for _, trig := range m.Triggerings {
		switch {
		case trig.Frame != "":
			if err := m.buildFrameTriggering(sys, trig); err != nil {
				return err
			}
		case trig.PDU != "":
			pt, err := sys.TriggerPDU(trig.Channel, trig.PDU)
			if err != nil {
				return fmt.Errorf("triggering of PDU %q: %w", trig.PDU, err)
			}
			if err := connectECUs(trig, func(ecu string, dir topology.Direction) error {
				_, err := sys.ConnectPDUTriggeringToECU(pt.Name, ecu, dir)
				return err
			}); err != nil {
				return fmt.Errorf("triggering of PDU %q: %w", trig.PDU, err)
			}
		default:
			return fmt.Errorf("triggering on channel %q: names neither a frame nor a PDU", trig.Channel)
		}
	}
	return nil
}

func (m *Manifest) buildFrameTriggering(sys *topology.System, trig Triggering) error {
	var (
		ft  *topology.FrameTriggering
		err error
	)
	switch {
	case trig.Can != nil:
		ft, err = sys.TriggerCanFrame(trig.Channel, trig.Frame, topology.CanFrameTriggeringSpec{
			Identifier:     trig.Can.ID,
			AddressingMode: topology.CanAddressingMode(trig.Can.AddressingMode),
			FrameType:      topology.CanFrameType(trig.Can.FrameType),
		})
	case trig.Flexray != nil:
		ft, err = sys.TriggerFlexrayFrame(trig.Channel, trig.Frame, topology.FlexrayFrameTriggeringSpec{
			SlotID: trig.Flexray.Slot,
			Cycle: topology.FlexrayCommunicationCycle{
				CycleCounter:    trig.Flexray.CycleCounter,
				BaseCycle:       trig.Flexray.BaseCycle,
				CycleRepetition: trig.Flexray.CycleRepetition,
			},
		})
	default:
		err = fmt.Errorf("missing can or flexray parameters")
	}
	if err != nil {
		return fmt.Errorf("triggering of frame %q: %w", trig.Frame, err)
	}

	if err := connectECUs(trig, func(ecu string, dir topology.Direction) error {
		_, err := sys.ConnectFrameTriggeringToECU(ft.Name, ecu, dir)
		return err
	}); err != nil {
		return fmt.Errorf("triggering of frame %q: %w", trig.Frame, err)
	}
	return nil
}

func connectECUs(trig Triggering, connect func(ecu string, dir topology.Direction) error) error {
	for _, ecu := range trig.Senders {
		if err := connect(ecu, topology.DirectionOut); err != nil {
			return err
		}
	}
	for _, ecu := range trig.Receivers {
		if err := connect(ecu, topology.DirectionIn); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) buildTransformations(sys *topology.System) error {
	for _, set := range m.TransformationSets {
		if _, err := sys.CreateTransformationSet(set.Name); err != nil {
			return fmt.Errorf("transformation set %q: %w", set.Name, err)
		}
		for _, tech := range set.Com {
			_, err := sys.CreateComTransformationTechnology(set.Name, tech.Name, topology.ComTransformationConfig{
				ISignalIPDULength: tech.ISignalIPDULength,
			})
			if err != nil {
				return fmt.Errorf("technology %q: %w", tech.Name, err)
			}
		}
		for _, tech := range set.SomeIP {
			_, err := sys.CreateSomeIPTransformationTechnology(set.Name, tech.Name, topology.SomeIPTransformationConfig{
				Alignment:        tech.Alignment,
				ByteOrder:        topology.ByteOrder(tech.ByteOrder),
				InterfaceVersion: tech.InterfaceVersion,
			})
			if err != nil {
				return fmt.Errorf("technology %q: %w", tech.Name, err)
			}
		}
		for _, tech := range set.E2E {
			cfg := topology.E2ETransformationConfig{
				Profile:            topology.E2EProfile(tech.Profile),
				ZeroHeaderLength:   tech.ZeroHeaderLength,
				TransformInPlace:   tech.TransformInPlace,
				DataIDNibbleOffset: tech.DataIDNibbleOffset,
				CounterOffset:      tech.CounterOffset,
				CRCOffset:          tech.CRCOffset,
				WindowSize:         tech.WindowSize,
			}
			if tech.DataIDMode != "" {
				mode := topology.E2EDataIDMode(tech.DataIDMode)
				cfg.DataIDMode = &mode
			}
			if _, err := sys.CreateE2ETransformationTechnology(set.Name, tech.Name, cfg); err != nil {
				return fmt.Errorf("technology %q: %w", tech.Name, err)
			}
		}
		for _, tech := range set.Generic {
			_, err := sys.CreateGenericTransformationTechnology(set.Name, tech.Name, topology.GenericTransformationConfig{
				ProtocolName:    tech.ProtocolName,
				ProtocolVersion: tech.ProtocolVersion,
				HeaderLength:    tech.HeaderLength,
				InPlace:         tech.InPlace,
			})
			if err != nil {
				return fmt.Errorf("technology %q: %w", tech.Name, err)
			}
		}
		for _, chain := range set.Chains {
			_, err := sys.CreateDataTransformation(set.Name, chain.Name, chain.Techs, chain.ExecuteDespiteDataUnavailability)
			if err != nil {
				return fmt.Errorf("data transformation %q: %w", chain.Name, err)
			}
		}
	}
	return nil
}
