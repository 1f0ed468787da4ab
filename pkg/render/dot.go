package render

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/busweaver/busweaver/pkg/topology"
)

// Options configures topology diagram rendering.
type Options struct {
	// Detailed adds the PDUs and signals carried by each frame and the
	// send and receive edges of every connected ECU. When false, only
	// clusters, channels, ECUs and frames are shown.
	Detailed bool
}

// ToDOT converts a system to Graphviz DOT format. Clusters become
// subgraphs holding their channels, ECUs attach to channels through their
// connectors, and every triggering becomes a labeled edge onto the channel
// carrying it. The output is deterministic for a given system.
//
// The resulting DOT string can be rendered using [RenderSVG], [RenderPNG],
// or [RenderPDF].
func ToDOT(sys *topology.System, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph System {\n")
	fmt.Fprintf(&buf, "  label=%q;\n", sys.Name)
	buf.WriteString("  labelloc=t;\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.4;\n")

	writeClusters(&buf, sys)
	writeECUs(&buf, sys)
	writeFrames(&buf, sys, opts)
	writeDirectPDUs(&buf, sys)
	if opts.Detailed {
		writeSignals(&buf, sys)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeClusters(buf *bytes.Buffer, sys *topology.System) {
	for i, name := range slices.Sorted(maps.Keys(sys.Clusters)) {
		cluster := sys.Clusters[name]
		fmt.Fprintf(buf, "\n  subgraph cluster_%d {\n", i)
		fmt.Fprintf(buf, "    label=%q;\n", fmt.Sprintf("%s (%s)", cluster.Name, cluster.Kind))
		buf.WriteString("    style=dashed;\n")
		buf.WriteString("    color=grey;\n")
		for _, ref := range sorted(cluster.ChannelRefs) {
			channel, ok := sys.Channels[ref]
			if !ok {
				continue
			}
			fmt.Fprintf(buf, "    %q [label=%q, fillcolor=lightyellow];\n",
				nodeID("channel", channel.Name), channelLabel(channel))
		}
		buf.WriteString("  }\n")
	}
}

func writeECUs(buf *bytes.Buffer, sys *topology.System) {
	buf.WriteString("\n")
	for _, name := range slices.Sorted(maps.Keys(sys.ECUs)) {
		fmt.Fprintf(buf, "  %q [label=%q, fillcolor=lightblue];\n", nodeID("ecu", name), name)
	}
	for _, name := range slices.Sorted(maps.Keys(sys.Connectors)) {
		conn := sys.Connectors[name]
		fmt.Fprintf(buf, "  %q -> %q [dir=none, style=dashed, color=grey];\n",
			nodeID("ecu", conn.ECURef), nodeID("channel", conn.ChannelRef))
	}
}

func writeFrames(buf *bytes.Buffer, sys *topology.System, opts Options) {
	buf.WriteString("\n")
	for _, name := range slices.Sorted(maps.Keys(sys.Frames)) {
		frame := sys.Frames[name]
		fmt.Fprintf(buf, "  %q [label=%q];\n",
			nodeID("frame", name), fmt.Sprintf("%s\n%d B", name, frame.ByteLength))
		if opts.Detailed {
			for _, m := range frame.PDUMappings {
				fmt.Fprintf(buf, "  %q [label=%q];\n", nodeID("pdu", m.PDURef), m.PDURef)
				fmt.Fprintf(buf, "  %q -> %q [label=%q, fontsize=10];\n",
					nodeID("pdu", m.PDURef), nodeID("frame", name), fmt.Sprintf("@%d", m.StartPosition))
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(sys.FrameTriggerings)) {
		ft := sys.FrameTriggerings[name]
		fmt.Fprintf(buf, "  %q -> %q [label=%q];\n",
			nodeID("frame", ft.FrameRef), nodeID("channel", ft.ChannelRef), triggeringLabel(ft))
		if opts.Detailed {
			writePortEdges(buf, sys, ft.PortRefs, nodeID("frame", ft.FrameRef))
		}
	}
}

// writeDirectPDUs draws PDUs that are triggered directly on a channel,
// without a carrying frame.
func writeDirectPDUs(buf *bytes.Buffer, sys *topology.System) {
	framed := make(map[string]bool)
	for _, frame := range sys.Frames {
		for _, ft := range frame.TriggeringRefs {
			if t, ok := sys.FrameTriggerings[ft]; ok {
				for _, pt := range t.PDUTriggeringRefs {
					framed[pt] = true
				}
			}
		}
	}

	for _, name := range slices.Sorted(maps.Keys(sys.PDUTriggerings)) {
		if framed[name] {
			continue
		}
		pt := sys.PDUTriggerings[name]
		fmt.Fprintf(buf, "  %q [label=%q];\n", nodeID("pdu", pt.PDURef), pt.PDURef)
		fmt.Fprintf(buf, "  %q -> %q [label=\"direct\"];\n",
			nodeID("pdu", pt.PDURef), nodeID("channel", pt.ChannelRef))
	}
}

func writeSignals(buf *bytes.Buffer, sys *topology.System) {
	buf.WriteString("\n")
	for _, name := range slices.Sorted(maps.Keys(sys.PDUs)) {
		pdu := sys.PDUs[name]
		declared := false
		for _, m := range pdu.SignalMappings {
			if m.SignalRef == "" {
				continue
			}
			if !declared {
				fmt.Fprintf(buf, "  %q [label=%q];\n", nodeID("pdu", name), name)
				declared = true
			}
			fmt.Fprintf(buf, "  %q [label=%q, fontsize=10];\n", nodeID("signal", m.SignalRef), m.SignalRef)
			fmt.Fprintf(buf, "  %q -> %q [label=%q, fontsize=10];\n",
				nodeID("signal", m.SignalRef), nodeID("pdu", name), fmt.Sprintf("@%d", m.StartPosition))
		}
	}
}

func writePortEdges(buf *bytes.Buffer, sys *topology.System, portRefs []string, target string) {
	for _, ref := range sorted(portRefs) {
		port, ok := sys.Ports[ref]
		if !ok {
			continue
		}
		if port.Direction == topology.DirectionOut {
			fmt.Fprintf(buf, "  %q -> %q [style=dotted, label=\"tx\", fontsize=10];\n",
				nodeID("ecu", port.ECURef), target)
		} else {
			fmt.Fprintf(buf, "  %q -> %q [style=dotted, label=\"rx\", fontsize=10];\n",
				target, nodeID("ecu", port.ECURef))
		}
	}
}

// nodeID namespaces node names by entity kind so a frame and a PDU sharing
// a name stay distinct nodes.
func nodeID(kind, name string) string {
	return kind + ":" + name
}

func channelLabel(channel *topology.PhysicalChannel) string {
	switch {
	case channel.FlexrayChannel != "":
		return fmt.Sprintf("%s\nch %s", channel.Name, channel.FlexrayChannel)
	case channel.Vlan != nil:
		return fmt.Sprintf("%s\nVLAN %d", channel.Name, channel.Vlan.ID)
	default:
		return channel.Name
	}
}

func triggeringLabel(ft *topology.FrameTriggering) string {
	switch {
	case ft.Can != nil:
		return fmt.Sprintf("0x%X", ft.Can.Identifier)
	case ft.Flexray != nil:
		return fmt.Sprintf("slot %d", ft.Flexray.SlotID)
	default:
		return ""
	}
}

func sorted(names []string) []string {
	out := append([]string(nil), names...)
	slices.Sort(out)
	return out
}
