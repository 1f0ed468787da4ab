// Package manifest loads declarative topology descriptions and builds
// topology systems from them.
//
// A manifest describes one communication network in TOML or JSON:
// clusters with their channels, ECUs with controllers and channel
// connections, signals, PDUs, frames, the mappings between them,
// triggerings with sender/receiver ECUs, and transformation sets.
//
// Building replays the manifest through the topology construction
// operations in declaration order, so every structural rule those
// operations enforce (overlap detection, alignment, triggering
// propagation) applies to manifest-defined systems too. Because the
// derived triggering and port graph is order-independent, authors can
// declare mappings and triggerings in whatever order reads best.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/busweaver/busweaver/pkg/errors"
)

// Format identifies a manifest encoding.
type Format string

const (
	// FormatTOML is the TOML manifest encoding.
	FormatTOML Format = "toml"
	// FormatJSON is the JSON manifest encoding.
	FormatJSON Format = "json"
)

// Manifest is the file representation of one topology description.
type Manifest struct {
	System string `toml:"system" json:"system"`

	Clusters     []Cluster     `toml:"clusters" json:"clusters,omitempty"`
	ECUs         []ECU         `toml:"ecus" json:"ecus,omitempty"`
	Signals      []Signal      `toml:"signals" json:"signals,omitempty"`
	SignalGroups []SignalGroup `toml:"signal_groups" json:"signal_groups,omitempty"`
	PDUs         []PDU         `toml:"pdus" json:"pdus,omitempty"`
	Frames       []Frame       `toml:"frames" json:"frames,omitempty"`
	Triggerings  []Triggering  `toml:"triggerings" json:"triggerings,omitempty"`

	TransformationSets []TransformationSet `toml:"transformation_sets" json:"transformation_sets,omitempty"`
}

// Cluster declares one bus network and its physical channels.
type Cluster struct {
	Name     string    `toml:"name" json:"name"`
	Kind     string    `toml:"kind" json:"kind"`
	Channels []Channel `toml:"channels" json:"channels,omitempty"`
}

// Channel declares one physical channel. FlexrayChannel selects channel A
// or B on FlexRay clusters; Vlan tags Ethernet channels.
type Channel struct {
	Name           string `toml:"name" json:"name"`
	FlexrayChannel string `toml:"flexray_channel" json:"flexray_channel,omitempty"`
	Vlan           *Vlan  `toml:"vlan" json:"vlan,omitempty"`
}

// Vlan tags an Ethernet channel.
type Vlan struct {
	Name string `toml:"name" json:"name"`
	ID   uint16 `toml:"id" json:"id"`
}

// ECU declares an ECU instance with its communication controllers.
type ECU struct {
	Name        string       `toml:"name" json:"name"`
	Controllers []Controller `toml:"controllers" json:"controllers,omitempty"`
}

// Controller declares a bus interface of an ECU and the channels it
// connects to.
type Controller struct {
	Name        string       `toml:"name" json:"name"`
	Kind        string       `toml:"kind" json:"kind"`
	Connections []Connection `toml:"connections" json:"connections,omitempty"`
}

// Connection attaches a controller to a channel through a named connector.
type Connection struct {
	Channel   string `toml:"channel" json:"channel"`
	Connector string `toml:"connector" json:"connector"`
}

// Signal declares a signal.
type Signal struct {
	Name      string `toml:"name" json:"name"`
	BitLength int    `toml:"bit_length" json:"bit_length"`
}

// SignalGroup declares a signal group and its members.
type SignalGroup struct {
	Name    string   `toml:"name" json:"name"`
	Signals []string `toml:"signals" json:"signals,omitempty"`
}

// PDU declares a PDU. Groups lists signal groups mapped into the PDU;
// they are mapped before the individual signals, matching the rule that a
// grouped signal requires its group first.
type PDU struct {
	Name       string          `toml:"name" json:"name"`
	Kind       string          `toml:"kind" json:"kind"`
	ByteLength int             `toml:"byte_length" json:"byte_length"`
	Groups     []string        `toml:"groups" json:"groups,omitempty"`
	Signals    []SignalMapping `toml:"signals" json:"signals,omitempty"`
}

// SignalMapping places one signal inside a PDU.
type SignalMapping struct {
	Signal           string `toml:"signal" json:"signal"`
	StartPosition    int    `toml:"start_position" json:"start_position"`
	ByteOrder        string `toml:"byte_order" json:"byte_order"`
	UpdateBit        *int   `toml:"update_bit" json:"update_bit,omitempty"`
	TransferProperty string `toml:"transfer_property" json:"transfer_property"`
}

// Frame declares a frame and the PDUs mapped into it.
type Frame struct {
	Name       string       `toml:"name" json:"name"`
	Kind       string       `toml:"kind" json:"kind"`
	ByteLength int          `toml:"byte_length" json:"byte_length"`
	PDUs       []PDUMapping `toml:"pdus" json:"pdus,omitempty"`
}

// PDUMapping places one PDU inside a frame.
type PDUMapping struct {
	PDU           string `toml:"pdu" json:"pdu"`
	StartPosition int    `toml:"start_position" json:"start_position"`
	ByteOrder     string `toml:"byte_order" json:"byte_order"`
	UpdateBit     *int   `toml:"update_bit" json:"update_bit,omitempty"`
}

// Triggering places a frame, or a PDU on Ethernet channels, on a channel
// and connects the sending and receiving ECUs.
type Triggering struct {
	Channel string `toml:"channel" json:"channel"`
	Frame   string `toml:"frame" json:"frame,omitempty"`
	PDU     string `toml:"pdu" json:"pdu,omitempty"`

	Can     *CanSpec     `toml:"can" json:"can,omitempty"`
	Flexray *FlexraySpec `toml:"flexray" json:"flexray,omitempty"`

	Senders   []string `toml:"senders" json:"senders,omitempty"`
	Receivers []string `toml:"receivers" json:"receivers,omitempty"`
}

// CanSpec carries the CAN parameters of a frame triggering.
type CanSpec struct {
	ID             uint32 `toml:"id" json:"id"`
	AddressingMode string `toml:"addressing_mode" json:"addressing_mode"`
	FrameType      string `toml:"frame_type" json:"frame_type"`
}

// FlexraySpec carries the FlexRay parameters of a frame triggering.
// Either CycleCounter or BaseCycle with CycleRepetition is set.
type FlexraySpec struct {
	Slot            uint32 `toml:"slot" json:"slot"`
	CycleCounter    *int   `toml:"cycle_counter" json:"cycle_counter,omitempty"`
	BaseCycle       *int   `toml:"base_cycle" json:"base_cycle,omitempty"`
	CycleRepetition *int   `toml:"cycle_repetition" json:"cycle_repetition,omitempty"`
}

// TransformationSet declares a transformation set with its technologies
// and chains.
type TransformationSet struct {
	Name    string           `toml:"name" json:"name"`
	Com     []ComTech        `toml:"com" json:"com,omitempty"`
	SomeIP  []SomeIPTech     `toml:"someip" json:"someip,omitempty"`
	E2E     []E2ETech        `toml:"e2e" json:"e2e,omitempty"`
	Generic []GenericTech    `toml:"generic" json:"generic,omitempty"`
	Chains  []Transformation `toml:"chains" json:"chains,omitempty"`
}

// ComTech declares a COM based serializer technology.
type ComTech struct {
	Name              string `toml:"name" json:"name"`
	ISignalIPDULength int    `toml:"isignal_ipdu_length" json:"isignal_ipdu_length"`
}

// SomeIPTech declares a SOME/IP serializer technology.
type SomeIPTech struct {
	Name             string `toml:"name" json:"name"`
	Alignment        int    `toml:"alignment" json:"alignment"`
	ByteOrder        string `toml:"byte_order" json:"byte_order"`
	InterfaceVersion int    `toml:"interface_version" json:"interface_version"`
}

// E2ETech declares an end to end protection technology.
type E2ETech struct {
	Name    string `toml:"name" json:"name"`
	Profile string `toml:"profile" json:"profile"`

	ZeroHeaderLength bool `toml:"zero_header_length" json:"zero_header_length,omitempty"`
	TransformInPlace bool `toml:"transform_in_place" json:"transform_in_place,omitempty"`

	DataIDMode         string `toml:"data_id_mode" json:"data_id_mode,omitempty"`
	DataIDNibbleOffset *int   `toml:"data_id_nibble_offset" json:"data_id_nibble_offset,omitempty"`
	CounterOffset      *int   `toml:"counter_offset" json:"counter_offset,omitempty"`
	CRCOffset          *int   `toml:"crc_offset" json:"crc_offset,omitempty"`
	WindowSize         int    `toml:"window_size" json:"window_size,omitempty"`
}

// GenericTech declares a custom transformer technology.
type GenericTech struct {
	Name            string `toml:"name" json:"name"`
	ProtocolName    string `toml:"protocol_name" json:"protocol_name"`
	ProtocolVersion string `toml:"protocol_version" json:"protocol_version"`
	HeaderLength    int    `toml:"header_length" json:"header_length"`
	InPlace         bool   `toml:"in_place" json:"in_place,omitempty"`
}

// Transformation declares a chain over technologies of the same set.
type Transformation struct {
	Name                             string   `toml:"name" json:"name"`
	Techs                            []string `toml:"techs" json:"techs"`
	ExecuteDespiteDataUnavailability bool     `toml:"execute_despite_data_unavailability" json:"execute_despite_data_unavailability,omitempty"`
}

// DetectFormat derives the manifest format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidManifest,
			"unsupported manifest extension %q (expected .toml or .json)", filepath.Ext(path))
	}
}

// Decode parses manifest data in the given format.
func Decode(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode TOML manifest")
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode JSON manifest")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidManifest, "unsupported manifest format %q", format)
	}

	if m.System == "" {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "manifest is missing the system name")
	}
	return &m, nil
}

// Load reads a manifest file, detecting the format from the extension.
func Load(path string) (*Manifest, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read manifest %s", path)
	}
	return Decode(data, format)
}
