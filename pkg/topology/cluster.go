package topology

import (
	"github.com/busweaver/busweaver/pkg/errors"
)

// ClusterKind identifies the bus technology of a cluster.
type ClusterKind string

const (
	// ClusterKindCan is a CAN bus cluster.
	ClusterKindCan ClusterKind = "can"
	// ClusterKindLin is a LIN bus cluster.
	ClusterKindLin ClusterKind = "lin"
	// ClusterKindFlexray is a FlexRay cluster with up to two channels.
	ClusterKindFlexray ClusterKind = "flexray"
	// ClusterKindEthernet is an Ethernet cluster with VLAN-keyed channels.
	ClusterKindEthernet ClusterKind = "ethernet"
)

// Valid reports whether k is a defined cluster kind.
func (k ClusterKind) Valid() bool {
	switch k {
	case ClusterKindCan, ClusterKindLin, ClusterKindFlexray, ClusterKindEthernet:
		return true
	}
	return false
}

// Cluster is one bus network. It owns its physical channels.
type Cluster struct {
	Name        string      `json:"name" bson:"name"`
	Kind        ClusterKind `json:"kind" bson:"kind"`
	ChannelRefs []string    `json:"channel_refs,omitempty" bson:"channel_refs,omitempty"`
}

// FlexrayChannelName selects channel A or B of a FlexRay cluster.
type FlexrayChannelName string

const (
	// FlexrayChannelA is FlexRay channel A.
	FlexrayChannelA FlexrayChannelName = "A"
	// FlexrayChannelB is FlexRay channel B.
	FlexrayChannelB FlexrayChannelName = "B"
)

// Valid reports whether n is channel A or B.
func (n FlexrayChannelName) Valid() bool {
	return n == FlexrayChannelA || n == FlexrayChannelB
}

// VlanInfo carries the VLAN tag of an Ethernet physical channel.
type VlanInfo struct {
	Name string `json:"name" bson:"name"`
	ID   uint16 `json:"id" bson:"id"`
}

// PhysicalChannel is one transmission medium of a cluster. CAN and LIN
// clusters have exactly one channel, FlexRay clusters have channel A and
// optionally B, Ethernet clusters have one channel per VLAN plus at most
// one untagged channel.
type PhysicalChannel struct {
	Name       string      `json:"name" bson:"name"`
	ClusterRef string      `json:"cluster_ref" bson:"cluster_ref"`
	Kind       ClusterKind `json:"kind" bson:"kind"`

	// FlexrayChannel is set for channels of FlexRay clusters.
	FlexrayChannel FlexrayChannelName `json:"flexray_channel,omitempty" bson:"flexray_channel,omitempty"`
	// Vlan is set for tagged Ethernet channels. An Ethernet channel
	// without VLAN info carries untagged traffic.
	Vlan *VlanInfo `json:"vlan,omitempty" bson:"vlan,omitempty"`

	ConnectorRefs        []string `json:"connector_refs,omitempty" bson:"connector_refs,omitempty"`
	FrameTriggeringRefs  []string `json:"frame_triggering_refs,omitempty" bson:"frame_triggering_refs,omitempty"`
	PDUTriggeringRefs    []string `json:"pdu_triggering_refs,omitempty" bson:"pdu_triggering_refs,omitempty"`
	SignalTriggeringRefs []string `json:"signal_triggering_refs,omitempty" bson:"signal_triggering_refs,omitempty"`
}

// CreateCluster adds a new cluster of the given kind.
func (s *System) CreateCluster(name string, kind ClusterKind) (*Cluster, error) {
	if err := checkNewEntityName(s.Clusters, "cluster", name); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid cluster kind %q", kind)
	}
	cluster := &Cluster{Name: name, Kind: kind}
	s.Clusters[name] = cluster
	return cluster, nil
}

// CreatePhysicalChannel adds the physical channel of a CAN or LIN cluster.
// These clusters allow exactly one channel; creating a second one fails
// with ALREADY_EXISTS.
func (s *System) CreatePhysicalChannel(clusterName, channelName string) (*PhysicalChannel, error) {
	cluster, err := s.clusterByName(clusterName)
	if err != nil {
		return nil, err
	}
	if cluster.Kind != ClusterKindCan && cluster.Kind != ClusterKindLin {
		return nil, errors.New(errors.ErrCodeConversion,
			"cluster %q is a %s cluster, expected can or lin", clusterName, cluster.Kind)
	}
	if err := checkNewEntityName(s.Channels, "channel", channelName); err != nil {
		return nil, err
	}
	if len(cluster.ChannelRefs) != 0 {
		return nil, errors.New(errors.ErrCodeAlreadyExists,
			"cluster %q already has a physical channel", clusterName)
	}

	channel := &PhysicalChannel{Name: channelName, ClusterRef: clusterName, Kind: cluster.Kind}
	s.Channels[channelName] = channel
	cluster.ChannelRefs = append(cluster.ChannelRefs, channelName)
	return channel, nil
}

// CreateFlexrayPhysicalChannel adds channel A or B to a FlexRay cluster.
// Each of the two channel names may exist only once per cluster.
func (s *System) CreateFlexrayPhysicalChannel(clusterName, channelName string, flexrayChannel FlexrayChannelName) (*PhysicalChannel, error) {
	cluster, err := s.clusterByName(clusterName)
	if err != nil {
		return nil, err
	}
	if cluster.Kind != ClusterKindFlexray {
		return nil, errors.New(errors.ErrCodeConversion,
			"cluster %q is a %s cluster, expected flexray", clusterName, cluster.Kind)
	}
	if err := checkNewEntityName(s.Channels, "channel", channelName); err != nil {
		return nil, err
	}
	if !flexrayChannel.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"invalid FlexRay channel name %q", flexrayChannel)
	}
	for _, ref := range cluster.ChannelRefs {
		if existing, ok := s.Channels[ref]; ok && existing.FlexrayChannel == flexrayChannel {
			return nil, errors.New(errors.ErrCodeAlreadyExists,
				"cluster %q already has a channel %s", clusterName, flexrayChannel)
		}
	}

	channel := &PhysicalChannel{
		Name:           channelName,
		ClusterRef:     clusterName,
		Kind:           ClusterKindFlexray,
		FlexrayChannel: flexrayChannel,
	}
	s.Channels[channelName] = channel
	cluster.ChannelRefs = append(cluster.ChannelRefs, channelName)
	return channel, nil
}

// CreateEthernetPhysicalChannel adds a channel to an Ethernet cluster. The
// VLAN identifier must be unique among the cluster's channels; passing nil
// creates the channel for untagged traffic, of which there may be at most
// one.
func (s *System) CreateEthernetPhysicalChannel(clusterName, channelName string, vlan *VlanInfo) (*PhysicalChannel, error) {
	cluster, err := s.clusterByName(clusterName)
	if err != nil {
		return nil, err
	}
	if cluster.Kind != ClusterKindEthernet {
		return nil, errors.New(errors.ErrCodeConversion,
			"cluster %q is a %s cluster, expected ethernet", clusterName, cluster.Kind)
	}
	if err := checkNewEntityName(s.Channels, "channel", channelName); err != nil {
		return nil, err
	}
	for _, ref := range cluster.ChannelRefs {
		existing, ok := s.Channels[ref]
		if !ok {
			continue
		}
		switch {
		case vlan != nil && existing.Vlan != nil && existing.Vlan.ID == vlan.ID:
			return nil, errors.New(errors.ErrCodeAlreadyExists,
				"cluster %q already has a channel with VLAN %d", clusterName, vlan.ID)
		case vlan == nil && existing.Vlan == nil:
			return nil, errors.New(errors.ErrCodeAlreadyExists,
				"cluster %q already has a channel for untagged traffic", clusterName)
		}
	}

	channel := &PhysicalChannel{Name: channelName, ClusterRef: clusterName, Kind: ClusterKindEthernet}
	if vlan != nil {
		v := *vlan
		channel.Vlan = &v
	}
	s.Channels[channelName] = channel
	cluster.ChannelRefs = append(cluster.ChannelRefs, channelName)
	return channel, nil
}

// ecuConnector returns the connector attaching the given ECU to the
// channel, or nil if the ECU is not connected.
func (s *System) ecuConnector(channel *PhysicalChannel, ecuName string) *Connector {
	for _, ref := range channel.ConnectorRefs {
		if conn, ok := s.Connectors[ref]; ok && conn.ECURef == ecuName {
			return conn
		}
	}
	return nil
}
