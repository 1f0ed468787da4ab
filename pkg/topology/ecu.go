package topology

import (
	"github.com/busweaver/busweaver/pkg/errors"
)

// ECUInstance is one electronic control unit participating in the network.
type ECUInstance struct {
	Name           string   `json:"name" bson:"name"`
	ControllerRefs []string `json:"controller_refs,omitempty" bson:"controller_refs,omitempty"`
	ConnectorRefs  []string `json:"connector_refs,omitempty" bson:"connector_refs,omitempty"`
}

// CommunicationController is a bus interface of an ECU. Its kind must match
// the kind of any channel it is connected to.
type CommunicationController struct {
	Name          string      `json:"name" bson:"name"`
	ECURef        string      `json:"ecu_ref" bson:"ecu_ref"`
	Kind          ClusterKind `json:"kind" bson:"kind"`
	ConnectorRefs []string    `json:"connector_refs,omitempty" bson:"connector_refs,omitempty"`
}

// Connector attaches a communication controller, and through it an ECU, to
// a physical channel. Ports are created underneath connectors.
type Connector struct {
	Name          string   `json:"name" bson:"name"`
	ECURef        string   `json:"ecu_ref" bson:"ecu_ref"`
	ControllerRef string   `json:"controller_ref" bson:"controller_ref"`
	ChannelRef    string   `json:"channel_ref" bson:"channel_ref"`
	PortRefs      []string `json:"port_refs,omitempty" bson:"port_refs,omitempty"`
}

// CreateECUInstance adds a new ECU.
func (s *System) CreateECUInstance(name string) (*ECUInstance, error) {
	if err := checkNewEntityName(s.ECUs, "ECU", name); err != nil {
		return nil, err
	}
	ecu := &ECUInstance{Name: name}
	s.ECUs[name] = ecu
	return ecu, nil
}

// CreateCommunicationController adds a bus interface of the given kind to
// an ECU.
func (s *System) CreateCommunicationController(ecuName, name string, kind ClusterKind) (*CommunicationController, error) {
	ecu, err := s.ecuByName(ecuName)
	if err != nil {
		return nil, err
	}
	if err := checkNewEntityName(s.Controllers, "controller", name); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid controller kind %q", kind)
	}
	controller := &CommunicationController{Name: name, ECURef: ecuName, Kind: kind}
	s.Controllers[name] = controller
	ecu.ControllerRefs = append(ecu.ControllerRefs, name)
	return controller, nil
}

// ConnectPhysicalChannel attaches a controller to a channel, making the
// controller's ECU reachable on that channel.
//
// A CAN or LIN controller serves a single bus, so a second connection
// anywhere fails with ALREADY_EXISTS. FlexRay and Ethernet controllers may
// attach to several channels, but only once per channel.
func (s *System) ConnectPhysicalChannel(controllerName, connectorName, channelName string) (*Connector, error) {
	controller, err := s.controllerByName(controllerName)
	if err != nil {
		return nil, err
	}
	channel, err := s.channelByName(channelName)
	if err != nil {
		return nil, err
	}
	if channel.Kind != controller.Kind {
		return nil, errors.New(errors.ErrCodeConversion,
			"controller %q is a %s controller, channel %q belongs to a %s cluster",
			controllerName, controller.Kind, channelName, channel.Kind)
	}
	if err := checkNewEntityName(s.Connectors, "connector", connectorName); err != nil {
		return nil, err
	}

	switch controller.Kind {
	case ClusterKindCan, ClusterKindLin:
		if len(controller.ConnectorRefs) != 0 {
			return nil, errors.New(errors.ErrCodeAlreadyExists,
				"controller %q is already connected to a channel", controllerName)
		}
	default:
		for _, ref := range controller.ConnectorRefs {
			if conn, ok := s.Connectors[ref]; ok && conn.ChannelRef == channelName {
				return nil, errors.New(errors.ErrCodeAlreadyExists,
					"controller %q is already connected to channel %q", controllerName, channelName)
			}
		}
	}

	ecu, err := s.ecuByName(controller.ECURef)
	if err != nil {
		return nil, err
	}

	connector := &Connector{
		Name:          connectorName,
		ECURef:        ecu.Name,
		ControllerRef: controllerName,
		ChannelRef:    channelName,
	}
	s.Connectors[connectorName] = connector
	controller.ConnectorRefs = append(controller.ConnectorRefs, connectorName)
	ecu.ConnectorRefs = append(ecu.ConnectorRefs, connectorName)
	channel.ConnectorRefs = append(channel.ConnectorRefs, connectorName)
	return connector, nil
}
