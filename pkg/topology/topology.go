// Package topology models an automotive communication network as a graph of
// named entities: clusters, physical channels, ECUs, frames, PDUs, signals
// and the triggering/port objects derived from their mappings.
//
// All entities live in a System, an arena keyed by entity name. Entities
// reference each other exclusively by name, never by pointer, so the same
// object can be reached from multiple directions (a signal from its PDU,
// and independently from any number of signal triggerings) without cyclic
// ownership. Mutating operations are methods on System; they validate their
// inputs, reject structural violations and keep the derived triggering and
// port graph synchronized no matter in which order frames, PDUs, signals,
// triggerings and ECU connections are created.
//
// A System is not safe for concurrent use. Embeddings with multiple writers
// must serialize all operations on a System instance, since mutations read
// and write several related entities non-atomically.
package topology

import (
	"fmt"

	"github.com/busweaver/busweaver/pkg/errors"
)

// Direction describes whether an ECU receives or transmits a triggering.
type Direction string

const (
	// DirectionIn marks communication received by the ECU.
	DirectionIn Direction = "in"
	// DirectionOut marks communication transmitted by the ECU.
	DirectionOut Direction = "out"
)

// Valid reports whether d is a defined direction.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// portSuffix returns the name suffix used for ports created in this
// direction.
func (d Direction) portSuffix() string {
	if d == DirectionIn {
		return "Rx"
	}
	return "Tx"
}

// System is the arena holding every entity of one communication network
// description. All maps are keyed by entity name.
type System struct {
	Name string `json:"name" bson:"name"`

	Clusters     map[string]*Cluster                 `json:"clusters" bson:"clusters"`
	Channels     map[string]*PhysicalChannel         `json:"channels" bson:"channels"`
	ECUs         map[string]*ECUInstance             `json:"ecus" bson:"ecus"`
	Controllers  map[string]*CommunicationController `json:"controllers" bson:"controllers"`
	Connectors   map[string]*Connector               `json:"connectors" bson:"connectors"`
	Frames       map[string]*Frame                   `json:"frames" bson:"frames"`
	PDUs         map[string]*PDU                     `json:"pdus" bson:"pdus"`
	Signals      map[string]*Signal                  `json:"signals" bson:"signals"`
	SignalGroups map[string]*SignalGroup             `json:"signal_groups" bson:"signal_groups"`

	FrameTriggerings  map[string]*FrameTriggering  `json:"frame_triggerings" bson:"frame_triggerings"`
	PDUTriggerings    map[string]*PDUTriggering    `json:"pdu_triggerings" bson:"pdu_triggerings"`
	SignalTriggerings map[string]*SignalTriggering `json:"signal_triggerings" bson:"signal_triggerings"`
	Ports             map[string]*Port             `json:"ports" bson:"ports"`

	TransformationSets         map[string]*TransformationSet        `json:"transformation_sets" bson:"transformation_sets"`
	TransformationTechnologies map[string]*TransformationTechnology `json:"transformation_technologies" bson:"transformation_technologies"`
	DataTransformations        map[string]*DataTransformation       `json:"data_transformations" bson:"data_transformations"`
}

// NewSystem creates an empty System with the given name.
func NewSystem(name string) *System {
	return &System{
		Name:                       name,
		Clusters:                   map[string]*Cluster{},
		Channels:                   map[string]*PhysicalChannel{},
		ECUs:                       map[string]*ECUInstance{},
		Controllers:                map[string]*CommunicationController{},
		Connectors:                 map[string]*Connector{},
		Frames:                     map[string]*Frame{},
		PDUs:                       map[string]*PDU{},
		Signals:                    map[string]*Signal{},
		SignalGroups:               map[string]*SignalGroup{},
		FrameTriggerings:           map[string]*FrameTriggering{},
		PDUTriggerings:             map[string]*PDUTriggering{},
		SignalTriggerings:          map[string]*SignalTriggering{},
		Ports:                      map[string]*Port{},
		TransformationSets:         map[string]*TransformationSet{},
		TransformationTechnologies: map[string]*TransformationTechnology{},
		DataTransformations:        map[string]*DataTransformation{},
	}
}

// EntityCount returns the total number of entities in the system across
// all registries.
func (s *System) EntityCount() int {
	return len(s.Clusters) + len(s.Channels) + len(s.ECUs) + len(s.Controllers) +
		len(s.Connectors) + len(s.Frames) + len(s.PDUs) + len(s.Signals) +
		len(s.SignalGroups) + len(s.FrameTriggerings) + len(s.PDUTriggerings) +
		len(s.SignalTriggerings) + len(s.Ports) + len(s.TransformationSets) +
		len(s.TransformationTechnologies) + len(s.DataTransformations)
}

// uniqueName returns base if taken reports it as free, otherwise base with
// the first free numeric suffix appended.
func uniqueName(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// resolve helpers. Operations reference entities by name; these return a
// typed NOT_FOUND error when the name cannot be resolved.

func (s *System) clusterByName(name string) (*Cluster, error) {
	if c, ok := s.Clusters[name]; ok {
		return c, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "cluster %q not found", name)
}

func (s *System) channelByName(name string) (*PhysicalChannel, error) {
	if c, ok := s.Channels[name]; ok {
		return c, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "channel %q not found", name)
}

func (s *System) ecuByName(name string) (*ECUInstance, error) {
	if e, ok := s.ECUs[name]; ok {
		return e, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "ECU %q not found", name)
}

func (s *System) controllerByName(name string) (*CommunicationController, error) {
	if c, ok := s.Controllers[name]; ok {
		return c, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "controller %q not found", name)
}

func (s *System) frameByName(name string) (*Frame, error) {
	if f, ok := s.Frames[name]; ok {
		return f, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "frame %q not found", name)
}

func (s *System) pduByName(name string) (*PDU, error) {
	if p, ok := s.PDUs[name]; ok {
		return p, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "PDU %q not found", name)
}

func (s *System) signalByName(name string) (*Signal, error) {
	if sig, ok := s.Signals[name]; ok {
		return sig, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "signal %q not found", name)
}

func (s *System) signalGroupByName(name string) (*SignalGroup, error) {
	if g, ok := s.SignalGroups[name]; ok {
		return g, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "signal group %q not found", name)
}

func (s *System) frameTriggeringByName(name string) (*FrameTriggering, error) {
	if ft, ok := s.FrameTriggerings[name]; ok {
		return ft, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "frame triggering %q not found", name)
}

func (s *System) pduTriggeringByName(name string) (*PDUTriggering, error) {
	if pt, ok := s.PDUTriggerings[name]; ok {
		return pt, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "PDU triggering %q not found", name)
}

func (s *System) signalTriggeringByName(name string) (*SignalTriggering, error) {
	if st, ok := s.SignalTriggerings[name]; ok {
		return st, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "signal triggering %q not found", name)
}

func (s *System) portByName(name string) (*Port, error) {
	if port, ok := s.Ports[name]; ok {
		return port, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "port %q not found", name)
}

func (s *System) transformationSetByName(name string) (*TransformationSet, error) {
	if set, ok := s.TransformationSets[name]; ok {
		return set, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "transformation set %q not found", name)
}

func (s *System) transformationTechnologyByName(name string) (*TransformationTechnology, error) {
	if tech, ok := s.TransformationTechnologies[name]; ok {
		return tech, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "transformation technology %q not found", name)
}

// checkNewEntityName validates name and ensures it is not already used by
// an entity of the given registry.
func checkNewEntityName[T any](registry map[string]T, kind, name string) error {
	if err := errors.ValidateItemName(name); err != nil {
		return err
	}
	if _, ok := registry[name]; ok {
		return errors.New(errors.ErrCodeAlreadyExists, "%s %q already exists", kind, name)
	}
	return nil
}
