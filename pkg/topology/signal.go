package topology

import (
	"slices"

	"github.com/busweaver/busweaver/pkg/errors"
)

// TransferProperty describes how a mapped signal influences the
// transmission of its PDU.
type TransferProperty string

const (
	// TransferPropertyPending does not trigger a transmission.
	TransferPropertyPending TransferProperty = "pending"
	// TransferPropertyTriggered triggers a transmission on every write.
	TransferPropertyTriggered TransferProperty = "triggered"
	// TransferPropertyTriggeredOnChange triggers a transmission when the
	// value changes.
	TransferPropertyTriggeredOnChange TransferProperty = "triggered-on-change"
	// TransferPropertyTriggeredOnChangeWithoutRepetition triggers once per
	// change without repetitions.
	TransferPropertyTriggeredOnChangeWithoutRepetition TransferProperty = "triggered-on-change-without-repetition"
	// TransferPropertyTriggeredWithoutRepetition triggers once per write
	// without repetitions.
	TransferPropertyTriggeredWithoutRepetition TransferProperty = "triggered-without-repetition"
)

// Valid reports whether p is a defined transfer property.
func (p TransferProperty) Valid() bool {
	switch p {
	case TransferPropertyPending, TransferPropertyTriggered, TransferPropertyTriggeredOnChange,
		TransferPropertyTriggeredOnChangeWithoutRepetition, TransferPropertyTriggeredWithoutRepetition:
		return true
	}
	return false
}

// Signal is a named scalar value with a fixed bit length. A signal may
// belong to at most one signal group.
type Signal struct {
	Name      string `json:"name" bson:"name"`
	BitLength int    `json:"bit_length" bson:"bit_length"`
	GroupRef  string `json:"group_ref,omitempty" bson:"group_ref,omitempty"`
}

// SignalGroup is an atomic bundle of signals. The group must be mapped
// into a PDU before any of its member signals can be mapped individually.
type SignalGroup struct {
	Name       string   `json:"name" bson:"name"`
	SignalRefs []string `json:"signal_refs,omitempty" bson:"signal_refs,omitempty"`
}

// CreateSignal adds a new signal with the given bit length.
func (s *System) CreateSignal(name string, bitLength int) (*Signal, error) {
	if err := checkNewEntityName(s.Signals, "signal", name); err != nil {
		return nil, err
	}
	if bitLength <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"signal %q must have a positive bit length, got %d", name, bitLength)
	}
	signal := &Signal{Name: name, BitLength: bitLength}
	s.Signals[name] = signal
	return signal, nil
}

// CreateSignalGroup adds a new, empty signal group.
func (s *System) CreateSignalGroup(name string) (*SignalGroup, error) {
	if err := checkNewEntityName(s.SignalGroups, "signal group", name); err != nil {
		return nil, err
	}
	group := &SignalGroup{Name: name}
	s.SignalGroups[name] = group
	return group, nil
}

// AddSignalToGroup makes a signal a member of a group. A signal belongs to
// at most one group; adding it to a second one fails. Re-adding it to its
// own group is a no-op.
func (s *System) AddSignalToGroup(groupName, signalName string) error {
	group, err := s.signalGroupByName(groupName)
	if err != nil {
		return err
	}
	signal, err := s.signalByName(signalName)
	if err != nil {
		return err
	}
	if signal.GroupRef == groupName {
		return nil
	}
	if signal.GroupRef != "" {
		return errors.New(errors.ErrCodeInvalidParameter,
			"signal %q already belongs to group %q", signalName, signal.GroupRef)
	}
	signal.GroupRef = groupName
	if !slices.Contains(group.SignalRefs, signalName) {
		group.SignalRefs = append(group.SignalRefs, signalName)
	}
	return nil
}
