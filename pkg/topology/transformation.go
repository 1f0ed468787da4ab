package topology

import (
	"github.com/busweaver/busweaver/pkg/errors"
)

// TransformerClass groups transformation technologies by their role in a
// chain.
type TransformerClass string

const (
	TransformerClassSerializer TransformerClass = "serializer"
	TransformerClassSafety     TransformerClass = "safety"
	TransformerClassCustom     TransformerClass = "custom"
)

// E2EProfile selects one of the standard end to end protection profiles.
type E2EProfile string

const (
	E2EProfileP01  E2EProfile = "P01"
	E2EProfileP02  E2EProfile = "P02"
	E2EProfileP04  E2EProfile = "P04"
	E2EProfileP04m E2EProfile = "P04m"
	E2EProfileP05  E2EProfile = "P05"
	E2EProfileP06  E2EProfile = "P06"
	E2EProfileP07  E2EProfile = "P07"
	E2EProfileP07m E2EProfile = "P07m"
	E2EProfileP08  E2EProfile = "P08"
	E2EProfileP08m E2EProfile = "P08m"
	E2EProfileP11  E2EProfile = "P11"
	E2EProfileP22  E2EProfile = "P22"
	E2EProfileP44  E2EProfile = "P44"
	E2EProfileP44m E2EProfile = "P44m"
)

// e2eProfileHeaderBits maps each profile to the size of its protection
// header.
var e2eProfileHeaderBits = map[E2EProfile]int{
	E2EProfileP01:  16,
	E2EProfileP02:  16,
	E2EProfileP04:  96,
	E2EProfileP04m: 128,
	E2EProfileP05:  24,
	E2EProfileP06:  40,
	E2EProfileP07:  160,
	E2EProfileP07m: 192,
	E2EProfileP08:  128,
	E2EProfileP08m: 160,
	E2EProfileP11:  16,
	E2EProfileP22:  16,
	E2EProfileP44:  96,
	E2EProfileP44m: 128,
}

// E2EDataIDMode selects how the data ID is included in the CRC of the
// profiles P01 and P11.
type E2EDataIDMode string

const (
	E2EDataIDModeAll16Bit        E2EDataIDMode = "all-16-bit"
	E2EDataIDModeAlternating8Bit E2EDataIDMode = "alternating-8-bit"
	E2EDataIDModeLower12Bit      E2EDataIDMode = "lower-12-bit"
	E2EDataIDModeLower8Bit       E2EDataIDMode = "lower-8-bit"
)

// Valid reports whether m is a defined data ID mode.
func (m E2EDataIDMode) Valid() bool {
	switch m {
	case E2EDataIDModeAll16Bit, E2EDataIDModeAlternating8Bit, E2EDataIDModeLower12Bit, E2EDataIDModeLower8Bit:
		return true
	}
	return false
}

// E2EProfileBehavior selects the compatibility behavior of the E2E state
// machine.
type E2EProfileBehavior string

const (
	E2EProfileBehaviorPreR42 E2EProfileBehavior = "pre-r4.2"
	E2EProfileBehaviorR42    E2EProfileBehavior = "r4.2"
)

// TransformationSet owns a group of transformation technologies and the
// chains built from them. Chains never mix technologies from different
// sets.
type TransformationSet struct {
	Name string `json:"name" bson:"name"`

	TechnologyRefs     []string `json:"technology_refs,omitempty" bson:"technology_refs,omitempty"`
	TransformationRefs []string `json:"transformation_refs,omitempty" bson:"transformation_refs,omitempty"`
}

// GenericTransformationConfig configures a custom transformer.
type GenericTransformationConfig struct {
	ProtocolName    string `json:"protocol_name" bson:"protocol_name"`
	ProtocolVersion string `json:"protocol_version" bson:"protocol_version"`
	HeaderLength    int    `json:"header_length" bson:"header_length"`
	InPlace         bool   `json:"in_place" bson:"in_place"`
}

// ComTransformationConfig configures a COM based serializer.
type ComTransformationConfig struct {
	ISignalIPDULength int `json:"isignal_ipdu_length" bson:"isignal_ipdu_length"`
}

// E2ETransformationConfig configures an end to end protection transformer.
// The profiles P01 and P11 additionally require the data ID mode and the
// CRC and counter offsets; the lower 12 bit data ID mode also requires a
// nibble offset.
type E2ETransformationConfig struct {
	Profile          E2EProfile `json:"profile" bson:"profile"`
	ZeroHeaderLength bool       `json:"zero_header_length,omitempty" bson:"zero_header_length,omitempty"`
	TransformInPlace bool       `json:"transform_in_place,omitempty" bson:"transform_in_place,omitempty"`

	Offset                  int `json:"offset" bson:"offset"`
	MaxDeltaCounter         int `json:"max_delta_counter" bson:"max_delta_counter"`
	MaxErrorStateInit       int `json:"max_error_state_init" bson:"max_error_state_init"`
	MaxErrorStateInvalid    int `json:"max_error_state_invalid" bson:"max_error_state_invalid"`
	MaxErrorStateValid      int `json:"max_error_state_valid" bson:"max_error_state_valid"`
	MaxNoNewOrRepeatedData  int `json:"max_no_new_or_repeated_data" bson:"max_no_new_or_repeated_data"`
	MinOkStateInit          int `json:"min_ok_state_init" bson:"min_ok_state_init"`
	MinOkStateInvalid       int `json:"min_ok_state_invalid" bson:"min_ok_state_invalid"`
	MinOkStateValid         int `json:"min_ok_state_valid" bson:"min_ok_state_valid"`
	WindowSize              int `json:"window_size" bson:"window_size"`

	WindowSizeInit    *int `json:"window_size_init,omitempty" bson:"window_size_init,omitempty"`
	WindowSizeInvalid *int `json:"window_size_invalid,omitempty" bson:"window_size_invalid,omitempty"`
	WindowSizeValid   *int `json:"window_size_valid,omitempty" bson:"window_size_valid,omitempty"`

	ProfileBehavior *E2EProfileBehavior `json:"profile_behavior,omitempty" bson:"profile_behavior,omitempty"`
	SyncCounterInit int                 `json:"sync_counter_init,omitempty" bson:"sync_counter_init,omitempty"`

	DataIDMode         *E2EDataIDMode `json:"data_id_mode,omitempty" bson:"data_id_mode,omitempty"`
	DataIDNibbleOffset *int           `json:"data_id_nibble_offset,omitempty" bson:"data_id_nibble_offset,omitempty"`
	CRCOffset          *int           `json:"crc_offset,omitempty" bson:"crc_offset,omitempty"`
	CounterOffset      *int           `json:"counter_offset,omitempty" bson:"counter_offset,omitempty"`
}

// SomeIPTransformationConfig configures a SOME/IP serializer.
type SomeIPTransformationConfig struct {
	Alignment        int       `json:"alignment" bson:"alignment"`
	ByteOrder        ByteOrder `json:"byte_order" bson:"byte_order"`
	InterfaceVersion int       `json:"interface_version" bson:"interface_version"`
}

// TransformationTechnology is one transformer inside a transformation set.
// Protocol, version, class and header length are derived from the config
// the technology was created with.
type TransformationTechnology struct {
	Name   string `json:"name" bson:"name"`
	SetRef string `json:"set_ref" bson:"set_ref"`

	Protocol         string           `json:"protocol" bson:"protocol"`
	Version          string           `json:"version" bson:"version"`
	TransformerClass TransformerClass `json:"transformer_class" bson:"transformer_class"`
	HeaderLength     int              `json:"header_length" bson:"header_length"`
	InPlace          bool             `json:"in_place" bson:"in_place"`

	Generic *GenericTransformationConfig `json:"generic,omitempty" bson:"generic,omitempty"`
	Com     *ComTransformationConfig     `json:"com,omitempty" bson:"com,omitempty"`
	E2E     *E2ETransformationConfig     `json:"e2e,omitempty" bson:"e2e,omitempty"`
	SomeIP  *SomeIPTransformationConfig  `json:"someip,omitempty" bson:"someip,omitempty"`
}

// DataTransformation is an ordered chain of transformation technologies
// applied to PDU data.
type DataTransformation struct {
	Name   string `json:"name" bson:"name"`
	SetRef string `json:"set_ref" bson:"set_ref"`

	ChainRefs                        []string `json:"chain_refs" bson:"chain_refs"`
	ExecuteDespiteDataUnavailability bool     `json:"execute_despite_data_unavailability" bson:"execute_despite_data_unavailability"`
}

// CreateTransformationSet adds a new empty transformation set.
func (s *System) CreateTransformationSet(name string) (*TransformationSet, error) {
	if err := checkNewEntityName(s.TransformationSets, "transformation set", name); err != nil {
		return nil, err
	}
	set := &TransformationSet{Name: name}
	s.TransformationSets[name] = set
	return set, nil
}

// CreateGenericTransformationTechnology adds a custom transformer to the
// set. Protocol name and version are taken from the config as given.
func (s *System) CreateGenericTransformationTechnology(setName, name string, cfg GenericTransformationConfig) (*TransformationTechnology, error) {
	if cfg.ProtocolName == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"transformation technology %q needs a protocol name", name)
	}
	if cfg.HeaderLength < 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"transformation technology %q must not have a negative header length", name)
	}
	tech := &TransformationTechnology{
		Protocol:         cfg.ProtocolName,
		Version:          cfg.ProtocolVersion,
		TransformerClass: TransformerClassCustom,
		HeaderLength:     cfg.HeaderLength,
		InPlace:          cfg.InPlace,
		Generic:          &cfg,
	}
	return s.addTransformationTechnology(setName, name, tech)
}

// CreateComTransformationTechnology adds a COM based serializer to the set.
func (s *System) CreateComTransformationTechnology(setName, name string, cfg ComTransformationConfig) (*TransformationTechnology, error) {
	if cfg.ISignalIPDULength < 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"transformation technology %q must not have a negative PDU length", name)
	}
	tech := &TransformationTechnology{
		Protocol:         "COMBased",
		Version:          "1",
		TransformerClass: TransformerClassSerializer,
		Com:              &cfg,
	}
	return s.addTransformationTechnology(setName, name, tech)
}

// CreateE2ETransformationTechnology adds an end to end protection
// transformer to the set. The header length follows from the profile, or is
// zero when the header is carried elsewhere.
func (s *System) CreateE2ETransformationTechnology(setName, name string, cfg E2ETransformationConfig) (*TransformationTechnology, error) {
	headerBits, ok := e2eProfileHeaderBits[cfg.Profile]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid E2E profile %q", cfg.Profile)
	}
	if cfg.Profile == E2EProfileP01 || cfg.Profile == E2EProfileP11 {
		if cfg.DataIDMode == nil {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"E2E profile %s requires a data ID mode", cfg.Profile)
		}
		if !cfg.DataIDMode.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"invalid data ID mode %q", *cfg.DataIDMode)
		}
		if cfg.CounterOffset == nil {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"E2E profile %s requires a counter offset", cfg.Profile)
		}
		if cfg.CRCOffset == nil {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"E2E profile %s requires a CRC offset", cfg.Profile)
		}
		if *cfg.DataIDMode == E2EDataIDModeLower12Bit && cfg.DataIDNibbleOffset == nil {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"E2E data ID mode %s requires a data ID nibble offset", E2EDataIDModeLower12Bit)
		}
	}
	if cfg.ProfileBehavior != nil &&
		*cfg.ProfileBehavior != E2EProfileBehaviorPreR42 && *cfg.ProfileBehavior != E2EProfileBehaviorR42 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"invalid E2E profile behavior %q", *cfg.ProfileBehavior)
	}
	if cfg.ZeroHeaderLength {
		headerBits = 0
	}

	// the window size of a specific state falls back to the common one
	if cfg.WindowSizeInit == nil {
		cfg.WindowSizeInit = intRef(cfg.WindowSize)
	}
	if cfg.WindowSizeInvalid == nil {
		cfg.WindowSizeInvalid = intRef(cfg.WindowSize)
	}
	if cfg.WindowSizeValid == nil {
		cfg.WindowSizeValid = intRef(cfg.WindowSize)
	}

	tech := &TransformationTechnology{
		Protocol:         "E2E",
		Version:          "1.0.0",
		TransformerClass: TransformerClassSafety,
		HeaderLength:     headerBits,
		InPlace:          cfg.TransformInPlace,
		E2E:              &cfg,
	}
	return s.addTransformationTechnology(setName, name, tech)
}

// CreateSomeIPTransformationTechnology adds a SOME/IP serializer to the
// set.
func (s *System) CreateSomeIPTransformationTechnology(setName, name string, cfg SomeIPTransformationConfig) (*TransformationTechnology, error) {
	if !cfg.ByteOrder.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "invalid byte order %q", cfg.ByteOrder)
	}
	if cfg.Alignment < 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"transformation technology %q must not have a negative alignment", name)
	}
	tech := &TransformationTechnology{
		Protocol:         "SOMEIP",
		Version:          "1.0.0",
		TransformerClass: TransformerClassSerializer,
		HeaderLength:     64,
		SomeIP:           &cfg,
	}
	return s.addTransformationTechnology(setName, name, tech)
}

func (s *System) addTransformationTechnology(setName, name string, tech *TransformationTechnology) (*TransformationTechnology, error) {
	set, err := s.transformationSetByName(setName)
	if err != nil {
		return nil, err
	}
	if err := checkNewEntityName(s.TransformationTechnologies, "transformation technology", name); err != nil {
		return nil, err
	}
	tech.Name = name
	tech.SetRef = setName
	s.TransformationTechnologies[name] = tech
	set.TechnologyRefs = append(set.TechnologyRefs, name)
	return tech, nil
}

// CreateDataTransformation adds a chain of transformation technologies to
// the set.
//
// The chain must not be empty, only its first technology may be a
// serializer, and every technology must belong to the set the chain is
// created in. A chain containing an E2E transformer must be marked to
// execute despite data unavailability.
func (s *System) CreateDataTransformation(setName, name string, chain []string, executeDespiteDataUnavailability bool) (*DataTransformation, error) {
	set, err := s.transformationSetByName(setName)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter,
			"data transformation %q needs at least one transformation technology", name)
	}
	for idx, techName := range chain {
		tech, err := s.transformationTechnologyByName(techName)
		if err != nil {
			return nil, err
		}
		if idx > 0 && tech.TransformerClass == TransformerClassSerializer {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"serializer %q may only be the first technology of a chain", techName)
		}
		if tech.SetRef != setName {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"transformation technology %q belongs to set %q, not %q", techName, tech.SetRef, setName)
		}
		if tech.Protocol == "E2E" && !executeDespiteDataUnavailability {
			return nil, errors.New(errors.ErrCodeInvalidParameter,
				"a chain containing E2E transformer %q must execute despite data unavailability", techName)
		}
	}
	if err := checkNewEntityName(s.DataTransformations, "data transformation", name); err != nil {
		return nil, err
	}

	transformation := &DataTransformation{
		Name:                             name,
		SetRef:                           setName,
		ChainRefs:                        append([]string(nil), chain...),
		ExecuteDespiteDataUnavailability: executeDespiteDataUnavailability,
	}
	s.DataTransformations[name] = transformation
	set.TransformationRefs = append(set.TransformationRefs, name)
	return transformation, nil
}

func intRef(v int) *int {
	return &v
}
