package windows

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// WindowType names a kind of window and its version.
type WindowType struct {
	Name           string
	Version        string
	Description    string
	MetadataFields []string
}

// Validate checks the name and that the version is a semantic version.
func (t WindowType) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidWindowType)
	}
	if _, err := semver.NewVersion(t.Version); err != nil {
		return fmt.Errorf("%w: %s version %q: %v", ErrInvalidWindowType, t.Name, t.Version, err)
	}
	return nil
}

// Matches reports whether other has the same name and major version.
func (t WindowType) Matches(other WindowType) bool {
	if t.Name != other.Name {
		return false
	}
	mine, err := semver.NewVersion(t.Version)
	if err != nil {
		return false
	}
	theirs, err := semver.NewVersion(other.Version)
	if err != nil {
		return false
	}
	return mine.Major() == theirs.Major()
}

// Satisfies reports whether the type version satisfies a constraint such as "^2.0".
func (t WindowType) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, err
	}
	v, err := semver.NewVersion(t.Version)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}

// String renders name@version.
func (t WindowType) String() string {
	return t.Name + "@" + t.Version
}

var tripMetadata = []string{MetadataTripID, MetadataBusID, MetadataRouteID}

var (
	// EveryMinute fires once per simulated minute.
	EveryMinute = WindowType{
		Name:        "EveryMinute",
		Version:     "1.0.0",
		Description: "Triggered every minute",
	}
	// HaltBrakeApplied covers one run of the halt brake.
	HaltBrakeApplied = WindowType{
		Name:           "HaltBrakeApplied",
		Version:        "2.1.0",
		Description:    "When the halt brake is applied",
		MetadataFields: tripMetadata,
	}
	// ParkBrakeApplied covers one run of the park brake.
	ParkBrakeApplied = WindowType{
		Name:           "ParkBrakeApplied",
		Version:        "2.1.0",
		Description:    "When the park brake is applied",
		MetadataFields: tripMetadata,
	}
)

// Catalog lists the known window types.
func Catalog() []WindowType {
	return []WindowType{EveryMinute, HaltBrakeApplied, ParkBrakeApplied}
}

// Lookup finds a catalog type by name.
func Lookup(name string) (WindowType, bool) {
	for _, t := range Catalog() {
		if t.Name == name {
			return t, true
		}
	}
	return WindowType{}, false
}
