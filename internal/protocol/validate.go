package protocol

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Limits is the process-wide validation policy. It is built once at startup
// and never mutated.
type Limits struct {
	MinAuthorLength    int
	MaxAuthorLength    int
	MaxMessageLength   int
	MaxImageSize       int
	MaxGeoJSONFeatures int
	MaxStoredMessages  int
}

var authorPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validator applies Limits to decoded messages. It holds no mutable state
// and is safe for concurrent use.
type Validator struct {
	limits Limits
}

// NewValidator returns a Validator enforcing l.
func NewValidator(l Limits) *Validator {
	return &Validator{limits: l}
}

// Limits returns the policy the validator enforces.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate checks m against the size and format rules of its variant.
// It returns a *ValidationError describing the first violated rule.
func (v *Validator) Validate(m Message) error {
	if a, ok := m.(Authored); ok {
		if err := v.checkName(m.Kind(), "author", a.AuthorName()); err != nil {
			return err
		}
	}

	switch m := m.(type) {
	case Text:
		if n := utf8.RuneCountInString(m.Text); n > v.limits.MaxMessageLength {
			return invalid(m, "Text too long : %d vs max %d allowed", n, v.limits.MaxMessageLength)
		}
	case GeoJSON:
		n, ok := m.FeatureCount()
		if !ok {
			return invalid(m, "geojson must be a feature collection with a 'features' array")
		}
		if n > v.limits.MaxGeoJSONFeatures {
			return invalid(m, "Too many geojson features : %d vs max %d allowed", n, v.limits.MaxGeoJSONFeatures)
		}
	case Newcomer:
		return v.checkName(m.Kind(), "newcomer", m.Newcomer)
	case Like:
		if err := v.checkName(m.Kind(), "liker_author", m.LikerAuthor); err != nil {
			return err
		}
		return v.checkName(m.Kind(), "liked_author", m.LikedAuthor)
	case NbUsers, Exiter, Uncompliant:
		return invalid(m, "message type '%s' is reserved to the server", m.Kind())
	case Image, CRS, BBox, Position, Model:
	default:
		return invalid(m, "unsupported message type '%s'", m.Kind())
	}
	return nil
}

func (v *Validator) checkName(kind Kind, field, name string) error {
	n := utf8.RuneCountInString(name)
	switch {
	case n < v.limits.MinAuthorLength:
		return &ValidationError{Kind: kind, Reason: fmt.Sprintf(
			"%s '%s' too short : %d vs min %d characters", field, name, n, v.limits.MinAuthorLength)}
	case n > v.limits.MaxAuthorLength:
		return &ValidationError{Kind: kind, Reason: fmt.Sprintf(
			"%s too long : %d vs max %d characters", field, n, v.limits.MaxAuthorLength)}
	case !authorPattern.MatchString(name):
		return &ValidationError{Kind: kind, Reason: fmt.Sprintf(
			"%s '%s' must only contain letters, digits, '-' or '_'", field, name)}
	}
	return nil
}

func invalid(m Message, format string, args ...any) error {
	return &ValidationError{Kind: m.Kind(), Reason: fmt.Sprintf(format, args...)}
}
