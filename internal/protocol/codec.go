package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Errors wrapped by ParseError.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown message type")
)

// ParseError reports a frame that is not a message of a known type.
type ParseError struct {
	Err    error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a well-formed message refused by a protocol rule.
// Reason is sent back to the originator in an Uncompliant reply.
type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("uncompliant %s message: %s", e.Kind, e.Reason)
}

type variant struct {
	required []string
	decode   func([]byte) (Message, error)
}

func decodeAs[T Message](data []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var variants = map[Kind]variant{
	KindText:        {[]string{"author", "text"}, decodeAs[Text]},
	KindImage:       {[]string{"author", "image_data"}, decodeAs[Image]},
	KindNbUsers:     {[]string{"nb_users"}, decodeAs[NbUsers]},
	KindNewcomer:    {[]string{"newcomer"}, decodeAs[Newcomer]},
	KindExiter:      {[]string{"exiter"}, decodeAs[Exiter]},
	KindLike:        {[]string{"liker_author", "liked_author", "message"}, decodeAs[Like]},
	KindGeoJSON:     {[]string{"author", "layer_name", "crs_wkt", "crs_authid", "geojson"}, decodeAs[GeoJSON]},
	KindCRS:         {[]string{"author", "crs_wkt", "crs_authid"}, decodeAs[CRS]},
	KindBBox:        {[]string{"author", "crs_wkt", "crs_authid", "xmin", "xmax", "ymin", "ymax"}, decodeAs[BBox]},
	KindPosition:    {[]string{"author", "crs_wkt", "crs_authid", "x", "y"}, decodeAs[Position]},
	KindModel:       {[]string{"author", "model_name", "raw_xml"}, decodeAs[Model]},
	KindUncompliant: {[]string{"reason"}, decodeAs[Uncompliant]},
}

// Decode parses a raw frame into its concrete variant.
//
// A frame that is not a JSON object or whose "type" is missing or unknown
// yields a *ParseError. A frame of a known type with missing or mistyped
// fields yields a *ValidationError.
func Decode(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Err: ErrMalformedFrame, Detail: "invalid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &ParseError{Err: ErrMalformedFrame, Detail: "frame is not a JSON object"}
	}

	discriminator := root.Get("type")
	if !discriminator.Exists() {
		return nil, &ParseError{Err: ErrUnknownType, Detail: "missing type discriminator"}
	}
	kind := Kind(discriminator.String())
	v, ok := variants[kind]
	if !ok || discriminator.Type != gjson.String {
		return nil, &ParseError{Err: ErrUnknownType, Detail: fmt.Sprintf("%q", discriminator.Raw)}
	}

	for _, field := range v.required {
		value := root.Get(field)
		if !value.Exists() || value.Type == gjson.Null {
			return nil, &ValidationError{Kind: kind, Reason: fmt.Sprintf("missing required field '%s'", field)}
		}
	}

	msg, err := v.decode(data)
	if err != nil {
		return nil, &ValidationError{Kind: kind, Reason: fieldReason(err)}
	}
	return msg, nil
}

func fieldReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field '%s' must be of type %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return err.Error()
}

// Encode marshals a message with its "type" discriminator.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Kind(), err)
	}
	out, err := sjson.SetBytes(body, "type", string(m.Kind()))
	if err != nil {
		return nil, fmt.Errorf("set type on %s message: %w", m.Kind(), err)
	}
	return out, nil
}

// MustEncode is Encode for server-built messages that cannot fail to marshal.
func MustEncode(m Message) []byte {
	out, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return out
}
