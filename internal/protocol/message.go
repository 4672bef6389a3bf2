// Package protocol defines the gischat wire protocol: the message variants
// exchanged on a channel, their JSON encoding, and the rules applied to
// inbound frames before they reach the broadcast engine.
package protocol

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Kind is the value of the "type" discriminator carried by every frame.
type Kind string

// Message kinds understood by the relay.
const (
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindNbUsers     Kind = "nb_users"
	KindNewcomer    Kind = "newcomer"
	KindExiter      Kind = "exiter"
	KindLike        Kind = "like"
	KindGeoJSON     Kind = "geojson"
	KindCRS         Kind = "crs"
	KindBBox        Kind = "bbox"
	KindPosition    Kind = "position"
	KindModel       Kind = "model"
	KindUncompliant Kind = "uncompliant"
)

// Message is one variant of the wire protocol. The set of implementations
// is closed: only the types in this package satisfy it.
type Message interface {
	Kind() Kind
	isMessage()
}

// Authored is implemented by client variants that carry an author field.
type Authored interface {
	Message
	AuthorName() string
}

// Text is a chat line.
type Text struct {
	Author string `json:"author"`
	Avatar string `json:"avatar,omitempty"`
	Text   string `json:"text"`
}

// Image carries a base64 encoded bitmap.
type Image struct {
	Author    string `json:"author"`
	Avatar    string `json:"avatar,omitempty"`
	ImageData string `json:"image_data"`
}

// NbUsers reports the number of open connections in a channel.
type NbUsers struct {
	NbUsers int `json:"nb_users"`
}

// Newcomer is both the registration request and its broadcast.
type Newcomer struct {
	Newcomer string `json:"newcomer"`
}

// Exiter announces the departure of a registered author.
type Exiter struct {
	Exiter string `json:"exiter"`
}

// Like is delivered to the liked author only.
type Like struct {
	LikerAuthor string `json:"liker_author"`
	LikedAuthor string `json:"liked_author"`
	Message     string `json:"message"`
}

// GeoJSON shares a vector layer as a feature collection.
type GeoJSON struct {
	Author    string          `json:"author"`
	Avatar    string          `json:"avatar,omitempty"`
	LayerName string          `json:"layer_name"`
	CRSWKT    string          `json:"crs_wkt"`
	CRSAuthID string          `json:"crs_authid"`
	GeoJSON   json.RawMessage `json:"geojson"`
}

// CRS shares a coordinate reference system.
type CRS struct {
	Author    string `json:"author"`
	Avatar    string `json:"avatar,omitempty"`
	CRSWKT    string `json:"crs_wkt"`
	CRSAuthID string `json:"crs_authid"`
}

// BBox shares an extent expressed in the given CRS.
type BBox struct {
	Author    string  `json:"author"`
	Avatar    string  `json:"avatar,omitempty"`
	CRSWKT    string  `json:"crs_wkt"`
	CRSAuthID string  `json:"crs_authid"`
	XMin      float64 `json:"xmin"`
	XMax      float64 `json:"xmax"`
	YMin      float64 `json:"ymin"`
	YMax      float64 `json:"ymax"`
}

// Position shares a point expressed in the given CRS.
type Position struct {
	Author    string  `json:"author"`
	Avatar    string  `json:"avatar,omitempty"`
	CRSWKT    string  `json:"crs_wkt"`
	CRSAuthID string  `json:"crs_authid"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Model shares a QGIS graphic model.
type Model struct {
	Author     string `json:"author"`
	Avatar     string `json:"avatar,omitempty"`
	ModelName  string `json:"model_name"`
	ModelGroup string `json:"model_group"`
	RawXML     string `json:"raw_xml"`
}

// Uncompliant is the reply sent to a client whose message was refused.
type Uncompliant struct {
	Reason string `json:"reason"`
}

func (Text) Kind() Kind        { return KindText }
func (Image) Kind() Kind       { return KindImage }
func (NbUsers) Kind() Kind     { return KindNbUsers }
func (Newcomer) Kind() Kind    { return KindNewcomer }
func (Exiter) Kind() Kind      { return KindExiter }
func (Like) Kind() Kind        { return KindLike }
func (GeoJSON) Kind() Kind     { return KindGeoJSON }
func (CRS) Kind() Kind         { return KindCRS }
func (BBox) Kind() Kind        { return KindBBox }
func (Position) Kind() Kind    { return KindPosition }
func (Model) Kind() Kind       { return KindModel }
func (Uncompliant) Kind() Kind { return KindUncompliant }

func (Text) isMessage()        {}
func (Image) isMessage()       {}
func (NbUsers) isMessage()     {}
func (Newcomer) isMessage()    {}
func (Exiter) isMessage()      {}
func (Like) isMessage()        {}
func (GeoJSON) isMessage()     {}
func (CRS) isMessage()         {}
func (BBox) isMessage()        {}
func (Position) isMessage()    {}
func (Model) isMessage()       {}
func (Uncompliant) isMessage() {}

func (m Text) AuthorName() string     { return m.Author }
func (m Image) AuthorName() string    { return m.Author }
func (m GeoJSON) AuthorName() string  { return m.Author }
func (m CRS) AuthorName() string      { return m.Author }
func (m BBox) AuthorName() string     { return m.Author }
func (m Position) AuthorName() string { return m.Author }
func (m Model) AuthorName() string    { return m.Author }

// FeatureCount returns the length of the collection's "features" array.
// ok is false when the payload is not an object holding such an array.
func (m GeoJSON) FeatureCount() (n int, ok bool) {
	features := gjson.GetBytes(m.GeoJSON, "features")
	if !features.IsArray() {
		return 0, false
	}
	return int(gjson.GetBytes(m.GeoJSON, "features.#").Int()), true
}

// Storable reports whether a message is kept in channel history.
func Storable(m Message) bool {
	_, ok := m.(Text)
	return ok
}
