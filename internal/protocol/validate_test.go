package protocol_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gischat/internal/protocol"
)

func testLimits() protocol.Limits {
	return protocol.Limits{
		MinAuthorLength:    3,
		MaxAuthorLength:    32,
		MaxMessageLength:   255,
		MaxImageSize:       800,
		MaxGeoJSONFeatures: 500,
		MaxStoredMessages:  5,
	}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var validationErr *protocol.ValidationError
	require.True(t, errors.As(err, &validationErr), "expected a validation error, got %v", err)
	return validationErr.Reason
}

func featureCollection(n int) json.RawMessage {
	features := make([]string, n)
	for i := range features {
		features[i] = fmt.Sprintf(`{"type":"Feature","geometry":{"type":"Point","coordinates":[%d,0]}}`, i)
	}
	return json.RawMessage(`{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`)
}

func TestValidateAuthor(t *testing.T) {
	v := protocol.NewValidator(testLimits())

	tests := []struct {
		name       string
		author     string
		wantReason string
	}{
		{name: "valid", author: "Isidore"},
		{name: "dash and underscore", author: "geo_tribu-42"},
		{name: "exactly min", author: "abc"},
		{name: "exactly max", author: strings.Repeat("a", 32)},
		{name: "too short", author: "ab", wantReason: "author 'ab' too short : 2 vs min 3 characters"},
		{name: "too long", author: strings.Repeat("a", 33), wantReason: "author too long : 33 vs max 32 characters"},
		{name: "forbidden character", author: "chri$tian", wantReason: "author 'chri$tian' must only contain letters, digits, '-' or '_'"},
		{name: "space", author: "jean luc", wantReason: "author 'jean luc' must only contain letters, digits, '-' or '_'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(protocol.Text{Author: tt.author, Text: "hi"})
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantReason, reasonOf(t, err))
		})
	}
}

func TestValidateTextLength(t *testing.T) {
	v := protocol.NewValidator(testLimits())

	assert.NoError(t, v.Validate(protocol.Text{Author: "Isidore", Text: strings.Repeat("é", 255)}))

	err := v.Validate(protocol.Text{Author: "Isidore", Text: strings.Repeat("x", 256)})
	assert.Equal(t, "Text too long : 256 vs max 255 allowed", reasonOf(t, err))
}

func TestValidateGeoJSONFeatureCount(t *testing.T) {
	v := protocol.NewValidator(testLimits())
	layer := protocol.GeoJSON{Author: "tester", LayerName: "points", CRSWKT: "WKT", CRSAuthID: wgs84AuthID}

	layer.GeoJSON = featureCollection(500)
	assert.NoError(t, v.Validate(layer))

	layer.GeoJSON = featureCollection(600)
	assert.Equal(t, "Too many geojson features : 600 vs max 500 allowed", reasonOf(t, v.Validate(layer)))

	layer.GeoJSON = json.RawMessage(`{"type":"Feature"}`)
	assert.Contains(t, reasonOf(t, v.Validate(layer)), "feature collection")
}

func TestValidatePresenceNames(t *testing.T) {
	v := protocol.NewValidator(testLimits())

	assert.NoError(t, v.Validate(protocol.Newcomer{Newcomer: "Barnabe"}))
	assert.Equal(t,
		"newcomer 'B' too short : 1 vs min 3 characters",
		reasonOf(t, v.Validate(protocol.Newcomer{Newcomer: "B"})))

	assert.NoError(t, v.Validate(protocol.Like{LikerAuthor: "Barnabe", LikedAuthor: "Isidore", Message: "hi"}))
	assert.Equal(t,
		"liked_author 'Is!dore' must only contain letters, digits, '-' or '_'",
		reasonOf(t, v.Validate(protocol.Like{LikerAuthor: "Barnabe", LikedAuthor: "Is!dore"})))
}

func TestValidateRejectsServerVariants(t *testing.T) {
	v := protocol.NewValidator(testLimits())

	for _, m := range []protocol.Message{
		protocol.NbUsers{NbUsers: 10},
		protocol.Exiter{Exiter: "Isidore"},
		protocol.Uncompliant{Reason: "nope"},
	} {
		err := v.Validate(m)
		assert.Equal(t, fmt.Sprintf("message type '%s' is reserved to the server", m.Kind()), reasonOf(t, err))
	}
}

func TestValidateGeometryVariantsOnlyCheckAuthor(t *testing.T) {
	v := protocol.NewValidator(testLimits())

	assert.NoError(t, v.Validate(protocol.BBox{Author: "tester", XMin: -1e9, XMax: 1e9}))
	assert.NoError(t, v.Validate(protocol.Position{Author: "tester", X: 1, Y: 1}))
	assert.NoError(t, v.Validate(protocol.CRS{Author: "tester"}))
	assert.Error(t, v.Validate(protocol.CRS{Author: "t"}))
}
