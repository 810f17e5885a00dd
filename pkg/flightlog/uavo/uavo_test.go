package uavo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogue(t *testing.T) {
	c := Default()

	att, ok := c.Lookup(AttitudeActualID)
	require.True(t, ok)
	assert.Equal(t, "AttitudeActual", att.Name)
	assert.Equal(t, 12, att.Size())

	byName, ok := c.ByName("GPSPosition")
	require.True(t, ok)
	assert.Equal(t, GPSPositionID, byName.ID)

	owner, ok := c.MetaOwner(FlightStatusID + 1)
	require.True(t, ok)
	assert.Equal(t, "FlightStatus", owner.Name)

	_, ok = c.Lookup(0xDEADBEEF)
	assert.False(t, ok)
}

func TestLoggableKeepsRegistrationOrder(t *testing.T) {
	c := Default()
	var names []string
	for _, o := range c.Loggable() {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{
		"AttitudeActual", "Gyros", "GPSPosition", "FlightBatteryState", "BaroAltitude", "FlightStatus",
	}, names)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name string
		typ  *ObjectType
	}{
		{name: "same id", typ: &ObjectType{ID: AttitudeActualID, Name: "Other"}},
		{name: "same name", typ: &ObjectType{ID: 0x10, Name: "AttitudeActual"}},
		{name: "id collides with metadata", typ: &ObjectType{ID: AttitudeActualID + 1, Name: "Meta"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Default().Register(tt.typ)
			assert.ErrorIs(t, err, ErrDuplicateType)
		})
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	c := Default()
	assert.ErrorIs(t, c.Register(&ObjectType{ID: 0x20}), ErrInvalidType)
	assert.ErrorIs(t, c.Register(&ObjectType{ID: 0x20, Name: "Bad", Fields: []Field{{Name: "x", Type: FieldType(99)}}}), ErrUnknownFieldType)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	gps, _ := Default().Lookup(GPSPositionID)

	payload, err := gps.Pack(map[string][]float64{
		"Latitude":   {-337000000},
		"Longitude":  {1512000000},
		"Altitude":   {125.5},
		"Satellites": {9},
		"Status":     {3},
	})
	require.NoError(t, err)
	assert.Len(t, payload, gps.Size())

	values, err := gps.Unpack(payload)
	require.NoError(t, err)
	require.Len(t, values, len(gps.Fields))

	got := map[string]string{}
	for _, v := range values {
		got[v.Name()] = v.String()
	}
	assert.Equal(t, "-337000000", got["Latitude"])
	assert.Equal(t, "1512000000", got["Longitude"])
	assert.Equal(t, "125.5", got["Altitude"])
	assert.Equal(t, "0", got["Heading"])
	assert.Equal(t, "9", got["Satellites"])
	assert.Equal(t, "Fix3D", got["Status"])
}

func TestUnpackMultiElementField(t *testing.T) {
	gyros, _ := Default().Lookup(GyrosID)
	payload, err := gyros.Pack(map[string][]float64{"Rate": {1.5, -2, 0.25}})
	require.NoError(t, err)

	values, err := gyros.Unpack(payload)
	require.NoError(t, err)
	assert.Equal(t, "[1.5,-2,0.25]", values[0].String())
}

func TestUnpackShortPayload(t *testing.T) {
	att, _ := Default().Lookup(AttitudeActualID)
	_, err := att.Unpack(make([]byte, 5))
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestPackTooManyValues(t *testing.T) {
	att, _ := Default().Lookup(AttitudeActualID)
	_, err := att.Pack(map[string][]float64{"Roll": {1, 2}})
	assert.Error(t, err)
}

func TestParseFieldType(t *testing.T) {
	ft, err := ParseFieldType(" Float32 ")
	require.NoError(t, err)
	assert.Equal(t, Float32, ft)

	_, err = ParseFieldType("float64")
	assert.ErrorIs(t, err, ErrUnknownFieldType)
}

func TestLoadYAML(t *testing.T) {
	doc := `
objects:
  - id: 0x1234ABCC
    name: Airspeed
    loggable: true
    fields:
      - {name: CalibratedAirspeed, type: float32, units: m/s}
      - {name: Sensor, type: enum, options: [Pitot, GPS]}
`
	c := Default()
	require.NoError(t, c.LoadYAML(strings.NewReader(doc)))

	air, ok := c.ByName("Airspeed")
	require.True(t, ok)
	assert.Equal(t, uint32(0x1234ABCC), air.ID)
	assert.True(t, air.Loggable)
	assert.Equal(t, Enum, air.Fields[1].Type)
	assert.Equal(t, 5, air.Size())
}

func TestLoadYAMLUnknownFieldType(t *testing.T) {
	doc := "objects:\n  - {id: 1, name: X, fields: [{name: a, type: double}]}\n"
	err := Default().LoadYAML(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().WriteYAML(&buf))

	c, err := NewCatalogue()
	require.NoError(t, err)
	require.NoError(t, c.LoadYAML(&buf))
	assert.Equal(t, Default().Len(), c.Len())

	gps, ok := c.ByName("GPSPosition")
	require.True(t, ok)
	assert.Equal(t, []string{"NoGPS", "NoFix", "Fix2D", "Fix3D"}, gps.Fields[6].Options)
}
