package uavo

// Object ids of the built-in types. Metadata objects use id+1.
const (
	AttitudeActualID     uint32 = 0x33DAD5E6
	GPSPositionID        uint32 = 0x628A5F5C
	FlightBatteryStateID uint32 = 0x26962352
	BaroAltitudeID       uint32 = 0x99622E6A
	FlightStatusID       uint32 = 0x0ED79A04
	GyrosID              uint32 = 0x7B6D9BE4

	DebugLogControlID uint32 = 0x9F0A1AB8
	DebugLogStatusID  uint32 = 0x3E2A3C7A
	DebugLogEntryID   uint32 = 0x5B1D3C94
)

// Debug-log control operations, in DebugLogControl.Operation option order.
const (
	OperationNone uint8 = iota
	OperationRetrieve
	OperationFormatFlash
)

func builtinTypes() []*ObjectType {
	return []*ObjectType{
		{
			ID: AttitudeActualID, Name: "AttitudeActual", Loggable: true,
			Fields: []Field{
				{Name: "Roll", Type: Float32, Units: "deg"},
				{Name: "Pitch", Type: Float32, Units: "deg"},
				{Name: "Yaw", Type: Float32, Units: "deg"},
			},
		},
		{
			ID: GyrosID, Name: "Gyros", Loggable: true,
			Fields: []Field{
				{Name: "Rate", Type: Float32, Elements: 3, Units: "deg/s"},
				{Name: "Temperature", Type: Float32, Units: "C"},
			},
		},
		{
			ID: GPSPositionID, Name: "GPSPosition", Loggable: true,
			Fields: []Field{
				{Name: "Latitude", Type: Int32, Units: "deg*1e7"},
				{Name: "Longitude", Type: Int32, Units: "deg*1e7"},
				{Name: "Altitude", Type: Float32, Units: "m"},
				{Name: "Groundspeed", Type: Float32, Units: "m/s"},
				{Name: "Heading", Type: Float32, Units: "deg"},
				{Name: "Satellites", Type: Int8},
				{Name: "Status", Type: Enum, Options: []string{"NoGPS", "NoFix", "Fix2D", "Fix3D"}},
			},
		},
		{
			ID: FlightBatteryStateID, Name: "FlightBatteryState", Loggable: true,
			Fields: []Field{
				{Name: "Voltage", Type: Float32, Units: "V"},
				{Name: "Current", Type: Float32, Units: "A"},
				{Name: "ConsumedEnergy", Type: Float32, Units: "mAh"},
			},
		},
		{
			ID: BaroAltitudeID, Name: "BaroAltitude", Loggable: true,
			Fields: []Field{
				{Name: "Altitude", Type: Float32, Units: "m"},
				{Name: "Temperature", Type: Float32, Units: "C"},
				{Name: "Pressure", Type: Float32, Units: "kPa"},
			},
		},
		{
			ID: FlightStatusID, Name: "FlightStatus", Loggable: true,
			Fields: []Field{
				{Name: "Armed", Type: Enum, Options: []string{"Disarmed", "Arming", "Armed"}},
				{Name: "FlightMode", Type: Enum, Options: []string{
					"Manual", "Stabilized1", "Stabilized2", "Stabilized3", "PositionHold", "ReturnToBase",
				}},
			},
		},
		{
			ID: DebugLogControlID, Name: "DebugLogControl",
			Fields: []Field{
				{Name: "Operation", Type: Enum, Options: []string{"None", "Retrieve", "FormatFlash"}},
				{Name: "Flight", Type: Uint16},
				{Name: "Entry", Type: Uint16},
			},
		},
		{
			ID: DebugLogStatusID, Name: "DebugLogStatus",
			Fields: []Field{
				{Name: "Flight", Type: Uint16},
				{Name: "Entry", Type: Uint16},
				{Name: "UsedSlots", Type: Uint16},
				{Name: "FreeSlots", Type: Uint16},
			},
		},
		// DebugLogEntry carries a raw log record; its payload is variable length.
		{ID: DebugLogEntryID, Name: "DebugLogEntry"},
	}
}

// Default returns a fresh catalogue holding the built-in object types.
func Default() *Catalogue {
	c, err := NewCatalogue(builtinTypes()...)
	if err != nil {
		panic("uavo: invalid built-in catalogue: " + err.Error())
	}
	return c
}
