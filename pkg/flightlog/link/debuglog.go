package link

import (
	"encoding/binary"
	"fmt"

	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// LogControl is the DebugLogControl object. Writing it with OperationRetrieve
// selects the record returned by the next DebugLogEntry read.
type LogControl struct {
	Operation uint8
	Flight    uint16
	Entry     uint16
}

// MarshalBinary packs the control object.
func (c LogControl) MarshalBinary() ([]byte, error) {
	b := make([]byte, 5)
	b[0] = c.Operation
	binary.LittleEndian.PutUint16(b[1:], c.Flight)
	binary.LittleEndian.PutUint16(b[3:], c.Entry)
	return b, nil
}

// UnmarshalBinary unpacks the control object.
func (c *LogControl) UnmarshalBinary(b []byte) error {
	if len(b) < 5 {
		return fmt.Errorf("DebugLogControl: %d bytes", len(b))
	}
	c.Operation = b[0]
	c.Flight = binary.LittleEndian.Uint16(b[1:])
	c.Entry = binary.LittleEndian.Uint16(b[3:])
	return nil
}

// LogStatus is the DebugLogStatus object.
type LogStatus struct {
	// Flight is the current (last) flight index on the device.
	Flight    uint16
	Entry     uint16
	UsedSlots uint16
	FreeSlots uint16
}

// MarshalBinary packs the status object.
func (s LogStatus) MarshalBinary() ([]byte, error) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint16(b[0:], s.Flight)
	binary.LittleEndian.PutUint16(b[2:], s.Entry)
	binary.LittleEndian.PutUint16(b[4:], s.UsedSlots)
	binary.LittleEndian.PutUint16(b[6:], s.FreeSlots)
	return b, nil
}

// UnmarshalBinary unpacks the status object.
func (s *LogStatus) UnmarshalBinary(b []byte) error {
	if len(b) < 8 {
		return fmt.Errorf("DebugLogStatus: %d bytes", len(b))
	}
	s.Flight = binary.LittleEndian.Uint16(b[0:])
	s.Entry = binary.LittleEndian.Uint16(b[2:])
	s.UsedSlots = binary.LittleEndian.Uint16(b[4:])
	s.FreeSlots = binary.LittleEndian.Uint16(b[6:])
	return nil
}

// LogClient issues the debug-log requests the retrieval engine needs.
type LogClient struct {
	t Transport
}

// NewLogClient wraps a transport.
func NewLogClient(t Transport) *LogClient {
	return &LogClient{t: t}
}

// RequestStatus reads DebugLogStatus.
func (c *LogClient) RequestStatus() RequestID {
	return c.t.RequestObject(uavo.DebugLogStatusID, 0)
}

// RequestEntry selects (flight, entry) on the device and reads it back. The
// returned id is that of the read; the control write is acknowledged
// separately and can be ignored.
func (c *LogClient) RequestEntry(flight, entry uint16) RequestID {
	ctl, _ := LogControl{Operation: uavo.OperationRetrieve, Flight: flight, Entry: entry}.MarshalBinary()
	c.t.WriteObject(uavo.DebugLogControlID, 0, ctl)
	return c.t.RequestObject(uavo.DebugLogEntryID, 0)
}

// FormatFlash asks the device to erase its log store.
func (c *LogClient) FormatFlash() RequestID {
	ctl, _ := LogControl{Operation: uavo.OperationFormatFlash}.MarshalBinary()
	return c.t.WriteObject(uavo.DebugLogControlID, 0, ctl)
}
