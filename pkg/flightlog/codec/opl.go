package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// OPL container constants.
const (
	OPLVersion    uint8 = 1
	oplHeaderSize       = 8

	// maxRecordSize bounds the length prefix accepted by OPLReader.
	maxRecordSize = 1 << 16
)

var oplMagic = [4]byte{'O', 'P', 'L', 'G'}

// ErrNotOPL is returned when a stream does not start with an OPL header.
var ErrNotOPL = errors.New("not an OPL log")

// OPLWriter writes original device records verbatim, each prefixed by its
// little-endian uint32 length, after an 8 byte header.
type OPLWriter struct {
	w io.Writer
}

// NewOPLWriter creates an OPL writer on w.
func NewOPLWriter(w io.Writer) *OPLWriter {
	return &OPLWriter{w: w}
}

// WriteHeader writes the container header.
func (o *OPLWriter) WriteHeader() error {
	var hdr [oplHeaderSize]byte
	copy(hdr[:4], oplMagic[:])
	hdr[4] = OPLVersion
	_, err := o.w.Write(hdr[:])
	return err
}

// WriteEntry writes the entry's original record. Entries built locally
// without a raw record are encoded first.
func (o *OPLWriter) WriteEntry(e *logbook.Entry) error {
	raw := e.Raw
	if raw == nil {
		raw = Encode(e)
	}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(raw)))
	if _, err := o.w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := o.w.Write(raw)
	return err
}

// OPLReader reads records from an OPL container.
type OPLReader struct {
	r       *bufio.Reader
	Version uint8
}

// NewOPLReader reads and validates the container header.
func NewOPLReader(r io.Reader) (*OPLReader, error) {
	br := bufio.NewReader(r)
	var hdr [oplHeaderSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotOPL, err)
	}
	if [4]byte(hdr[:4]) != oplMagic {
		return nil, ErrNotOPL
	}
	if hdr[4] != OPLVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNotOPL, hdr[4])
	}
	return &OPLReader{r: br, Version: hdr[4]}, nil
}

// Next returns the next raw record, or io.EOF after the last one.
func (o *OPLReader) Next() ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(o.r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated length prefix", ErrMalformedRecord)
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(prefix[:])
	if n > maxRecordSize {
		return nil, fmt.Errorf("%w: record length %d", ErrMalformedRecord, n)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(o.r, raw); err != nil {
		return nil, fmt.Errorf("%w: truncated record: %v", ErrMalformedRecord, err)
	}
	return raw, nil
}

// ReadOPL decodes every record of an OPL stream.
func ReadOPL(r io.Reader, cat *uavo.Catalogue) ([]*logbook.Entry, error) {
	or, err := NewOPLReader(r)
	if err != nil {
		return nil, err
	}
	var out []*logbook.Entry
	for {
		raw, err := or.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		e, err := Decode(raw, cat)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
