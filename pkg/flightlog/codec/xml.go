package codec

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
)

// XML element names.
const (
	XMLRoot  = "flightlog"
	XMLEntry = "entry"
	XMLField = "field"
	XMLText  = "text"
)

// XMLWriter streams entries as elements of a single root element.
type XMLWriter struct {
	enc *xml.Encoder
}

// NewXMLWriter creates an XML writer on w.
func NewXMLWriter(w io.Writer) *XMLWriter {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &XMLWriter{enc: enc}
}

// Begin writes the XML declaration and opens the root element.
func (x *XMLWriter) Begin() error {
	decl := xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}
	if err := x.enc.EncodeToken(decl); err != nil {
		return err
	}
	if err := x.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: XMLRoot}}); err != nil {
		return err
	}
	return x.enc.Flush()
}

// WriteEntry writes one entry element and its nested field elements.
func (x *XMLWriter) WriteEntry(e *logbook.Entry, baseTimeMs int64) error {
	start := xml.StartElement{
		Name: xml.Name{Local: XMLEntry},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "timestamp"}, Value: strconv.FormatInt(e.CorrectedTime(baseTimeMs), 10)},
			{Name: xml.Name{Local: "flight"}, Value: strconv.FormatUint(uint64(e.Flight), 10)},
			{Name: xml.Name{Local: "entry"}, Value: strconv.FormatUint(uint64(e.Index), 10)},
			{Name: xml.Name{Local: "object"}, Value: e.Name()},
			{Name: xml.Name{Local: "instance"}, Value: strconv.FormatUint(uint64(e.InstanceID), 10)},
		},
	}
	if err := x.enc.EncodeToken(start); err != nil {
		return err
	}

	if e.Kind == logbook.KindText {
		if err := x.element(XMLText, nil, string(e.Payload)); err != nil {
			return err
		}
	} else {
		values, err := Fields(e)
		if err != nil {
			return err
		}
		for _, v := range values {
			attrs := []xml.Attr{{Name: xml.Name{Local: "name"}, Value: v.Name()}}
			if v.Field.Units != "" {
				attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "units"}, Value: v.Field.Units})
			}
			if err := x.element(XMLField, attrs, v.String()); err != nil {
				return err
			}
		}
	}

	if err := x.enc.EncodeToken(start.End()); err != nil {
		return err
	}
	return x.enc.Flush()
}

// End closes the root element.
func (x *XMLWriter) End() error {
	if err := x.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: XMLRoot}}); err != nil {
		return err
	}
	return x.enc.Flush()
}

func (x *XMLWriter) element(name string, attrs []xml.Attr, text string) error {
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := x.enc.EncodeToken(start); err != nil {
		return err
	}
	if err := x.enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return x.enc.EncodeToken(start.End())
}
