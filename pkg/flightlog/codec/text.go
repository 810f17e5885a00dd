package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
)

// Text renders an entry as a single human readable line:
//
//	12500 AttitudeActual[0] Roll=1.5 Pitch=-0.25 Yaw=90
func Text(e *logbook.Entry, baseTimeMs int64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(e.CorrectedTime(baseTimeMs), 10))
	b.WriteByte(' ')

	if e.Kind == logbook.KindText {
		b.WriteString("Text ")
		b.WriteString(strconv.Quote(string(e.Payload)))
		return b.String()
	}

	fmt.Fprintf(&b, "%s[%d]", e.Name(), e.InstanceID)
	values, err := Fields(e)
	if err != nil {
		fmt.Fprintf(&b, " <%x>", e.Payload)
		return b.String()
	}
	for _, v := range values {
		b.WriteByte(' ')
		b.WriteString(v.Name())
		b.WriteByte('=')
		b.WriteString(v.String())
	}
	return b.String()
}

// lineEscaper keeps a text message on one line. Backslashes are escaped
// too so the original can be recovered.
var lineEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

// Data joins the resolved fields as Name=value pairs separated by ';'. Text
// messages are returned with line breaks escaped as \n and \r.
func Data(e *logbook.Entry) string {
	if e.Kind == logbook.KindText {
		return lineEscaper.Replace(string(e.Payload))
	}
	values, err := Fields(e)
	if err != nil {
		return fmt.Sprintf("%x", e.Payload)
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Name() + "=" + v.String()
	}
	return strings.Join(parts, ";")
}
