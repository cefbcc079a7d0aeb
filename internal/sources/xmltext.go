package sources

import (
	"encoding/xml"
	"strings"
)

// InnerText is a string that decodes from XML as the concatenated
// character data of an element and all of its descendants. JATS and
// PubMed documents wrap inline markup (<italic>, <xref>, <sup>, <sub>)
// around text that must survive extraction; decoding into a plain string
// keeps only the element's direct character data and silently drops the
// rest.
type InnerText string

// UnmarshalXML implements xml.Unmarshaler, walking the element's token
// stream and accumulating every character-data token until the matching
// end element.
func (t *InnerText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.CharData:
			sb.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				*t = InnerText(sb.String())
				return nil
			}
			depth--
		}
	}
}
