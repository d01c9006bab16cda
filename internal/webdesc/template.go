// Package webdesc implements the minimal embedded HTTP/1.x server that
// answers GET /description.xml with the UPnP device description (spec
// §4.8), grounded on web.c's stream-peek-and-respond approach and the
// teacher's template.Manager for the text/template field substitution.
package webdesc

import (
	"bytes"
	"text/template"
)

// DeviceFields are the values substituted into the device description
// document.
type DeviceFields struct {
	DeviceType      string
	FriendlyName    string
	Manufacturer    string
	ManufacturerURL string
	ModelName       string
	UUID            string
	PresentationURL string
}

const deviceXML = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
 <specVersion>
   <major>1</major>
   <minor>0</minor>
 </specVersion>
 <device>
  <deviceType>{{.DeviceType}}</deviceType>
  <friendlyName>{{.FriendlyName}}</friendlyName>
  <manufacturer>{{.Manufacturer}}</manufacturer>
{{- if .ManufacturerURL}}
  <manufacturerURL>{{.ManufacturerURL}}</manufacturerURL>
{{- end}}
  <modelName>{{.ModelName}}</modelName>
  <UDN>{{.UUID}}</UDN>
  <presentationURL>http://{{.PresentationURL}}</presentationURL>
 </device>
</root>

`

var deviceTmpl = template.Must(template.New("device.xml").Parse(deviceXML))

// Render substitutes fields into the device description template.
func Render(fields DeviceFields) ([]byte, error) {
	var buf bytes.Buffer
	if err := deviceTmpl.Execute(&buf, fields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
