package caml

import (
	"encoding/xml"
	"strings"
)

func open(sb *strings.Builder, tag string) {
	sb.WriteByte('<')
	sb.WriteString(tag)
	sb.WriteByte('>')
}

func closeTag(sb *strings.Builder, tag string) {
	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteByte('>')
}

func fieldRef(sb *strings.Builder, name string, lookupID bool) {
	sb.WriteString(`<FieldRef Name="`)
	sb.WriteString(escape(name))
	sb.WriteByte('"')
	if lookupID {
		sb.WriteString(` LookupId="TRUE"`)
	}
	sb.WriteString(" />")
}

func value(sb *strings.Builder, t ValueType, v string) {
	sb.WriteString(`<Value Type="`)
	sb.WriteString(escape(string(t)))
	sb.WriteString(`">`)
	sb.WriteString(escape(v))
	sb.WriteString("</Value>")
}

func escape(s string) string {
	if !strings.ContainsAny(s, "<>&'\"\t\n\r") {
		return s
	}
	var sb strings.Builder
	// xml.EscapeText only fails when the writer fails.
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
