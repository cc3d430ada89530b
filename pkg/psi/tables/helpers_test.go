package tables

// buildCommonSection assembles a full PSI section (common header + body +
// a zeroed 4-byte CRC placeholder) for feeding directly into a
// psi.TableParser under test. Table parsers never re-verify the CRC
// themselves (pkg/ts.Demultiplexer.dispatchPSI does that before dispatch),
// so a placeholder is sufficient here.
func buildCommonSection(tableID byte, version byte, currentNext bool, identifier uint16, body []byte) []byte {
	sectionLength := 5 + len(body) + 4
	section := make([]byte, 3, 3+sectionLength)
	section[0] = tableID
	section[1] = 0x80 | byte(sectionLength>>8&0x0f)
	section[2] = byte(sectionLength)
	section = append(section, byte(identifier>>8), byte(identifier))
	cni := byte(0)
	if currentNext {
		cni = 1
	}
	section = append(section, 0xC0|version<<1|cni)
	section = append(section, 0x00, 0x00) // section_number, last_section_number
	section = append(section, body...)
	section = append(section, 0, 0, 0, 0) // CRC placeholder
	return section
}
