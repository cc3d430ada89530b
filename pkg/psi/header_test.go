/*
NAME
  header_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "testing"

func TestParseCommonHeaderPAT(t *testing.T) {
	// table_id=0x00, syntax=1, reserved=11, section_length=0x000d (13),
	// identifier=0x0001, reserved=11, version=0, current_next=1,
	// section_number=0, last_section_number=0.
	b := []byte{0x00, 0xb0, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00}
	h, warnings, err := ParseCommonHeader(b)
	if err != nil {
		t.Fatalf("ParseCommonHeader: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if h.TableID != 0x00 || !h.SectionSyntaxInd || h.SectionLength != 0x0d ||
		h.Identifier != 0x0001 || h.VersionNumber != 0 || !h.CurrentNextInd ||
		h.SectionNumber != 0 || h.LastSectionNumber != 0 {
		t.Errorf("unexpected header: %+v", h)
	}
}

func TestParseCommonHeaderShort(t *testing.T) {
	_, _, err := ParseCommonHeader([]byte{0x00, 0x01})
	if err != ErrShortPayload {
		t.Errorf("err = %v, want ErrShortPayload", err)
	}
}

func TestParseCommonHeaderWarnings(t *testing.T) {
	b := []byte{0xC1, 0x00, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00}
	_, warnings, err := ParseCommonHeader(b)
	if err != nil {
		t.Fatalf("ParseCommonHeader: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected warnings for table_id > 0xBF and section_syntax_indicator=0")
	}
}
