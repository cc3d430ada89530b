/*
NAME
  crc_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "testing"

func TestAppendCRCThenVerify(t *testing.T) {
	cases := [][]byte{
		{0x00, 0xb0, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00, 0x00, 0x01, 0xe1, 0x00},
		{0x02},
		{},
	}
	for _, body := range cases {
		section := AppendCRC(body)
		if !Verify(section) {
			t.Errorf("Verify(AppendCRC(%x)) = false, want true", body)
		}
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	body := []byte{0x00, 0xb0, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00, 0x00, 0x01, 0xe1, 0x00}
	section := AppendCRC(body)
	section[len(section)-1] ^= 0xff
	if Verify(section) {
		t.Error("Verify reported a corrupted section as valid")
	}
}

func TestVerifyShortSection(t *testing.T) {
	if Verify([]byte{0x01, 0x02}) {
		t.Error("Verify accepted a section shorter than the CRC field")
	}
}
