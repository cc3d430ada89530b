package tables

import "testing"

func buildDSIBody(transactionID uint32, privateData []byte) []byte {
	rest := make([]byte, 0, dsiServerIDLen+2+2+len(privateData))
	rest = append(rest, make([]byte, dsiServerIDLen)...) // server_id, zeroed
	rest = append(rest, 0x00, 0x00)                      // compatibility_descriptor_length = 0
	rest = append(rest, byte(len(privateData)>>8), byte(len(privateData)))
	rest = append(rest, privateData...)
	return buildDSMCCMessageBody(messageIDDSI, transactionID, rest)
}

func TestDSIParserCreatesVersionDir(t *testing.T) {
	env := newTestEnv()
	parser := DIIParser(env) // shared entry point; dispatches to parseDSI internally

	body := buildDSIBody(0x42, []byte{0xAA, 0xBB, 0xCC})
	section := buildCommonSection(TableIDDSMCC, 1, true, 0x0000, body)

	if err := parser(0x1FFC, section); err != nil {
		t.Fatalf("DSI dispatch: %v", err)
	}

	priv, ok := env.Tree.GetDentryByPath("DSI/0x1ffc/001/private_data")
	if !ok {
		t.Fatal("DSI/0x1ffc/001/private_data not created")
	}
	if got := priv.Contents(); len(got) != 3 || got[0] != 0xAA {
		t.Fatalf("private_data = %v, want [0xAA 0xBB 0xCC]", got)
	}

	if _, ok := env.Tree.GetDentryByPath("DSI/0x1ffc/Current"); !ok {
		t.Fatal("DSI/0x1ffc/Current not installed")
	}
}

func TestDSIParserLinksToExistingDII(t *testing.T) {
	env := newTestEnv()
	parser := DIIParser(env)

	module := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x10, 0x01, 0x00}
	diiBody := buildDIIBody(0x99, 1, module)
	diiSection := buildCommonSection(TableIDDSMCC, 1, true, 0x0000, diiBody)
	if err := parser(0x1FFC, diiSection); err != nil {
		t.Fatalf("DII parse: %v", err)
	}

	dsiBody := buildDSIBody(0x99, nil)
	dsiSection := buildCommonSection(TableIDDSMCC, 1, true, 0x0000, dsiBody)
	if err := parser(0x1FFC, dsiSection); err != nil {
		t.Fatalf("DSI parse: %v", err)
	}

	link, ok := env.Tree.GetDentryByPath("DSI/0x1ffc/001/DII")
	if !ok {
		t.Fatal("DSI/0x1ffc/001/DII symlink not created")
	}
	if link.SymlinkTarget() != "../../../DII/0x1ffc/001" {
		t.Fatalf("DII symlink target = %q, want ../../../DII/0x1ffc/001", link.SymlinkTarget())
	}
}

func TestDSIParserShortBodyError(t *testing.T) {
	env := newTestEnv()
	parser := DIIParser(env)
	body := buildDSMCCMessageBody(messageIDDSI, 0x1, []byte{0x00})
	section := buildCommonSection(TableIDDSMCC, 1, true, 0x0000, body)
	if err := parser(0x1FFC, section); err == nil {
		t.Fatal("expected ErrShortTable for a truncated DSI body")
	}
}
