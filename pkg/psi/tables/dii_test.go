package tables

import "testing"

func buildDSMCCMessageBody(messageID uint16, transactionID uint32, rest []byte) []byte {
	body := []byte{
		protocolDiscriminatorUN, dsmccTypeUN,
		byte(messageID >> 8), byte(messageID),
		byte(transactionID >> 24), byte(transactionID >> 16), byte(transactionID >> 8), byte(transactionID),
		0x00,       // reserved
		0x00,       // adaptation_length = 0
		0x00, 0x00, // message_length (unused by these parsers)
	}
	return append(body, rest...)
}

func buildDIIBody(transactionID uint32, numModules uint16, modules []byte) []byte {
	rest := []byte{
		0x00, 0x00, 0x00, 0x01, // download_id
		0x10, 0x00, // block_size
		0x01,       // window_size
		0x01,       // ack_period
		0x00, 0x00, 0x00, 0x00, // t_c_download_window
		0x00, 0x00, 0x00, 0x00, // t_c_download_scenario
		0x00, 0x00, // compatibility_descriptor_length = 0
		byte(numModules >> 8), byte(numModules),
	}
	rest = append(rest, modules...)
	rest = append(rest, 0x00, 0x00) // private_data_length = 0
	return buildDSMCCMessageBody(messageIDDII, transactionID, rest)
}

func TestDIIParserCreatesModuleDirs(t *testing.T) {
	env := newTestEnv()
	parser := DIIParser(env)

	module := []byte{
		0x00, 0x05, // module_id
		0x00, 0x00, 0x01, 0x00, // module_size
		0x02,       // module_version
		0x00,       // module_info_length = 0
	}
	body := buildDIIBody(0x42, 1, module)
	section := buildCommonSection(TableIDDSMCC, 1, true, 0x0000, body)

	if err := parser(0x1FFC, section); err != nil {
		t.Fatalf("DIIParser: %v", err)
	}

	modID, ok := env.Tree.GetDentryByPath("DII/0x1ffc/001/module_01/module_id")
	if !ok {
		t.Fatal("DII/0x1ffc/001/module_01/module_id not created")
	}
	if got := string(modID.Contents()); got != "0x0005" {
		t.Fatalf("module_id = %q, want 0x0005", got)
	}

	if _, ok := env.Tree.GetDentryByPath("DII/0x1ffc/Current"); !ok {
		t.Fatal("DII/0x1ffc/Current not installed")
	}

	if _, ok := env.diiTransactions[0x42]; !ok {
		t.Fatal("transaction 0x42 not recorded for DSI linkage")
	}
}

func TestDIIParserShortBodyError(t *testing.T) {
	env := newTestEnv()
	parser := DIIParser(env)
	section := buildCommonSection(TableIDDSMCC, 1, true, 0x0000, []byte{0x11, 0x03})
	if err := parser(0x1FFC, section); err == nil {
		t.Fatal("expected ErrShortTable for a truncated DII body")
	}
}

func TestDIIParserIgnoresNonUNMessage(t *testing.T) {
	env := newTestEnv()
	parser := DIIParser(env)
	body := buildDSMCCMessageBody(messageIDDII, 0x1, []byte{0x00, 0x00})
	body[0] = 0x00 // wrong protocol_discriminator
	section := buildCommonSection(TableIDDSMCC, 1, true, 0x0000, body)
	if err := parser(0x1FFC, section); err != nil {
		t.Fatalf("DIIParser: %v", err)
	}
	if _, ok := env.Tree.GetDentryByPath("DII/0x1ffc/Current"); ok {
		t.Fatal("DII/0x1ffc/Current should not exist for a non-U-N message")
	}
}
