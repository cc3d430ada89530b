package tables

import "testing"

func buildDDBBody(moduleID, blockNumber uint16, blockData []byte) []byte {
	body := []byte{
		0x11, dsmccTypeDownloadDataBlock,
		byte(messageIDDownloadDataBlock >> 8), byte(messageIDDownloadDataBlock),
		0x00, 0x00, 0x00, 0x01, // download_id
		0x00,       // reserved
		0x00,       // adaptation_length = 0
		0x00, 0x0a, // message_length = 10 (>= 5)
		byte(moduleID >> 8), byte(moduleID),
		0x01, // module_version
		0x00, // reserved
		byte(blockNumber >> 8), byte(blockNumber),
	}
	return append(body, blockData...)
}

func TestDDBParserCreatesBlockFile(t *testing.T) {
	env := newTestEnv()
	parser := DDBParser(env)

	section := buildCommonSection(TableIDDDB, 0, true, 0x0000, buildDDBBody(3, 0, []byte{0x01, 0x02, 0x03}))
	if err := parser(0x1FFD, section); err != nil {
		t.Fatalf("DDBParser: %v", err)
	}

	block, ok := env.Tree.GetDentryByPath("DDB/0x1ffd/000/module_03/block_00.bin")
	if !ok {
		t.Fatal("DDB/0x1ffd/000/module_03/block_00.bin not created")
	}
	if got := block.Contents(); len(got) != 3 || got[2] != 0x03 {
		t.Fatalf("block contents = %v, want [1 2 3]", got)
	}
}

func TestDDBParserSkipsDuplicateBlock(t *testing.T) {
	env := newTestEnv()
	parser := DDBParser(env)

	section1 := buildCommonSection(TableIDDDB, 0, true, 0x0000, buildDDBBody(1, 0, []byte{0xAA}))
	if err := parser(0x1FFD, section1); err != nil {
		t.Fatalf("first DDBParser: %v", err)
	}
	section2 := buildCommonSection(TableIDDDB, 0, true, 0x0000, buildDDBBody(1, 0, []byte{0xBB}))
	if err := parser(0x1FFD, section2); err != nil {
		t.Fatalf("second DDBParser: %v", err)
	}

	block, ok := env.Tree.GetDentryByPath("DDB/0x1ffd/000/module_01/block_00.bin")
	if !ok {
		t.Fatal("DDB/0x1ffd/000/module_01/block_00.bin not created")
	}
	if got := block.Contents(); len(got) != 1 || got[0] != 0xAA {
		t.Fatalf("block contents = %v, want original [0xAA] (duplicate should be ignored)", got)
	}
}

func TestDDBParserAccumulatesAcrossModules(t *testing.T) {
	env := newTestEnv()
	parser := DDBParser(env)

	s1 := buildCommonSection(TableIDDDB, 0, true, 0x0000, buildDDBBody(1, 0, []byte{0x01}))
	s2 := buildCommonSection(TableIDDDB, 0, true, 0x0000, buildDDBBody(1, 1, []byte{0x02}))
	s3 := buildCommonSection(TableIDDDB, 0, true, 0x0000, buildDDBBody(2, 0, []byte{0x03}))
	for _, s := range []([]byte){s1, s2, s3} {
		if err := parser(0x1FFD, s); err != nil {
			t.Fatalf("DDBParser: %v", err)
		}
	}

	for _, path := range []string{
		"DDB/0x1ffd/000/module_01/block_00.bin",
		"DDB/0x1ffd/000/module_01/block_01.bin",
		"DDB/0x1ffd/000/module_02/block_00.bin",
	} {
		if _, ok := env.Tree.GetDentryByPath(path); !ok {
			t.Fatalf("%s not created", path)
		}
	}
}
