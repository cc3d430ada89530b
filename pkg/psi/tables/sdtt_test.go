package tables

import "testing"

func TestSDTTParserSingleContentNoSchedule(t *testing.T) {
	env := newTestEnv()
	parser := SDTTParser(env)

	body := []byte{
		0x10, 0x01, // transport_stream_id
		0x00, 0x01, // original_network_id
		0x00, 0x02, // service_id
		0x01,       // num_of_contents
		0x10, 0x23, // group=1, target_version=0x023
		0x45, 0x60, // new_version=0x456>>?, download_level/version_indicator bits
		0x00, 0x04, // content_descriptor_length=0, reserved
		0x00, 0x00, // schedule_descriptor_length=0, shift
	}
	section := buildCommonSection(0xC3, 3, true, 0x1234, body)
	if err := parser(0x23, section); err != nil {
		t.Fatalf("SDTTParser: %v", err)
	}

	group, ok := env.Tree.GetDentryByPath("SDTT/0x0023/003/01/group")
	if !ok {
		t.Fatal("SDTT/0x0023/003/01/group not created")
	}
	if got := string(group.Contents()); got != "1" {
		t.Fatalf("group = %q, want 1", got)
	}

	if _, ok := env.Tree.GetDentryByPath("SDTT/0x0023/Current"); !ok {
		t.Fatal("SDTT/0x0023/Current not installed")
	}
}

func TestSDTTParserShortBodyError(t *testing.T) {
	env := newTestEnv()
	parser := SDTTParser(env)
	section := buildCommonSection(0xC3, 1, true, 0x1234, []byte{0x00, 0x01})
	if err := parser(0x23, section); err == nil {
		t.Fatal("expected ErrShortTable for truncated SDTT body")
	}
}
