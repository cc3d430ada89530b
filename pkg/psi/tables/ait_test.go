package tables

import "testing"

func TestAITParserCreatesApplicationDirs(t *testing.T) {
	env := newTestEnv()
	parser := AITParser(env)

	body := []byte{
		0x00, 0x00, // common_descriptors_length = 0
		0x00, 0x09, // application_loop_length = 9 (one entry, no descriptors)
		0x00, 0x00, 0x00, 0x01, // organization_id
		0x20, 0x02, // application_id
		0x01,       // application_control_code
		0x00, 0x00, // application_descriptors_loop_length = 0
	}
	section := buildCommonSection(0x74, 2, true, 0x0001, body)
	if err := parser(0x1FF1, section); err != nil {
		t.Fatalf("AITParser: %v", err)
	}

	ctrl, ok := env.Tree.GetDentryByPath("AIT/002/Application_01/application_control_code")
	if !ok {
		t.Fatal("Application_01/application_control_code not created")
	}
	if got := string(ctrl.Contents()); got != "0x01" {
		t.Fatalf("application_control_code = %q, want 0x01", got)
	}

	if _, ok := env.Tree.GetDentryByPath("AIT/Current"); !ok {
		t.Fatal("AIT/Current not installed")
	}
}

func TestAITParserShortBodyError(t *testing.T) {
	env := newTestEnv()
	parser := AITParser(env)
	section := buildCommonSection(0x74, 1, true, 0x0001, []byte{0x00})
	if err := parser(0x1FF1, section); err == nil {
		t.Fatal("expected ErrShortTable for truncated AIT body")
	}
}
