package tables

import (
	"testing"
)

func buildEITSection(tableID byte, version byte, tsID, onID uint16, events []eitEvent) []byte {
	var body []byte
	body = append(body, byte(tsID>>8), byte(tsID))
	body = append(body, byte(onID>>8), byte(onID))
	body = append(body, 0x00, tableID)
	for _, e := range events {
		body = append(body, byte(e.id>>8), byte(e.id))
		for i := 0; i < 5; i++ {
			body = append(body, byte(e.start>>uint(8*(4-i))))
		}
		body = append(body, byte(e.duration>>16), byte(e.duration>>8), byte(e.duration))
		rs := byte(1)
		b10 := rs<<5 | 0<<4 | byte(len(e.desc)>>8&0x0f)
		body = append(body, b10, byte(len(e.desc)))
		body = append(body, e.desc...)
	}
	return buildCommonSection(tableID, version, true, tsID, body)
}

type eitEvent struct {
	id       uint16
	start    uint64
	duration uint32
	desc     []byte
}

func TestEITParserCreatesEventDirs(t *testing.T) {
	env := newTestEnv()
	parser := EITParser(env)

	section := buildEITSection(0x4E, 1, 0x1001, 0x0001, []eitEvent{
		{id: 0x2001, start: 0x1234567890, duration: 0x003600},
		{id: 0x2002, start: 0x1234567891, duration: 0x003601},
	})
	if err := parser(0x12, section); err != nil {
		t.Fatalf("EITParser: %v", err)
	}

	ev1, ok := env.Tree.GetDentryByPath("EIT/0x0012/001/Event_0x2001/event_id")
	if !ok {
		t.Fatal("Event_0x2001 not created")
	}
	if got := string(ev1.Contents()); got != "0x2001" {
		t.Fatalf("event_id = %q, want 0x2001", got)
	}

	if _, ok := env.Tree.GetDentryByPath("EIT/0x0012/Current"); !ok {
		t.Fatal("EIT/0x0012/Current not installed")
	}
}

func TestEITParserShortBodyError(t *testing.T) {
	env := newTestEnv()
	parser := EITParser(env)
	section := buildCommonSection(0x4E, 1, true, 0x1001, []byte{0x00})
	if err := parser(0x12, section); err == nil {
		t.Fatal("expected ErrShortTable for truncated EIT body")
	}
}
