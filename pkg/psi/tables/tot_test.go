package tables

import (
	"strings"
	"testing"

	"github.com/ausocean/demuxfs/pkg/descriptor"
	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/ts"
	"github.com/ausocean/demuxfs/pkg/tree"
)

func newTestEnv() *Env {
	return NewEnv(tree.New(), descriptor.NewRegistry(), descriptor.NewRegistry(), fakeRegistrar{}, nil, logging.Nop{}, nil, false)
}

type fakeRegistrar struct{}

func (fakeRegistrar) RegisterPSIPID(pid uint16)                          {}
func (fakeRegistrar) UnregisterPSIPID(pid uint16)                        {}
func (fakeRegistrar) RegisterPESPID(pid uint16, sink ts.PESSink)         {}
func (fakeRegistrar) UnregisterPESPID(pid uint16)                        {}

func buildTOTSection(tableID byte, utc uint64, desc []byte) []byte {
	section := make([]byte, 10+len(desc)+4)
	section[0] = tableID
	section[1] = 0
	section[2] = 0
	for i := 0; i < 5; i++ {
		section[3+i] = byte(utc >> uint(8*(4-i)))
	}
	section[8] = byte(len(desc) >> 8 & 0x0f)
	section[9] = byte(len(desc))
	copy(section[10:], desc)
	return section
}

func TestDecodeUTC3(t *testing.T) {
	// MJD 58849 = 2020-01-01, time 12:34:56 BCD-encoded.
	utc := uint64(58849)<<24 | 0x12<<16 | 0x34<<8 | 0x56
	got := decodeUTC3(utc)
	if !strings.Contains(got, "12:34:56") {
		t.Fatalf("decodeUTC3 = %q, want time component 12:34:56", got)
	}
}

func TestDecodeUTC3Zero(t *testing.T) {
	got := decodeUTC3(0)
	if !strings.HasPrefix(got, "0000-") {
		t.Fatalf("decodeUTC3(0) = %q, want a 0000-prefixed date", got)
	}
}

func TestTOTParserInstallsCurrent(t *testing.T) {
	env := newTestEnv()
	parser := TOTParser(env)

	utc := uint64(58849)<<24 | 0x12<<16 | 0x34<<8 | 0x56
	section := buildTOTSection(tableIDTOT, utc, nil)
	if err := parser(0x14, section); err != nil {
		t.Fatalf("TOTParser: %v", err)
	}

	cur, ok := env.Tree.GetDentryByPath("TOT/Current")
	if !ok {
		t.Fatal("TOT/Current not created")
	}
	if cur.Kind != tree.KindSymlink {
		t.Fatalf("TOT/Current kind = %v, want symlink", cur.Kind)
	}

	timeFile, ok := env.Tree.GetDentryByPath("TOT/000/utc3_time")
	if !ok {
		t.Fatal("TOT/000/utc3_time not created")
	}
	if got := string(timeFile.Contents()); !strings.Contains(got, "12:34:56") {
		t.Fatalf("utc3_time = %q, want 12:34:56 component", got)
	}
}

func TestTOTParserReusesVersionDirAcrossUpdates(t *testing.T) {
	env := newTestEnv()
	parser := TOTParser(env)

	first := buildTOTSection(tableIDTOT, uint64(58849)<<24|0x12<<16|0x34<<8|0x56, nil)
	if err := parser(0x14, first); err != nil {
		t.Fatalf("first TOTParser: %v", err)
	}
	second := buildTOTSection(tableIDTOT, uint64(58849)<<24|0x13<<16|0x00<<8|0x00, nil)
	if err := parser(0x14, second); err != nil {
		t.Fatalf("second TOTParser: %v", err)
	}

	timeFile, ok := env.Tree.GetDentryByPath("TOT/000/utc3_time")
	if !ok {
		t.Fatal("TOT/000/utc3_time not found after second update")
	}
	if got := string(timeFile.Contents()); !strings.Contains(got, "13:00:00") {
		t.Fatalf("utc3_time after second update = %q, want 13:00:00 component", got)
	}
}

func TestTOTParserShortSectionError(t *testing.T) {
	env := newTestEnv()
	parser := TOTParser(env)
	if err := parser(0x14, []byte{0x73, 0x00}); err == nil {
		t.Fatal("expected ErrShortTable for a truncated TOT section")
	}
}
