package pes

import (
	"testing"

	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/tree"
)

// videoPESWithPTSAndNAL builds a PES blob carrying stream_id 0xE0 (video),
// a PTS-only optional header (PTS=5), and an ES payload consisting of
// leading garbage, an H.264 start code, a reference-picture NAL header
// byte (nal_ref_idc=3), and two payload bytes.
func videoPESWithPTSAndNAL() []byte {
	header := []byte{
		0x00, 0x00, 0x01, 0xE0, // start code, stream_id
		0x00, 0x00, // pes_packet_length (unbounded)
		0x80,                   // marker bits, no scrambling/priority/DAI/copyright/original
		0x80,                   // PDI=10 (PTS only), no ESCR/ES_rate/trick/copy/CRC/ext
		0x05,                   // header_data_length
		0x21, 0x00, 0x01, 0x00, 0x0B, // PTS=5
	}
	es := []byte{0xFF, 0xFF, 0x00, 0x00, 0x00, 0x01, 0x65, 0xAA, 0xBB}
	return append(header, es...)
}

func newOpenFIFOPair(t *testing.T) (*tree.Tree, *tree.Dentry, *tree.Dentry) {
	t.Helper()
	tr := tree.New()
	pesD, err := tr.CreateFIFO(tr.Root, 1, "pes", tree.FIFOVideo, nil)
	if err != nil {
		t.Fatalf("CreateFIFO pes: %v", err)
	}
	esD, err := tr.CreateFIFO(tr.Root, 2, "es", tree.FIFOVideo, nil)
	if err != nil {
		t.Fatalf("CreateFIFO es: %v", err)
	}
	pesD.Open()
	esD.Open()
	return tr, pesD, esD
}

func TestReassemblerDeliversPESAndSyncedES(t *testing.T) {
	_, pesD, esD := newOpenFIFOPair(t)
	r := NewReassembler(4, logging.Nop{})
	r.BindStream(0x101, 0x1B, pesD, esD) // 0x1B = H.264 video

	blob := videoPESWithPTSAndNAL()
	r.HandlePES(0x101, blob, false)

	pesFifo := pesD.Priv.(*Fifo)
	select {
	case got := <-pesFifo.C():
		if len(got) != len(blob) {
			t.Fatalf("pes fifo delivered %d bytes, want %d", len(got), len(blob))
		}
	default:
		t.Fatal("pes fifo received nothing")
	}

	esFifo := esD.Priv.(*Fifo)
	want := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0xAA, 0xBB}
	select {
	case got := <-esFifo.C():
		if len(got) != len(want) {
			t.Fatalf("es fifo delivered %d bytes, want %d (%x)", len(got), len(want), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("es fifo byte %d = %#x, want %#x", i, got[i], want[i])
			}
		}
	default:
		t.Fatal("es fifo received nothing")
	}
}

func TestReassemblerSkipsUnopenedFIFOs(t *testing.T) {
	tr := tree.New()
	pesD, _ := tr.CreateFIFO(tr.Root, 1, "pes", tree.FIFOVideo, nil)
	esD, _ := tr.CreateFIFO(tr.Root, 2, "es", tree.FIFOVideo, nil)
	// Neither dentry is Open()'d.

	r := NewReassembler(4, logging.Nop{})
	r.BindStream(0x101, 0x1B, pesD, esD)
	r.HandlePES(0x101, videoPESWithPTSAndNAL(), false)

	pesFifo := pesD.Priv.(*Fifo)
	select {
	case <-pesFifo.C():
		t.Fatal("pes fifo should not have received anything while closed")
	default:
	}
}

func TestReassemblerUnboundPIDIgnored(t *testing.T) {
	r := NewReassembler(4, logging.Nop{})
	// No panic, no-op.
	r.HandlePES(0x1FFF, videoPESWithPTSAndNAL(), false)
}

func TestFifoDropsWhenFull(t *testing.T) {
	f := NewFifo(1)
	f.Append([]byte{1})
	f.Append([]byte{2}) // dropped: channel already holds one pending chunk

	got := <-f.C()
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1] (the first append, second should be dropped)", got)
	}
	select {
	case extra := <-f.C():
		t.Fatalf("unexpected second delivery %v", extra)
	default:
	}
}

func TestDecodeHeaderPTSOnly(t *testing.T) {
	blob := videoPESWithPTSAndNAL()
	hdr, err := decodeHeader(blob)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if !hdr.HasPTS() || hdr.HasDTS() {
		t.Fatalf("HasPTS/HasDTS = %v/%v, want true/false", hdr.HasPTS(), hdr.HasDTS())
	}
	if hdr.PTS != 5 {
		t.Fatalf("PTS = %d, want 5", hdr.PTS)
	}
	if hdr.DataOffset != 14 {
		t.Fatalf("DataOffset = %d, want 14", hdr.DataOffset)
	}
}

func TestDecodeHeaderNoOptionalFields(t *testing.T) {
	blob := []byte{0x00, 0x00, 0x01, 0xBE, 0x00, 0x04, 0xDE, 0xAD, 0xBE, 0xEF}
	hdr, err := decodeHeader(blob)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if hdr.DataOffset != 6 {
		t.Fatalf("DataOffset = %d, want 6 for a padding stream", hdr.DataOffset)
	}
}

func TestDecodeHeaderShortBlob(t *testing.T) {
	if _, err := decodeHeader([]byte{0x00, 0x00, 0x01}); err == nil {
		t.Fatal("expected ErrShortPESHeader for a 3-byte blob")
	}
}

func TestSyncH264SkipsNonReferenceNAL(t *testing.T) {
	// nal_ref_idc=0 (0x09, an access unit delimiter) should be skipped in
	// favour of the following reference-picture NAL.
	payload := []byte{0x00, 0x00, 0x01, 0x09, 0x10, 0x00, 0x00, 0x01, 0x65, 0xCC}
	got, ok := syncH264(payload)
	if !ok {
		t.Fatal("expected a sync match")
	}
	want := []byte{0x00, 0x00, 0x01, 0x65, 0xCC}
	if len(got) != len(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %x, want %x", got, want)
		}
	}
}

func TestSyncLATMFindsSyncword(t *testing.T) {
	payload := []byte{0x11, 0x22, 0x56, 0xE0, 0x33}
	got, ok := syncLATM(payload)
	if !ok {
		t.Fatal("expected a sync match")
	}
	if len(got) != 3 || got[0] != 0x56 || got[1] != 0xE0 {
		t.Fatalf("got %x, want sync starting at the 0x56,0xE0 pair", got)
	}
}

func TestSyncLATMNoMatch(t *testing.T) {
	payload := []byte{0x11, 0x22, 0x33}
	if _, ok := syncLATM(payload); ok {
		t.Fatal("expected no sync match")
	}
}
