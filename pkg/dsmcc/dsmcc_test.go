package dsmcc

import (
	"encoding/binary"
	"testing"

	"github.com/ausocean/demuxfs/pkg/logging"
	"github.com/ausocean/demuxfs/pkg/tree"
)

// --- test-only encoders mirroring this package's decoders ---

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// buildObjectLocation encodes a BIOP::ObjectLocation carrying objectKey as
// a 4-byte object_key.
func buildObjectLocation(objectKey uint32) []byte {
	var buf []byte
	buf = append(buf, be32(0x49534f50)...) // tag
	buf = append(buf, 0x00)                // skipped byte
	buf = append(buf, be32(0)...)          // carousel_id
	buf = append(buf, be16(1)...)          // module_id
	buf = append(buf, 1, 0)                // version major/minor
	buf = append(buf, 4)                   // object_key_length
	buf = append(buf, be32(objectKey)...)  // object_key
	return buf
}

// buildConnBinder encodes a BIOP::ConnBinder with zero taps.
func buildConnBinder() []byte {
	var buf []byte
	buf = append(buf, be32(profileTagConnBinder)...)
	buf = append(buf, 0x00) // skipped byte
	buf = append(buf, 0x00) // tap_count = 0
	return buf
}

// buildIOR encodes an IOP::IOR with a single BIOP tagged profile whose
// object_location carries objectKey.
func buildIOR(objectKey uint32) []byte {
	ol := buildObjectLocation(objectKey)
	cb := buildConnBinder()

	var profileBody []byte
	profileBody = append(profileBody, 0x00) // profile_data_byte_order
	profileBody = append(profileBody, 0x01) // component_count
	profileBody = append(profileBody, ol...)
	profileBody = append(profileBody, cb...)

	var profile []byte
	profile = append(profile, be32(profileTagBIOP)...)
	profile = append(profile, be32(uint32(len(profileBody)))...)
	profile = append(profile, profileBody...)

	var ior []byte
	ior = append(ior, be32(0)...) // type_id_length = 0
	ior = append(ior, be32(1)...) // tagged_profiles_count = 1
	ior = append(ior, profile...)
	return ior
}

// buildSubHeader encodes a BIOP::Message sub-header with no object info
// and no service context.
func buildSubHeader(key []byte, kindTag uint32) []byte {
	var buf []byte
	buf = append(buf, byte(len(key)))
	buf = append(buf, key...)
	buf = append(buf, be32(kindTag)...)
	buf = append(buf, be32(0)...) // object_info_length = 0
	buf = append(buf, be16(0)...) // service_context_list_count = 0
	return buf
}

// buildBinding encodes one BIOP::Binding.
func buildBinding(id, kind string, objectKey uint32, contentSize *uint64) []byte {
	var kindTag uint32
	switch kind {
	case "dir":
		kindTag = objectKindDirectory
	case "fil":
		kindTag = objectKindFile
	}

	var buf []byte
	buf = append(buf, 0x01) // name_component_count, assumed 1
	buf = append(buf, byte(len(id)))
	buf = append(buf, id...)
	buf = append(buf, byte(len(kind)))
	buf = append(buf, kind...)
	buf = append(buf, 0x01) // binding_type (arbitrary, unused by this port)
	buf = append(buf, buildIOR(objectKey)...)

	var childInfo []byte
	if contentSize != nil {
		childInfo = append(childInfo, be64(*contentSize)...)
	}
	buf = append(buf, be16(uint16(len(childInfo)))...)
	buf = append(buf, childInfo...)
	return buf
}

// buildDirectoryMessageBody encodes a full BIOP DirectoryMessage body
// (everything after the 12-byte message header).
func buildDirectoryMessageBody(selfKey []byte, kindTag uint32, bindings [][]byte) []byte {
	var buf []byte
	buf = append(buf, buildSubHeader(selfKey, kindTag)...)
	buf = append(buf, be32(0)...) // message_body_length, unused by the decoder.
	buf = append(buf, be16(uint16(len(bindings)))...)
	for _, b := range bindings {
		buf = append(buf, b...)
	}
	return buf
}

// buildFileMessageBody encodes a full BIOP FileMessage body.
func buildFileMessageBody(selfKey []byte, contents []byte) []byte {
	var buf []byte
	buf = append(buf, buildSubHeader(selfKey, objectKindFile)...)
	buf = append(buf, be32(0)...) // message_body_length, unused by the decoder.
	buf = append(buf, be32(uint32(len(contents)))...)
	buf = append(buf, contents...)
	return buf
}

// wrapBIOPMessage prefixes body with a 12-byte BIOP message header whose
// message_size matches len(body).
func wrapBIOPMessage(body []byte) []byte {
	var buf []byte
	buf = append(buf, be32(biopMagic)...)
	buf = append(buf, 1, 0, 0, 0) // version major/minor, byte_order, message_type
	buf = append(buf, be32(uint32(len(body)))...)
	buf = append(buf, body...)
	return buf
}

func keyBytes(inode uint32) []byte { return be32(inode) }

// --- IOR / BIOP unit tests ---

func TestParseIORGatewayObjectKey(t *testing.T) {
	buf := buildIOR(0xAB)
	ior, n, err := ParseIOR(buf)
	if err != nil {
		t.Fatalf("ParseIOR: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d bytes, want %d", n, len(buf))
	}
	key, ok := ior.GatewayObjectKey()
	if !ok {
		t.Fatal("expected a resolvable gateway object key")
	}
	if key != 0xAB {
		t.Fatalf("object key = %#x, want 0xab", key)
	}
}

func TestParseDirectoryMessageBindings(t *testing.T) {
	b1 := buildBinding("movies", "dir", 0x10, nil)
	size := uint64(42)
	b2 := buildBinding("index.xml", "fil", 0x11, &size)
	body := buildDirectoryMessageBody(keyBytes(0x01), objectKindDirectory, [][]byte{b1, b2})

	dm, n, err := ParseDirectoryMessage(body)
	if err != nil {
		t.Fatalf("ParseDirectoryMessage: %v", err)
	}
	if n != len(body) {
		t.Fatalf("consumed %d bytes, want %d", n, len(body))
	}
	if dm.SubHeader.Inode() != 0x01 {
		t.Fatalf("sub-header inode = %#x, want 0x01", dm.SubHeader.Inode())
	}
	if len(dm.Bindings) != 2 {
		t.Fatalf("got %d bindings, want 2", len(dm.Bindings))
	}
	if dm.Bindings[0].Name.ID != "movies" || dm.Bindings[0].Name.Kind != "dir" {
		t.Fatalf("binding 0 = %+v", dm.Bindings[0])
	}
	if dm.Bindings[0].ChildInode != 0x10 {
		t.Fatalf("binding 0 child inode = %#x, want 0x10", dm.Bindings[0].ChildInode)
	}
	if dm.Bindings[1].Name.Kind != "fil" || !dm.Bindings[1].HasContentSize || dm.Bindings[1].ContentSize != 42 {
		t.Fatalf("binding 1 = %+v", dm.Bindings[1])
	}
}

func TestParseFileMessageContents(t *testing.T) {
	body := buildFileMessageBody(keyBytes(0x20), []byte("hello carousel"))
	fm, n, err := ParseFileMessage(body)
	if err != nil {
		t.Fatalf("ParseFileMessage: %v", err)
	}
	if n != len(body) {
		t.Fatalf("consumed %d bytes, want %d", n, len(body))
	}
	if fm.SubHeader.Inode() != 0x20 {
		t.Fatalf("inode = %#x, want 0x20", fm.SubHeader.Inode())
	}
	if string(fm.Contents) != "hello carousel" {
		t.Fatalf("contents = %q", fm.Contents)
	}
}

func TestParseMessageHeaderBadMagic(t *testing.T) {
	buf := make([]byte, 12)
	if _, _, err := parseMessageHeader(buf); err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

// --- Carousel engine tests ---

func newTestCarousel(t *testing.T) (*tree.Tree, *Carousel) {
	t.Helper()
	tr := tree.New()
	root, err := tr.CreateDirectory(tr.Root, 0xFFFFFFFE, "Current")
	if err != nil {
		t.Fatalf("CreateDirectory root: %v", err)
	}
	c, err := NewCarousel(tr, root, logging.Nop{})
	if err != nil {
		t.Fatalf("NewCarousel: %v", err)
	}
	return tr, c
}

// TestCarouselServiceGatewayAndDirectory exercises the straightforward
// case: a service gateway message whose binding resolves immediately
// (the referenced directory arrives in the same Decode call's traversal
// order, so its inode is already registered by the time the "dir"
// message for it is processed).
func TestCarouselServiceGatewayAndDirectory(t *testing.T) {
	tr, c := newTestCarousel(t)

	dirBinding := buildBinding("videos", "dir", 0x100, nil)
	srg := wrapBIOPMessage(buildDirectoryMessageBody(keyBytes(0x01), objectKindServiceGateway, [][]byte{dirBinding}))

	fileBinding := buildBinding("clip.ts", "fil", 0x101, nil)
	dir := wrapBIOPMessage(buildDirectoryMessageBody(keyBytes(0x100), objectKindDirectory, [][]byte{fileBinding}))

	buf := append(append([]byte{}, srg...), dir...)
	if err := c.Decode(buf); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if c.Root.Inode != 0x01 {
		t.Fatalf("root inode after srg = %#x, want 0x01", c.Root.Inode)
	}
	videos, ok := c.Root.ChildByName("videos")
	if !ok {
		t.Fatal("expected a 'videos' child under root")
	}
	if videos.Inode != 0x100 {
		t.Fatalf("videos inode = %#x, want 0x100", videos.Inode)
	}
	clip, ok := videos.ChildByName("clip.ts")
	if !ok {
		t.Fatal("expected a 'clip.ts' child under videos")
	}
	if clip.Inode != 0x101 {
		t.Fatalf("clip.ts inode = %#x, want 0x101", clip.Inode)
	}

	c.ReparentOrphans()
	if len(c.Stepfather.Children()) != 0 {
		t.Fatalf("expected an empty stepfather, got %d children", len(c.Stepfather.Children()))
	}

	_ = tr // retained for future assertions against tr.FindByInode if extended
}

// TestCarouselForwardReferenceReparenting exercises the forward-reference
// case: the directory message naming a child arrives before the
// directory message for that child's own parent does, so the child is
// staged under Stepfather and only reparented once ReparentOrphans runs
// after the parent's directory message has been decoded.
func TestCarouselForwardReferenceReparenting(t *testing.T) {
	_, c := newTestCarousel(t)

	// "series" directory message arrives first, announcing a child
	// directory "season1" (inode 0x202) whose own parent (0x201) has not
	// been seen yet.
	childBinding := buildBinding("season1", "dir", 0x202, nil)
	seriesMsg := wrapBIOPMessage(buildDirectoryMessageBody(keyBytes(0x201), objectKindDirectory, [][]byte{childBinding}))

	if err := c.Decode(seriesMsg); err != nil {
		t.Fatalf("Decode seriesMsg: %v", err)
	}

	season1, ok := c.Stepfather.ChildByName("season1")
	if !ok {
		t.Fatal("expected 'season1' staged under stepfather before its parent is known")
	}
	if season1.Inode != 0x202 {
		t.Fatalf("season1 inode = %#x, want 0x202", season1.Inode)
	}

	// Now the service gateway message announces "series" itself
	// (inode 0x201) as a root-level directory.
	rootBinding := buildBinding("series", "dir", 0x201, nil)
	srg := wrapBIOPMessage(buildDirectoryMessageBody(keyBytes(0x01), objectKindServiceGateway, [][]byte{rootBinding}))
	if err := c.Decode(srg); err != nil {
		t.Fatalf("Decode srg: %v", err)
	}

	series, ok := c.Root.ChildByName("series")
	if !ok {
		t.Fatal("expected 'series' to now be resolvable under root")
	}
	if series.Inode != 0x201 {
		t.Fatalf("series inode = %#x, want 0x201", series.Inode)
	}

	c.ReparentOrphans()

	if _, stillStaged := c.Stepfather.ChildByName("season1"); stillStaged {
		t.Fatal("season1 should have been moved out of stepfather")
	}
	moved, ok := series.ChildByName("season1")
	if !ok {
		t.Fatal("expected season1 to be reparented under series")
	}
	if moved.Inode != 0x202 {
		t.Fatalf("reparented season1 inode = %#x, want 0x202", moved.Inode)
	}
}

// TestCarouselFileArrivesBeforeDirectoryEntry exercises a BIOP file
// message delivering content for an inode whose directory binding has
// not yet been decoded: the content is staged as an orphan_<inode> placeholder,
// then the later directory message's binding resolves to the same inode
// and should find the already-populated dentry rather than creating a
// second, empty one.
func TestCarouselFileArrivesBeforeDirectoryEntry(t *testing.T) {
	_, c := newTestCarousel(t)

	fileMsg := wrapBIOPMessage(buildFileMessageBody(keyBytes(0x300), []byte("late-bound bytes")))
	if err := c.Decode(fileMsg); err != nil {
		t.Fatalf("Decode fileMsg: %v", err)
	}

	placeholder, ok := c.tr.FindByInode(0x300)
	if !ok {
		t.Fatal("expected the file's bytes to be staged under some dentry")
	}
	if string(placeholder.Contents()) != "late-bound bytes" {
		t.Fatalf("placeholder contents = %q", placeholder.Contents())
	}

	fileBinding := buildBinding("notes.txt", "fil", 0x300, nil)
	srg := wrapBIOPMessage(buildDirectoryMessageBody(keyBytes(0x01), objectKindServiceGateway, [][]byte{fileBinding}))
	if err := c.Decode(srg); err != nil {
		t.Fatalf("Decode srg: %v", err)
	}

	// The binding resolves to the same already-indexed dentry (and, since
	// its parent is now known, createOrUpdateFile reparents it out of
	// Stepfather immediately); either way its content must be present.
	again, ok := c.tr.FindByInode(0x300)
	if !ok || string(again.Contents()) != "late-bound bytes" {
		t.Fatal("expected the same populated dentry to still be found by inode")
	}
}

func TestCarouselDecodeStopsOnIncompleteTrailingMessage(t *testing.T) {
	_, c := newTestCarousel(t)

	full := wrapBIOPMessage(buildDirectoryMessageBody(keyBytes(0x01), objectKindServiceGateway, nil))
	partial := full[:len(full)-4] // a later message whose declared size overruns what's arrived.
	buf := append(append([]byte{}, full...), partial...)

	if err := c.Decode(buf); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Root.Inode != 0x01 {
		t.Fatalf("root inode = %#x, want 0x01 (first message should still be applied)", c.Root.Inode)
	}
}
