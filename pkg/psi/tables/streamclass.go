/*
NAME
  streamclass.go - PMT elementary stream classification.

DESCRIPTION
  Implements the stream_type -> tree sub-directory classification of
  spec.md §4.3's PMT responsibility, grounded on
  original_source/src/stream_type.c's stream_type_is_* family and
  original_source/src/component_tag.c's component_is_* family (consulted
  when a stream_identifier_descriptor, tag 0x52, is present).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tables

// Stream classification directory names, children of a PMT version
// directory, per spec.md §4.3.
const (
	StreamsVideo          = "Video"
	StreamsAudio          = "Audio"
	StreamsOneSegVideo    = "OneSegVideo"
	StreamsOneSegAudio    = "OneSegAudio"
	StreamsDataCarousel   = "DataCarousel"
	StreamsObjectCarousel = "ObjectCarousel"
	StreamsMPE            = "MPE"
	StreamsEventMessage   = "EventMessage"
	StreamsOther          = "Other"
)

// classifyStreamType maps a PMT stream_type byte to a classification
// directory name, per spec.md §4.3's PMT stream_type ranges.
func classifyStreamType(streamType byte) string {
	switch streamType {
	case 0x01, 0x02, 0x1B:
		return StreamsVideo
	case 0x03, 0x04, 0x0F, 0x11, 0x81:
		return StreamsAudio
	case 0x0A:
		return StreamsMPE
	case 0x0C:
		return StreamsEventMessage
	case 0x06, 0x7E:
		return StreamsObjectCarousel
	case 0x0B, 0x0D:
		// 0x0B and 0x0D are ambiguous between data and object carousel in
		// the ARIB/ISDB mapping; spec.md §4.3 lists both under object
		// carousel as well as data carousel, so classification here
		// defaults to data carousel and is refined below by
		// componentTagClass when a stream_identifier_descriptor is
		// present.
		return StreamsDataCarousel
	default:
		return StreamsOther
	}
}

// isCarouselClass reports whether class is one of the two carousel
// classifications, used by the PMT parser to decide whether to register
// the DSM-CC parser on the stream's ES PID.
func isCarouselClass(class string) bool {
	return class == StreamsDataCarousel || class == StreamsObjectCarousel
}

// componentTagClass maps a stream_identifier_descriptor's component_tag
// to a classification directory name and reports whether it is the
// primary component of its class, refining classifyStreamType's result
// per original_source/src/tables/descriptors/component_tag.c's
// component_is_* family: 0x00-0x0F full-seg video (0x81/0x82 one-seg
// video), 0x10-0x2F full-seg audio (0x83-0x86/0x90/0x91 one-seg audio),
// 0x30-0x37 full-seg captions (0x87 one-seg), 0x38-0x3F full-seg
// superimposed text (0x88 one-seg), 0x40-0x6F object carousel, 0x80
// exactly data carousel, 0x70-0x7F event message; everything else
// (notably 0x89-0x8F) is reserved.
func componentTagClass(tag byte) (class string, primary bool) {
	switch {
	case tag <= 0x0F || tag == 0x81 || tag == 0x82:
		primary = tag == 0x00 || tag == 0x81
		if tag == 0x81 || tag == 0x82 {
			return StreamsOneSegVideo, primary
		}
		return StreamsVideo, primary
	case (tag >= 0x10 && tag <= 0x2F) || (tag >= 0x83 && tag <= 0x86) || tag == 0x90 || tag == 0x91:
		primary = tag == 0x10 || tag == 0x83 || tag == 0x85 || tag == 0x90
		if (tag >= 0x83 && tag <= 0x86) || tag == 0x90 || tag == 0x91 {
			return StreamsOneSegAudio, primary
		}
		return StreamsAudio, primary
	case (tag >= 0x30 && tag <= 0x37) || tag == 0x87:
		return "ClosedCaption", tag == 0x30 || tag == 0x87
	case (tag >= 0x38 && tag <= 0x3F) || tag == 0x88:
		return "Superimposed", tag == 0x38 || tag == 0x88
	case tag >= 0x40 && tag <= 0x6F:
		return StreamsObjectCarousel, tag == 0x40
	case tag == 0x80:
		return StreamsDataCarousel, true
	case tag >= 0x70 && tag <= 0x7F:
		return StreamsEventMessage, false
	default:
		return StreamsOther, false
	}
}
