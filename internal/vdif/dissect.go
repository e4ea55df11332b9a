package vdif

import "fmt"

// FieldValue is one raw header field: its wire name and the unsigned value
// cut from the word, before any interpretation.
type FieldValue struct {
	Name  string `json:"name"`
	Value uint32 `json:"value"`
}

// fieldSpec places one named field inside the header: word index, starting
// bit and width. The tables below are the complete wire layout; Dissect
// walks them so the listing order always matches bit order.
type fieldSpec struct {
	name  string
	word  int
	off   uint
	width uint
}

var baseFields = []fieldSpec{
	{"seconds", 0, 0, 30},
	{"legacy_mode", 0, 30, 1},
	{"invalid", 0, 31, 1},
	{"frame_number", 1, 0, 24},
	{"epoch", 1, 24, 6},
	{"unassigned", 1, 30, 2},
	{"frame_length_words8", 2, 0, 24},
	{"channel_count_log2", 2, 24, 5},
	{"version", 2, 29, 3},
	{"station_id", 3, 0, 16},
	{"thread_id", 3, 16, 10},
	{"bits_per_sample_minus1", 3, 26, 5},
	{"complex", 3, 31, 1},
}

var edv0Fields = []fieldSpec{
	{"word4", 4, 0, 24},
	{"edv", 4, 24, 8},
	{"word5", 5, 0, 32},
	{"word6", 6, 0, 32},
	{"word7", 7, 0, 32},
}

var edv2ALMAFields = []fieldSpec{
	{"sync", 4, 0, 20},
	{"spare", 4, 20, 4},
	{"edv", 4, 24, 8},
	{"status", 5, 0, 32},
	{"psn_low", 6, 0, 32},
	{"psn_high", 7, 0, 32},
}

var edv2R2DBEFields = []fieldSpec{
	{"word4", 4, 0, 24},
	{"edv", 4, 24, 8},
	{"pps_diff", 5, 0, 32},
	{"psn_low", 6, 0, 32},
	{"psn_high", 7, 0, 32},
}

var edv3Fields = []fieldSpec{
	{"sample_rate", 4, 0, 23},
	{"rate_unit", 4, 23, 1},
	{"edv", 4, 24, 8},
	{"sync_pattern", 5, 0, 32},
	{"tuning", 6, 0, 32},
	{"personality", 7, 0, 8},
	{"minor_rev", 7, 8, 4},
	{"major_rev", 7, 12, 4},
	{"sideband", 7, 16, 1},
	{"sub_band", 7, 17, 3},
	{"if_number", 7, 20, 4},
	{"dbe_unit", 7, 24, 4},
	{"spare", 7, 28, 4},
}

func extensionFields(kind ExtensionKind) []fieldSpec {
	switch kind {
	case ExtEDV2ALMA:
		return edv2ALMAFields
	case ExtEDV2R2DBE:
		return edv2R2DBEFields
	case ExtEDV3:
		return edv3Fields
	default:
		return edv0Fields
	}
}

// Dissect lists every header field of the frame starting at buf as raw
// (name, value) pairs in wire order. Words 4-7 are laid out by the same
// variant selection DecodeHeader applies.
func Dissect(buf []byte) ([]FieldValue, error) {
	if len(buf) < LegacyHeaderLen {
		return nil, &MalformedHeaderError{Reason: fmt.Sprintf("need at least %d header bytes, have %d", LegacyHeaderLen, len(buf))}
	}
	var words [8]uint32
	for i := 0; i < 4; i++ {
		words[i] = loadWord(buf[i*4 : i*4+4])
	}

	out := make([]FieldValue, 0, len(baseFields)+len(edv3Fields))
	out = appendFields(out, baseFields, words[:])

	if extract(words[0], 30, 1) == 1 {
		return out, nil
	}
	if len(buf) < HeaderLen {
		return nil, &MalformedHeaderError{Reason: fmt.Sprintf("non-legacy header needs %d bytes, have %d", HeaderLen, len(buf))}
	}
	for i := 4; i < 8; i++ {
		words[i] = loadWord(buf[i*4 : i*4+4])
	}
	return appendFields(out, extensionFields(resolveKind(words[4])), words[:]), nil
}

func appendFields(out []FieldValue, specs []fieldSpec, words []uint32) []FieldValue {
	for _, spec := range specs {
		out = append(out, FieldValue{Name: spec.name, Value: extract(words[spec.word], spec.off, spec.width)})
	}
	return out
}
