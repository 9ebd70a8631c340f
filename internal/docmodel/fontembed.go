package docmodel

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"
)

// buildFont embeds a composite font and returns the Type0 font object id.
// TrueType programs become CIDFontType2 with a FontFile2; CFF-flavored
// programs become CIDFontType0 with an OpenType FontFile3. Encoding is
// Identity-H, so content streams address glyphs by glyph ID.
func buildFont(doc *MemDoc, prog FontProgram) (int, error) {
	data := prog.Data()
	if len(data) == 0 {
		return 0, fmt.Errorf("font program is empty")
	}
	psName := prog.PostScriptName()
	if psName == "" {
		psName = "EmbeddedFont"
	}

	fileDict := Dict{}
	fileKey := "FontFile2"
	if prog.IsCFF() {
		fileDict["Subtype"] = Name("OpenType")
		fileKey = "FontFile3"
	} else {
		fileDict["Length1"] = Integer(len(data))
	}
	fileID := doc.addObject(&Stream{Dict: fileDict, Data: data})

	ascent, descent, capHeight := prog.Metrics()
	descriptorID := doc.addObject(Dict{
		"Type":        Name("FontDescriptor"),
		"FontName":    Name(psName),
		"Flags":       Integer(4), // symbolic
		"FontBBox":    Array{Integer(0), Integer(descent), Integer(1000), Integer(ascent)},
		"ItalicAngle": Integer(0),
		"Ascent":      Integer(ascent),
		"Descent":     Integer(descent),
		"CapHeight":   Integer(capHeight),
		"StemV":       Integer(80),
		fileKey:       Ref(fileID),
	})

	subtype := Name("CIDFontType2")
	if prog.IsCFF() {
		subtype = Name("CIDFontType0")
	}
	cidFont := Dict{
		"Type":     Name("Font"),
		"Subtype":  subtype,
		"BaseFont": Name(psName),
		"CIDSystemInfo": Dict{
			"Registry":   Str("Adobe"),
			"Ordering":   Str("Identity"),
			"Supplement": Integer(0),
		},
		"FontDescriptor": Ref(descriptorID),
		"DW":             Integer(1000),
		"W":              widthsArray(prog),
	}
	if !prog.IsCFF() {
		cidFont["CIDToGIDMap"] = Name("Identity")
	}
	cidFontID := doc.addObject(cidFont)

	toUnicodeID := doc.addObject(&Stream{
		Dict: Dict{},
		Data: toUnicodeCMap(prog.GlyphRunes()),
	})

	type0ID := doc.addObject(Dict{
		"Type":            Name("Font"),
		"Subtype":         Name("Type0"),
		"BaseFont":        Name(psName),
		"Encoding":        Name("Identity-H"),
		"DescendantFonts": Array{Ref(cidFontID)},
		"ToUnicode":       Ref(toUnicodeID),
	})
	return type0ID, nil
}

// widthsArray builds the /W array in the ranged "first last width" form,
// omitting runs at the default width of 1000.
func widthsArray(prog FontProgram) Array {
	const defaultWidth = 1000
	var w Array
	n := prog.NumGlyphs()
	for gid := 0; gid < n; {
		width := prog.GlyphWidth(gid)
		end := gid
		for end+1 < n && prog.GlyphWidth(end+1) == width {
			end++
		}
		if width != defaultWidth {
			w = append(w, Integer(gid), Integer(end), Integer(width))
		}
		gid = end + 1
	}
	return w
}

// toUnicodeCMap renders a ToUnicode CMap stream mapping glyph IDs to
// unicode code points, in bfchar blocks of at most 100 entries.
func toUnicodeCMap(glyphRunes map[int]rune) []byte {
	gids := make([]int, 0, len(glyphRunes))
	for gid := range glyphRunes {
		if gid >= 0 && gid <= 0xFFFF {
			gids = append(gids, gid)
		}
	}
	sort.Ints(gids)

	var buf bytes.Buffer
	buf.WriteString(`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
`)
	for start := 0; start < len(gids); start += 100 {
		end := start + 100
		if end > len(gids) {
			end = len(gids)
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", end-start)
		for _, gid := range gids[start:end] {
			fmt.Fprintf(&buf, "<%04X> <%s>\n", gid, utf16Hex(glyphRunes[gid]))
		}
		buf.WriteString("endbfchar\n")
	}
	buf.WriteString(`endcmap
CMapName currentdict /CMap defineresource pop
end
end
`)
	return buf.Bytes()
}

func utf16Hex(r rune) string {
	if r <= 0xFFFF {
		return fmt.Sprintf("%04X", r)
	}
	r1, r2 := utf16.EncodeRune(r)
	return fmt.Sprintf("%04X%04X", r1, r2)
}
