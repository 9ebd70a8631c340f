package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// isCollection reports whether data is a TrueType collection.
func isCollection(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "ttcf"
}

// extractFirstFont rebuilds the first font of a TrueType collection as a
// standalone font file. PDF font file streams must hold a single font,
// so collections cannot be embedded whole.
func extractFirstFont(data []byte) ([]byte, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("truncated font collection header")
	}
	numFonts := binary.BigEndian.Uint32(data[8:12])
	if numFonts == 0 {
		return nil, fmt.Errorf("font collection holds no fonts")
	}
	dirOff := binary.BigEndian.Uint32(data[12:16])
	return extractFontAt(data, dirOff)
}

// extractFontAt copies the table directory at dirOff and its tables into
// a fresh font file, rewriting table offsets.
func extractFontAt(data []byte, dirOff uint32) ([]byte, error) {
	if int64(dirOff)+12 > int64(len(data)) {
		return nil, fmt.Errorf("font table directory out of range")
	}
	dir := data[dirOff:]
	numTables := int(binary.BigEndian.Uint16(dir[4:6]))
	recordsEnd := 12 + numTables*16
	if recordsEnd > len(dir) {
		return nil, fmt.Errorf("font table records out of range")
	}

	var header bytes.Buffer
	header.Write(dir[:12])

	var body bytes.Buffer
	bodyStart := uint32(recordsEnd)
	for i := 0; i < numTables; i++ {
		rec := dir[12+i*16 : 12+(i+1)*16]
		tblOff := binary.BigEndian.Uint32(rec[8:12])
		tblLen := binary.BigEndian.Uint32(rec[12:16])
		if int64(tblOff)+int64(tblLen) > int64(len(data)) {
			return nil, fmt.Errorf("font table %q out of range", rec[:4])
		}

		newRec := make([]byte, 16)
		copy(newRec, rec[:8])
		binary.BigEndian.PutUint32(newRec[8:12], bodyStart+uint32(body.Len()))
		binary.BigEndian.PutUint32(newRec[12:16], tblLen)
		header.Write(newRec)

		body.Write(data[tblOff : tblOff+tblLen])
		for body.Len()%4 != 0 {
			body.WriteByte(0)
		}
	}

	header.Write(body.Bytes())
	return header.Bytes(), nil
}
