package streamlog

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
)

// Record encoding: json(fields) | crc32c(json)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeFields(fields map[string]string) ([]byte, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+4)
	out = append(out, body...)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(body, castagnoli))
	return append(out, crcb[:]...), nil
}

func decodeFields(b []byte) (map[string]string, bool) {
	if len(b) < 4 {
		return nil, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return nil, false
	}
	var fields map[string]string
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, false
	}
	return fields, true
}
