package region

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go-offline-proxy/internal/models"
)

// metaLenSize is the width of the big-endian length prefix of the metadata block
const metaLenSize = 4

// EncodeSnapshot serializes a snapshot for storage. The layout is a length
// prefix, the JSON metadata without the body, then the raw body bytes.
func EncodeSnapshot(resp *models.ResponseSnapshot) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	meta := *resp
	meta.Body = nil
	head, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}

	data := make([]byte, metaLenSize, metaLenSize+len(head)+len(resp.Body))
	binary.BigEndian.PutUint32(data, uint32(len(head)))
	data = append(data, head...)
	data = append(data, resp.Body...)
	return data, nil
}

// DecodeSnapshot deserializes a stored snapshot
func DecodeSnapshot(data []byte) (*models.ResponseSnapshot, error) {
	if len(data) < metaLenSize {
		return nil, fmt.Errorf("stored snapshot is truncated")
	}
	metaLen := int(binary.BigEndian.Uint32(data))
	if metaLen > len(data)-metaLenSize {
		return nil, fmt.Errorf("stored snapshot metadata of %d bytes exceeds entry", metaLen)
	}

	var resp models.ResponseSnapshot
	if err := json.Unmarshal(data[metaLenSize:metaLenSize+metaLen], &resp); err != nil {
		return nil, err
	}
	if resp.Status == 0 {
		return nil, fmt.Errorf("stored snapshot has no status")
	}
	if body := data[metaLenSize+metaLen:]; len(body) > 0 {
		resp.Body = append([]byte(nil), body...)
	}
	return &resp, nil
}
