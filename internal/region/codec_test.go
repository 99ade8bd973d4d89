package region

import (
	"bytes"
	"net/http"
	"testing"

	"go-offline-proxy/internal/models"
)

func TestEncodeSnapshot_BodyIsStoredRaw(t *testing.T) {
	body := bytes.Repeat([]byte{0xff, 0x00, 'a'}, 100*1024)
	resp := &models.ResponseSnapshot{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/javascript"}},
		Body:   body,
		Type:   models.ResponseTypeBasic,
	}

	data, err := EncodeSnapshot(resp)
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}
	if overhead := len(data) - len(body); overhead <= 0 || overhead > 512 {
		t.Errorf("EncodeSnapshot() overhead = %d bytes, want a small metadata block", overhead)
	}

	decoded, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if !bytes.Equal(decoded.Body, body) {
		t.Errorf("DecodeSnapshot() body differs from the stored body")
	}
	if decoded.Header.Get("Content-Type") != "application/javascript" {
		t.Errorf("DecodeSnapshot() Content-Type = %q", decoded.Header.Get("Content-Type"))
	}
}

func TestEncodeSnapshot_Nil(t *testing.T) {
	if _, err := EncodeSnapshot(nil); err == nil {
		t.Error("EncodeSnapshot(nil) should return an error")
	}
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated prefix", []byte{0, 0}},
		{"metadata longer than entry", []byte("not json")},
		{"bad metadata", append([]byte{0, 0, 0, 3}, []byte("{x}")...)},
		{"no status", append([]byte{0, 0, 0, 2}, []byte("{}")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSnapshot(tt.data); err == nil {
				t.Errorf("DecodeSnapshot(%q) should return an error", tt.data)
			}
		})
	}
}
