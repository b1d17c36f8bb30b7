package proofcode

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const testToken = "test-access-token"

var testData = []byte("hello world, this is alidrive proof code test data")

const testDataSHA1 = "60172AC946F960FCBEDC4B95AD29B08D9329157E"

// Reference values computed with Python's hashlib and base64 modules.
func TestContentHash(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		expect string
	}{
		{"empty", nil, "DA39A3EE5E6B4B0D3255BFEF95601890AFD80709"},
		{"text", testData, testDataSHA1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := ContentHash(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ContentHash: %v", err)
			}

			if got != tt.expect {
				t.Errorf("hash = %s, want %s", got, tt.expect)
			}

			if n != int64(len(tt.input)) {
				t.Errorf("n = %d, want %d", n, len(tt.input))
			}
		})
	}
}

func TestPreHash_CoversFirstKiB(t *testing.T) {
	data := bytes.Repeat(seq256(), 5) // 1280 bytes

	got, err := PreHash(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("PreHash: %v", err)
	}

	if want := "5B00669C480D5CFFBDFA8BDBA99561160F2D1B77"; got != want {
		t.Errorf("pre-hash = %s, want %s", got, want)
	}

	full, _, err := ContentHash(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}

	if full != "E37A04CB2353309F5CFF4EE036CFB91A5E31CEFD" {
		t.Errorf("full hash = %s", full)
	}
}

func TestPreHash_ShortInputEqualsContentHash(t *testing.T) {
	pre, err := PreHash(bytes.NewReader(testData))
	if err != nil {
		t.Fatalf("PreHash: %v", err)
	}

	full, _, err := ContentHash(bytes.NewReader(testData))
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}

	if pre != full {
		t.Errorf("pre-hash %s != content hash %s for input shorter than 1 KiB", pre, full)
	}
}

func TestOffset(t *testing.T) {
	if got := Offset(testToken, int64(len(testData))); got != 22 {
		t.Errorf("Offset = %d, want 22", got)
	}

	if got := Offset(testToken, 0); got != 0 {
		t.Errorf("Offset(size 0) = %d, want 0", got)
	}
}

func TestProofCode(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		expect string
	}{
		{"full window", testData, "bGlkcml2ZSA="},
		{"window clipped at end", []byte("abc"), "Yw=="},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProofCode(testToken, bytes.NewReader(tt.input), int64(len(tt.input)))
			if err != nil {
				t.Fatalf("ProofCode: %v", err)
			}

			if got != tt.expect {
				t.Errorf("proof = %q, want %q", got, tt.expect)
			}
		})
	}
}

type failingReaderAt struct{}

func (failingReaderAt) ReadAt([]byte, int64) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestProofCode_ReadError(t *testing.T) {
	_, err := ProofCode(testToken, failingReaderAt{}, 100)
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func seq256() []byte {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}

	return b
}

func TestNewStreamingMatchesContentHash(t *testing.T) {
	h := New()
	for _, chunk := range []string{"hello world, ", "this is alidrive ", "proof code test data"} {
		if _, err := h.Write([]byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if got := Sum(h); got != testDataSHA1 {
		t.Errorf("streamed hash = %s, want %s", got, testDataSHA1)
	}
}
