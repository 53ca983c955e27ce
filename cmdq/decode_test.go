package cmdq

import (
	"errors"
	"testing"
)

func TestDecodeFixture(t *testing.T) {
	r, err := Decode(fixtureRequest)
	if err != nil {
		t.Fatal(err)
	}
	if r.Code != 4 || len(r.Groups) != 2 {
		t.Fatalf("Decode() = code %d, %d groups", r.Code, len(r.Groups))
	}
	ops := r.Ops()
	want := []string{
		"write 0x7203 00",
		"write 0x7006 12",
		"wait-clear 0x7a84 mask=0x01",
	}
	for i, w := range want {
		if got := ops[i].String(); got != w {
			t.Errorf("op %d = %q, want %q", i, got, w)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		req  []byte
	}{
		{"short header", []byte{4, 3, 0}},
		{"length mismatch", []byte{4, 9, 0, 0}},
		{"group count mismatch", []byte{4, 4, 0, 1}},
		{"unknown opcode", []byte{4, 12, 0, 1, 9, 9, 8, 1, 0, 0, 0, 0}},
		{"group length too small", []byte{4, 12, 0, 1, 1, 1, 2, 1, 0, 0, 0, 0}},
		{"group length past end", []byte{4, 12, 0, 1, 1, 1, 20, 1, 0, 0, 0, 0}},
		{"count exceeds body", []byte{4, 12, 0, 1, 1, 1, 8, 2, 1, 0, 0, 0}},
		{"trailing bytes", []byte{4, 16, 0, 1, 1, 1, 12, 1, 1, 0, 0, 0, 0, 0, 0, 0}},
		{"zero length write", []byte{4, 12, 0, 1, 2, 2, 8, 1, 0, 0, 0, 0}},
		{"mask count", []byte{4, 13, 0, 1, 2, 3, 9, 1, 2, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.req); !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	r, err := Decode([]byte{7, 4, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if r.Code != 7 || len(r.Groups) != 0 || len(r.Ops()) != 0 {
		t.Errorf("Decode() = %+v, want empty request", r)
	}
}

func TestDecodeDelayLittleEndian(t *testing.T) {
	q := New(DefaultChannel)
	q.Init(4)
	if err := q.Delay(0x012c); err != nil {
		t.Fatal(err)
	}
	req := q.Request()
	// 03 01 08 01  00 2c 01 00
	if req[9] != 0x2c || req[10] != 0x01 {
		t.Errorf("delay operand = % x, want 00 2c 01 00", req[8:])
	}
	r, err := Decode(req)
	if err != nil {
		t.Fatal(err)
	}
	if d := r.Ops()[0].Duration; d != 0x012c {
		t.Errorf("Duration = %#x, want 0x12c", d)
	}
}
