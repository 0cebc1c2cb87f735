package usbtmc

import "testing"

func TestBulkOutHeaderLayout(t *testing.T) {
	hdr := encBulkOutHeader(7, 300)
	if hdr[0] != msgDevDepOut {
		t.Errorf("expected MsgID 0x01, got %#x", hdr[0])
	}
	if hdr[1] != 7 || hdr[2] != 0xf8 {
		t.Errorf("expected bTag 7 with inverse 0xf8, got %#x %#x", hdr[1], hdr[2])
	}
	// 300 = 0x012C little endian
	if hdr[4] != 0x2C || hdr[5] != 0x01 || hdr[6] != 0 || hdr[7] != 0 {
		t.Errorf("transfer size encoded wrong: % x", hdr[4:8])
	}
	if hdr[8] != 0x01 {
		t.Error("expected EOM bit set")
	}
}

func TestBulkInHeaderTerminator(t *testing.T) {
	term := byte('\n')
	hdr := encBulkInHeader(1, 1024, &term)
	if hdr[0] != msgReqDevDepIn {
		t.Errorf("expected MsgID 0x02, got %#x", hdr[0])
	}
	if hdr[8] != 0x02 || hdr[9] != '\n' {
		t.Errorf("expected terminator flag and byte, got %#x %#x", hdr[8], hdr[9])
	}

	hdr = encBulkInHeader(2, 1024, nil)
	if hdr[8] != 0 || hdr[9] != 0 {
		t.Error("expected no terminator flag when nil")
	}
}

func TestBTagSkipsZero(t *testing.T) {
	g := bTagGen{value: 254}
	if g.next() != 255 {
		t.Error("expected 255")
	}
	if tag := g.next(); tag != 1 {
		t.Errorf("expected wraparound to skip zero, got %d", tag)
	}
}
