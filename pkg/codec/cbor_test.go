package codec

import (
	"bytes"
	"testing"
)

type sample struct {
	Field uint32            `cbor:"f"`
	Terms map[string]uint64 `cbor:"t"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	v := sample{Field: 3, Terms: map[string]uint64{"zebra": 1, "apple": 2, "mango": 3}}
	first, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Marshal(v)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding %d differs from first encoding", i)
		}
	}

	var decoded sample
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Field != 3 || decoded.Terms["mango"] != 3 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var decoded sample
	if err := Unmarshal([]byte{0xff, 0x00, 0x13}, &decoded); err == nil {
		t.Fatal("expected an error decoding garbage")
	}
}
