package hpackcodec

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	block, err := enc.Encode([][2]string{
		{":method", "GET"},
		{":path", "/"},
		{"accept", "*/*"},
	})
	if err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder()
	fields, err := dec.Decode(block)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{":method": "GET", ":path": "/", "accept": "*/*"}
	got := map[string]string{}
	for _, f := range fields {
		got[f.Name] = f.Value
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %q = %q, want %q", k, got[k], v)
		}
	}
}

func TestEncodeSplitsCookieCrumbs(t *testing.T) {
	enc := NewEncoder()
	block, err := enc.Encode([][2]string{
		{"cookie", "a=1; b=2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder()
	fields, err := dec.Decode(block)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 separate cookie fields, got %+v", fields)
	}
	if fields[0].Name != "cookie" || fields[0].Value != "a=1" {
		t.Fatalf("fields[0] = %+v, want cookie=a=1", fields[0])
	}
	if fields[1].Name != "cookie" || fields[1].Value != "b=2" {
		t.Fatalf("fields[1] = %+v, want cookie=b=2", fields[1])
	}
}

func TestSetMaxDynamicTableSizeDoesNotError(t *testing.T) {
	enc := NewEncoder()
	enc.SetMaxDynamicTableSize(0)
	block, err := enc.Encode([][2]string{{"x-test", "v"}})
	if err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder()
	dec.SetMaxDynamicTableSize(0)
	fields, err := dec.Decode(block)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 1 || fields[0].Value != "v" {
		t.Fatalf("fields = %+v", fields)
	}
}
