package weburl

import "testing"

func TestParseBasic(t *testing.T) {
	u, err := Parse("https://example.test/a/b?x=1&y=2")
	if err != nil {
		t.Fatal(err)
	}
	if u.Protocol != "https" || u.Addr.Host != "example.test" || u.Uri.Path != "/a/b" {
		t.Fatalf("unexpected parse: %+v", u)
	}
	if len(u.Uri.Params) != 2 || u.Uri.Params[0].Name != "x" || u.Uri.Params[1].Name != "y" {
		t.Fatalf("unexpected params: %+v", u.Uri.Params)
	}
}

func TestMissingPathDefaultsToSlash(t *testing.T) {
	u, err := Parse("http://example.test")
	if err != nil {
		t.Fatal(err)
	}
	if u.Uri.Path != "/" {
		t.Fatalf("Path = %q, want /", u.Uri.Path)
	}
}

func TestDefaultPortElidedOnEmit(t *testing.T) {
	u, err := Parse("https://example.test:443/")
	if err != nil {
		t.Fatal(err)
	}
	if got := u.String(); got != "https://example.test/" {
		t.Fatalf("String() = %q", got)
	}
}

func TestRoundTripWithoutDefaultPort(t *testing.T) {
	s := "https://example.test:8443/path?a=1"
	u1, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	u2, err := Parse(u1.String())
	if err != nil {
		t.Fatal(err)
	}
	if u1.String() != u2.String() {
		t.Fatalf("round trip mismatch: %q vs %q", u1.String(), u2.String())
	}
}

func TestSetParamPreservesOrderOnUpdate(t *testing.T) {
	u, _ := Parse("http://example.test/?a=1&b=2")
	u.SetParam("a", "99")
	if u.Uri.Params[0].Name != "a" || u.Uri.Params[0].Value != "99" {
		t.Fatalf("update-in-place failed: %+v", u.Uri.Params)
	}
	if len(u.Uri.Params) != 2 {
		t.Fatalf("SetParam on existing key should not append: %+v", u.Uri.Params)
	}
}

func TestRemoveParamReturnsPriorValue(t *testing.T) {
	u, _ := Parse("http://example.test/?a=1&b=2")
	prior, existed := u.RemoveParam("a")
	if !existed || prior != "1" {
		t.Fatalf("RemoveParam = (%q, %v), want (1, true)", prior, existed)
	}
	if len(u.Uri.Params) != 1 || u.Uri.Params[0].Name != "b" {
		t.Fatalf("unexpected remaining params: %+v", u.Uri.Params)
	}
}

func TestPercentEncodingRoundTrip(t *testing.T) {
	u, err := Parse("http://example.test/?q=" + "%68%65%6c%6c%6f%20%77%6f%72%6c%64")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := u.Param("q")
	if v != "hello world" {
		t.Fatalf("decoded value = %q", v)
	}
	again, err := Parse(u.String())
	if err != nil {
		t.Fatal(err)
	}
	if v2, _ := again.Param("q"); v2 != "hello world" {
		t.Fatalf("value after emit and re-parse = %q", v2)
	}
}
