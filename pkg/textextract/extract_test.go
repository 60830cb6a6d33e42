package textextract

import "testing"

func TestKind(t *testing.T) {
	tests := map[string]string{
		"application/pdf":           "pdf",
		"Application/PDF":           "pdf",
		"image/jpeg":                "image",
		"image/png":                 "image",
		"text/plain; charset=utf-8": "text",
		"application/msword":        "",
		"":                          "",
	}
	for in, want := range tests {
		if got := Kind(in); got != want {
			t.Errorf("Kind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInspect(t *testing.T) {
	info, err := Inspect([]byte("\x89PNG"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if info.Pages != 1 || info.HasTextLayer() {
		t.Errorf("image info = %+v", info)
	}

	info, err = Inspect([]byte("  血常规 CBC\n"), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if info.Text != "血常规 CBC" || !info.HasTextLayer() {
		t.Errorf("text info = %+v", info)
	}

	if _, err := Inspect([]byte("not a pdf"), "application/pdf"); err == nil {
		t.Error("garbage PDF should fail")
	}
	if _, err := Inspect(nil, "application/zip"); err == nil {
		t.Error("unsupported type should fail")
	}
}
