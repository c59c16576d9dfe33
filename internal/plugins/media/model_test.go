package media

import "testing"

func TestDisplayURL_FallsBackThroughSizes(t *testing.T) {
	m := Media{Kind: KindImage, Original: "/o.png"}
	if got := m.DisplayURL(); got != "/o.png" {
		t.Errorf("unprocessed image should show original, got %s", got)
	}

	m.Large = strPtr("/l.jpg")
	if got := m.DisplayURL(); got != "/l.jpg" {
		t.Errorf("expected large, got %s", got)
	}
	m.Medium = strPtr("/m.jpg")
	if got := m.DisplayURL(); got != "/m.jpg" {
		t.Errorf("expected medium, got %s", got)
	}
	m.Small = strPtr("/s.jpg")
	if got := m.DisplayURL(); got != "/s.jpg" {
		t.Errorf("expected small, got %s", got)
	}
}

func TestCoverURL_SkipsVideos(t *testing.T) {
	items := []Media{
		{Kind: KindVideo, Original: "/v.mp4"},
		{Kind: KindImage, Original: "/o.png", Medium: strPtr("/m.jpg")},
	}
	if got := CoverURL(items); got != "/m.jpg" {
		t.Errorf("expected first image's best rendition, got %s", got)
	}
	if got := CoverURL(items[:1]); got != "" {
		t.Errorf("video-only product has no cover, got %s", got)
	}
}

func TestKindFromContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want Kind
		ok   bool
	}{
		{"image/png", KindImage, true},
		{"IMAGE/JPEG", KindImage, true},
		{"video/mp4", KindVideo, true},
		{"application/octet-stream", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := KindFromContentType(tt.ct)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindFromContentType(%q) = %q, %v", tt.ct, got, ok)
		}
	}
}

func TestPaths_SkipsNullDerivatives(t *testing.T) {
	m := Media{Original: "/o.png", Medium: strPtr("/m.jpg")}
	paths := m.Paths()
	if len(paths) != 2 || paths[0] != "/o.png" || paths[1] != "/m.jpg" {
		t.Errorf("unexpected paths %v", paths)
	}
}
