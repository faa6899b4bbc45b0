package asset

import (
	"testing"
)

func TestNewAssetProxyDefaults(t *testing.T) {
	v := New(KindVideo, "clip.mp4", "/media/clip.mp4")
	if v.ProxyStatus != ProxyPending {
		t.Errorf("video proxy status = %s, want pending", v.ProxyStatus)
	}
	if v.ID == "" {
		t.Error("missing id")
	}

	img := New(KindImage, "logo.png", "/media/logo.png")
	if img.ProxyStatus != ProxyNotNeeded {
		t.Errorf("image proxy status = %s, want notNeeded", img.ProxyStatus)
	}
}

func TestPreviewURI(t *testing.T) {
	a := New(KindVideo, "clip.mp4", "/media/clip.mp4")

	if got := a.PreviewURI(); got != "/media/clip.mp4" {
		t.Errorf("pending proxy PreviewURI = %s, want original", got)
	}

	a.ProxyStatus = ProxyReady
	a.ProxyURI = "/proxies/x.mp4"
	if got := a.PreviewURI(); got != "/proxies/x.mp4" {
		t.Errorf("ready proxy PreviewURI = %s, want proxy", got)
	}

	a.ProxyURI = ""
	if got := a.PreviewURI(); got != "/media/clip.mp4" {
		t.Errorf("ready without uri PreviewURI = %s, want original", got)
	}
}

func TestLocalPath(t *testing.T) {
	cases := []struct {
		uri  string
		want string
		ok   bool
	}{
		{"/media/clip.mp4", "/media/clip.mp4", true},
		{"relative/clip.mp4", "relative/clip.mp4", true},
		{"file:///media/clip.mp4", "/media/clip.mp4", true},
		{"file://", "", false},
		{"http://example.com/clip.mp4", "", false},
		{"https://example.com/clip.mp4", "", false},
		{"rtsp://cam/stream", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := LocalPath(tc.uri)
		if got != tc.want || ok != tc.ok {
			t.Errorf("LocalPath(%q) = (%q, %v), want (%q, %v)", tc.uri, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPreviewPathRejectsRemote(t *testing.T) {
	a := New(KindVideo, "clip.mp4", "https://example.com/clip.mp4")
	if _, ok := a.PreviewPath(); ok {
		t.Error("remote uri resolved to a local path")
	}

	a.ProxyStatus = ProxyReady
	a.ProxyURI = "/proxies/p.mp4"
	path, ok := a.PreviewPath()
	if !ok || path != "/proxies/p.mp4" {
		t.Errorf("PreviewPath = (%q, %v), want local proxy", path, ok)
	}
}

func TestKindForPath(t *testing.T) {
	cases := map[string]Kind{
		"a.mp4":        KindVideo,
		"B.MOV":        KindVideo,
		"pic.jpeg":     KindImage,
		"song.flac":    KindAudio,
		"mystery.bin":  KindVideo,
		"noextension":  KindVideo,
		"shot.PNG":     KindImage,
		"dir/clip.mkv": KindVideo,
	}
	for path, want := range cases {
		if got := KindForPath(path); got != want {
			t.Errorf("KindForPath(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestLibraryPutGetIsolation(t *testing.T) {
	lib := NewLibrary()
	a := New(KindVideo, "clip.mp4", "/media/clip.mp4")
	lib.Put(a)

	// Mutating either side must not leak into the library
	a.Name = "mutated"
	got := lib.Get(a.ID)
	if got == nil || got.Name != "clip.mp4" {
		t.Fatalf("Get = %+v, want stored copy", got)
	}
	got.Name = "mutated again"
	if lib.Get(a.ID).Name != "clip.mp4" {
		t.Error("returned copy aliases library state")
	}
}

func TestLibraryGetUnknown(t *testing.T) {
	lib := NewLibrary()
	if got := lib.Get("nope"); got != nil {
		t.Errorf("Get unknown = %+v, want nil", got)
	}
}

func TestLibraryListSorted(t *testing.T) {
	lib := NewLibrary()
	for _, name := range []string{"c.mp4", "a.mp4", "b.mp4"} {
		lib.Put(New(KindVideo, name, "/media/"+name))
	}

	list := lib.List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		if list[i].Name != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].Name, want)
		}
	}
}

func TestSetProxyStatus(t *testing.T) {
	lib := NewLibrary()
	a := New(KindVideo, "clip.mp4", "/media/clip.mp4")
	lib.Put(a)

	var events []ProxyStatus
	lib.OnChange(func(changed *Asset) {
		events = append(events, changed.ProxyStatus)
	})

	updated := lib.SetProxyStatus(a.ID, ProxyReady, "/proxies/p.mp4")
	if updated == nil || !updated.HasProxy() {
		t.Fatalf("SetProxyStatus = %+v", updated)
	}
	if got := lib.Get(a.ID); got.ProxyURI != "/proxies/p.mp4" {
		t.Errorf("stored ProxyURI = %s", got.ProxyURI)
	}
	if len(events) != 1 || events[0] != ProxyReady {
		t.Errorf("change events = %v", events)
	}

	if lib.SetProxyStatus("nope", ProxyReady, "x") != nil {
		t.Error("unknown id should return nil")
	}
}

func TestAllProxiesReady(t *testing.T) {
	lib := NewLibrary()

	v1 := New(KindVideo, "a.mp4", "/m/a.mp4")
	v2 := New(KindVideo, "b.mp4", "/m/b.mp4")
	img := New(KindImage, "c.png", "/m/c.png")
	for _, a := range []*Asset{v1, v2, img} {
		lib.Put(a)
	}

	ids := []string{v1.ID, v2.ID, img.ID}
	if lib.AllProxiesReady(ids) {
		t.Error("pending proxies reported ready")
	}

	lib.SetProxyStatus(v1.ID, ProxyReady, "/p/a.mp4")
	if lib.AllProxiesReady(ids) {
		t.Error("one pending proxy reported ready")
	}

	lib.SetProxyStatus(v2.ID, ProxyReady, "/p/b.mp4")
	if !lib.AllProxiesReady(ids) {
		t.Error("all ready not detected; image must not block")
	}

	if lib.AllProxiesReady([]string{"unknown"}) {
		t.Error("unknown asset reported ready")
	}
	if !lib.AllProxiesReady(nil) {
		t.Error("empty set should be ready")
	}
}
