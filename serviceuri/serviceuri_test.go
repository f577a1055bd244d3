package serviceuri

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		uri  string
		want Service
	}{
		{"bio4:localhost:1797", Service{Scheme: "bio4", Host: "localhost", Port: 1797}},
		{"bio4:10.0.0.1:1797?tmo=20", Service{Scheme: "bio4", Host: "10.0.0.1", Port: 1797, Timeout: 20 * time.Second}},
		{"fs:/var/lib/blobio", Service{Scheme: "fs", Root: "/var/lib/blobio"}},
		{"fs:/var/lib/blobio?trust=fs", Service{Scheme: "fs", Root: "/var/lib/blobio", TrustFS: true}},
		{
			"cache4:blob.example.com:1797:/var/cache/blobio?tmo=5&trust=fs",
			Service{
				Scheme: "cache4", Host: "blob.example.com", Port: 1797,
				Root: "/var/cache/blobio", Timeout: 5 * time.Second, TrustFS: true,
			},
		},
	} {
		got, err := Parse(tc.uri)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.uri, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tc.uri, got, tc.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, uri := range []string{
		"",
		"bio4",                      // no colon
		"http:example.com:80",       // unknown scheme
		"bio4:localhost",            // missing port
		"bio4:localhost:0",          // port out of range
		"bio4:localhost:70000",      // port out of range
		"bio4::1797",                // empty host
		"fs:",                       // empty path
		"cache4:host:1797",          // no cache path
		"cache4:host:1797:",         // empty cache path
		"bio4:h:1?tmo=0",            // tmo below 1
		"bio4:h:1?tmo=256",          // tmo above 255
		"bio4:h:1?tmo=",             // empty value
		"bio4:h:1?trust=me",         // trust wants fs
		"bio4:h:1?compress=zstd",    // unknown query arg
		"bio4:h:1?tmo=20&trust=me",  // second arg bad
	} {
		if _, err := Parse(uri); err == nil {
			t.Errorf("Parse(%q): want error, got nil", uri)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, uri := range []string{
		"bio4:localhost:1797",
		"bio4:localhost:1797?tmo=20",
		"fs:/var/lib/blobio?trust=fs",
		"cache4:h:1797:/cache?tmo=5&trust=fs",
	} {
		svc, err := Parse(uri)
		if err != nil {
			t.Fatalf("Parse(%q): %v", uri, err)
		}
		if got := svc.String(); got != uri {
			t.Errorf("Parse(%q).String() = %q", uri, got)
		}
	}
}
