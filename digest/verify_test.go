package digest

import "testing"

func TestVerifyingWriterMatchesOnFullStream(t *testing.T) {
	alg, _ := Lookup("sha")
	target, err := Parse("sha:f572d396fae9206628714fb2ce00f72e94f2258f") // sha1("hello\n")
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifyingWriter(alg, target)
	if _, err := v.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	if got := v.Finish(); got != Matched {
		t.Fatalf("Finish() = %v, want Matched", got)
	}
}

func TestVerifyingWriterRejectsWrongContent(t *testing.T) {
	alg, _ := Lookup("sha")
	target, err := Parse("sha:f572d396fae9206628714fb2ce00f72e94f2258f")
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifyingWriter(alg, target)
	if _, err := v.Write([]byte("goodbye\n")); err != nil {
		t.Fatal(err)
	}
	if got := v.Finish(); got != Rejected {
		t.Fatalf("Finish() = %v, want Rejected", got)
	}
}

func TestVerifyingWriterContinuesMidStream(t *testing.T) {
	alg, _ := Lookup("sha")
	target, err := Parse("sha:f572d396fae9206628714fb2ce00f72e94f2258f")
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifyingWriter(alg, target)
	if _, err := v.Write([]byte("hel")); err != nil {
		t.Fatal(err)
	}
	if got := v.Status(); got != Continue {
		t.Fatalf("Status() mid-stream = %v, want Continue", got)
	}
}
