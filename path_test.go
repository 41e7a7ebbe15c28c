package squashfs

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"/a//b/./c", []string{"a", "b", "c"}},
		{"a/b/c", []string{"a", "b", "c"}},
		{".", nil},
		{"", nil},
		{"/", nil},
		{"foo", []string{"foo"}},
	}
	for _, c := range cases {
		got := tokenize(c.in)
		if len(got) == 0 && len(c.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("tokenize(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestResolveSymlinkAbsolute(t *testing.T) {
	got := resolveSymlink([]string{"usr", "bin"}, "/etc/passwd")
	want := []string{"etc", "passwd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestResolveSymlinkRelative(t *testing.T) {
	got := resolveSymlink([]string{"usr", "bin"}, "../lib/libc.so")
	want := []string{"usr", "lib", "libc.so"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestResolveSymlinkDotDotPastRoot(t *testing.T) {
	got := resolveSymlink(nil, "../../etc/passwd")
	want := []string{"etc", "passwd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestSplitBase(t *testing.T) {
	parent, name, ok := splitBase([]string{"a", "b", "c"})
	if !ok || name != "c" || !reflect.DeepEqual(parent, []string{"a", "b"}) {
		t.Errorf("got parent=%#v name=%q ok=%v", parent, name, ok)
	}

	if _, _, ok := splitBase(nil); ok {
		t.Errorf("splitBase(nil) should report ok=false")
	}
}

func TestJoinTokens(t *testing.T) {
	if got := joinTokens(nil); got != "." {
		t.Errorf("joinTokens(nil) = %q, want \".\"", got)
	}
	if got := joinTokens([]string{"a", "b"}); got != "a/b" {
		t.Errorf("joinTokens = %q, want \"a/b\"", got)
	}
}

func TestTokenizePathDotDot(t *testing.T) {
	got := tokenizePath("/a/../b/file")
	want := []string{"b", "file"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenizePath(/a/../b/file) = %#v, want %#v", got, want)
	}

	if got := tokenizePath("../../etc/passwd"); !reflect.DeepEqual(got, []string{"etc", "passwd"}) {
		t.Errorf("tokenizePath(../../etc/passwd) = %#v, want [etc passwd]", got)
	}
}
