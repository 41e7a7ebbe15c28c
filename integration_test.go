package squashfs

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"testing"
)

func TestSyntheticImageFS(t *testing.T) {
	img := buildSyntheticImage()
	sb, err := New(bytes.NewReader(img.data))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sb.Close()

	if sb.InodeCnt != 3 {
		t.Errorf("InodeCnt = %d, want 3", sb.InodeCnt)
	}

	entries, err := sb.ReadDir(".")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ReadDir returned %d entries, want 2", len(entries))
	}
	if entries[0].Name() != "file.txt" || entries[1].Name() != "greet" {
		t.Errorf("unexpected entry order: %q, %q", entries[0].Name(), entries[1].Name())
	}
	if entries[0].IsDir() {
		t.Errorf("file.txt should not report IsDir")
	}

	data, err := sb.ReadFile("file.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, img.content) {
		t.Errorf("ReadFile = %q, want %q", data, img.content)
	}

	target, err := sb.Readlink("greet")
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "file.txt" {
		t.Errorf("Readlink = %q, want %q", target, "file.txt")
	}

	followed, err := sb.Stat("greet")
	if err != nil {
		t.Fatalf("Stat(greet): %v", err)
	}
	if followed.IsDir() || followed.Mode()&fs.ModeSymlink != 0 {
		t.Errorf("Stat(greet) should follow the symlink to a regular file")
	}
	if followed.Size() != int64(len(img.content)) {
		t.Errorf("Stat(greet).Size() = %d, want %d", followed.Size(), len(img.content))
	}

	lstat, err := sb.Lstat("greet")
	if err != nil {
		t.Fatalf("Lstat(greet): %v", err)
	}
	if lstat.Mode()&fs.ModeSymlink == 0 {
		t.Errorf("Lstat(greet) should report the symlink itself")
	}

	if _, err := sb.Stat("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat(nope) error = %v, want fs.ErrNotExist", err)
	}
}

func TestSyntheticImageFSOpenRead(t *testing.T) {
	img := buildSyntheticImage()
	sb, err := New(bytes.NewReader(img.data))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sb.Close()

	f, err := sb.Open("file.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, img.content) {
		t.Errorf("Open+ReadAll = %q, want %q", got, img.content)
	}
}

func TestSyntheticImageDispatcher(t *testing.T) {
	img := buildSyntheticImage()
	dev := bytes.NewReader(img.data)

	ok, err := Probe(dev)
	if err != nil || !ok {
		t.Fatalf("Probe = %v, %v; want true, nil", ok, err)
	}

	r, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer r.Unmount()

	ds, err := r.OpenDir(".")
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	var names []string
	for {
		e, err := ds.ReadDir()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadDir: %v", err)
		}
		names = append(names, e.Name)
	}
	if len(names) != 2 {
		t.Fatalf("dispatcher ReadDir produced %d names, want 2: %v", len(names), names)
	}
	if err := ds.CloseDir(); err != nil {
		t.Fatalf("CloseDir: %v", err)
	}
	if _, err := ds.ReadDir(); err != ErrClosed {
		t.Errorf("ReadDir after CloseDir = %v, want ErrClosed", err)
	}

	fh, err := r.Open("file.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if fh.Size() != int64(len(img.content)) {
		t.Errorf("Size() = %d, want %d", fh.Size(), len(img.content))
	}
	buf := make([]byte, len(img.content))
	n, err := fh.Read(buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(img.content) || !bytes.Equal(buf, img.content) {
		t.Errorf("Read = %q, want %q", buf[:n], img.content)
	}
	if err := fh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := fh.Read(buf, 0); err != ErrClosed {
		t.Errorf("Read after Close = %v, want ErrClosed", err)
	}
}

func TestSyntheticImageDotDotPath(t *testing.T) {
	img := buildSyntheticImage()
	dev := bytes.NewReader(img.data)

	r, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer r.Unmount()

	n, err := r.Size("nonexist/../file.txt")
	if err != nil {
		t.Fatalf("Size(nonexist/../file.txt): %v", err)
	}
	if n != int64(len(img.content)) {
		t.Errorf("Size = %d, want %d", n, len(img.content))
	}

	buf := make([]byte, len(img.content))
	got, err := r.Read("/nonexist/../file.txt", buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf[:got], img.content) {
		t.Errorf("Read = %q, want %q", buf[:got], img.content)
	}
}

func TestSyntheticImageBadMagic(t *testing.T) {
	img := buildSyntheticImage()
	corrupt := append([]byte(nil), img.data...)
	corrupt[0] = 'X'
	if _, err := New(bytes.NewReader(corrupt)); err == nil {
		t.Fatalf("New with corrupted magic should fail")
	}
}
