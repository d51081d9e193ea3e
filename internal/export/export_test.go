package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Faultbox/midgard-forge/pkg/formats"
)

func TestPaths(t *testing.T) {
	if got := WDTPath("Azeroth"); got != "World/Maps/Azeroth/Azeroth.wdt" {
		t.Errorf("WDTPath = %s", got)
	}
	if got := ADTPath("Azeroth", formats.TileCoord{X: 32, Y: 48}); got != "World/Maps/Azeroth/Azeroth_32_48.adt" {
		t.Errorf("ADTPath = %s", got)
	}
	if got := TexturePath(`tileset\grass\grass01.blp`); got != "tileset/grass/grass01.blp" {
		t.Errorf("TexturePath = %s", got)
	}
}

func TestDirSink(t *testing.T) {
	root := t.TempDir()
	sink := DirSink{Root: root}

	name := ADTPath("Test", formats.TileCoord{X: 1, Y: 2})
	if err := sink.Put(name, []byte("tile")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "World", "Maps", "Test", "Test_1_2.adt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "tile" {
		t.Errorf("got %q", data)
	}

	// Overwrite replaces content
	if err := sink.Put(name, []byte("v2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(root, "World", "Maps", "Test", "Test_1_2.adt"))
	if string(data) != "v2" {
		t.Errorf("expected overwrite, got %q", data)
	}
}

func TestDirSinkStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	sink := DirSink{Root: filepath.Join(root, "out")}

	if err := sink.Put("../../escape.txt", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "out", "escape.txt")); err != nil {
		t.Errorf("expected file clamped under root: %v", err)
	}
	if err := sink.Put("", nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestMemSinkCopies(t *testing.T) {
	var sink MemSink
	buf := []byte("abc")
	sink.Put("a", buf)
	buf[0] = 'z'
	got, ok := sink.Get("a")
	if !ok || string(got) != "abc" {
		t.Errorf("MemSink aliased caller buffer: %q", got)
	}
}

func TestMemSinkConcurrentPut(t *testing.T) {
	var sink MemSink
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Put(fmt.Sprintf("f%d", i), []byte{byte(i)}); err != nil {
				t.Errorf("Put: %v", err)
			}
		}()
	}
	wg.Wait()

	files := sink.Files()
	if len(files) != 64 {
		t.Fatalf("expected 64 files, got %d", len(files))
	}
	if data, ok := sink.Get("f63"); !ok || data[0] != 63 {
		t.Errorf("f63 = %v, %v", data, ok)
	}
}
