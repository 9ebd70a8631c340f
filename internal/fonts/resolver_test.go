package fonts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func linuxFamilies() []family {
	families, _ := platformCandidates("linux")
	return families
}

func writeFont(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("font-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlatformCandidatesOrder(t *testing.T) {
	for _, goos := range []string{"windows", "darwin", "linux"} {
		families, dirs := platformCandidates(goos)
		if len(families) != 4 {
			t.Errorf("%s: got %d families, want 4", goos, len(families))
		}
		wantOrder := []string{"simsun", "simhei", "msyh", "simkai"}
		for i, fam := range families {
			if fam.name != wantOrder[i] {
				t.Errorf("%s: family %d = %q, want %q", goos, i, fam.name, wantOrder[i])
			}
			if len(fam.files) == 0 {
				t.Errorf("%s: family %q has no candidate files", goos, fam.name)
			}
		}
		if len(dirs) == 0 {
			t.Errorf("%s: no search directories", goos)
		}
	}
}

func TestSearchFamiliesFirstFamilyWins(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "msyh.ttc")
	want := writeFont(t, dir, "simhei.ttf")

	got := searchFamilies(linuxFamilies(), []string{dir})
	if got != want {
		t.Errorf("searchFamilies = %q, want %q (simhei outranks msyh)", got, want)
	}
}

func TestSearchFamiliesFamilyOrderBeatsDirOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFont(t, first, "simhei.ttf")
	want := writeFont(t, second, "simsun.ttc")

	got := searchFamilies(linuxFamilies(), []string{first, second})
	if got != want {
		t.Errorf("searchFamilies = %q, want %q (simsun in any dir outranks simhei)", got, want)
	}
}

func TestSearchFamiliesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "simsun.ttc"), 0755); err != nil {
		t.Fatal(err)
	}

	if got := searchFamilies(linuxFamilies(), []string{dir, ""}); got != "" {
		t.Errorf("searchFamilies = %q, want empty (directory is not a font file)", got)
	}
}

func TestResolveSystemFont(t *testing.T) {
	dir := t.TempDir()
	want := writeFont(t, dir, "simsun.ttf")

	fetches := 0
	r := &Resolver{
		families: linuxFamilies(),
		dirs:     []string{dir},
		cacheDir: t.TempDir(),
		fetch: func(url, dest string) error {
			fetches++
			return nil
		},
	}

	d, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.Name != LogicalFontName {
		t.Errorf("Name = %q, want %q", d.Name, LogicalFontName)
	}
	if d.Path != want {
		t.Errorf("Path = %q, want %q", d.Path, want)
	}
	if fetches != 0 {
		t.Errorf("fallback fetched %d times despite a system font being present", fetches)
	}
}

func TestResolveFallbackFetchedOnce(t *testing.T) {
	cacheDir := t.TempDir()
	fetches := 0
	r := &Resolver{
		families: linuxFamilies(),
		dirs:     []string{t.TempDir()},
		cacheDir: cacheDir,
		fetch: func(url, dest string) error {
			fetches++
			if url != FallbackFontURL {
				t.Errorf("fetch url = %q, want %q", url, FallbackFontURL)
			}
			return os.WriteFile(dest, []byte("fallback"), 0644)
		},
	}

	d, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	wantPath := filepath.Join(cacheDir, fallbackFontFile)
	if d.Path != wantPath {
		t.Errorf("Path = %q, want %q", d.Path, wantPath)
	}
	if fetches != 1 {
		t.Fatalf("fetch called %d times, want 1", fetches)
	}

	// Second resolution must hit the cache, not the network.
	if _, err := r.Resolve(); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if fetches != 1 {
		t.Errorf("fetch called %d times after second Resolve, want 1", fetches)
	}
}

func TestResolveFatalWhenFallbackFails(t *testing.T) {
	r := &Resolver{
		families: linuxFamilies(),
		dirs:     []string{t.TempDir()},
		cacheDir: t.TempDir(),
		fetch: func(url, dest string) error {
			return errors.New("network down")
		},
	}

	_, err := r.Resolve()
	if err == nil {
		t.Fatal("expected error when no font exists and fallback fetch fails")
	}
	if !strings.Contains(err.Error(), "no suitable font") {
		t.Errorf("error should explain the failure, got: %v", err)
	}
	if !strings.Contains(err.Error(), "network down") {
		t.Errorf("error should wrap the fetch cause, got: %v", err)
	}
}

func TestNewResolverDefaults(t *testing.T) {
	r := NewResolver([]string{"/extra/fonts"}, "")
	if r.cacheDir == "" {
		t.Error("cacheDir should default to a temp-dir subdirectory")
	}
	if len(r.dirs) == 0 || r.dirs[0] != "/extra/fonts" {
		t.Errorf("extra dirs should be searched first, got %v", r.dirs)
	}
	if r.fetch == nil {
		t.Error("default fetch must be set")
	}
}

func TestMappingDefault(t *testing.T) {
	def := Descriptor{Name: LogicalFontName, Path: "/fonts/default.otf"}
	m := NewMapping(def)

	for _, lang := range []string{"en", "zh-CN", "fr", "!!not-a-tag"} {
		if got := m.FontFor(lang); got != def {
			t.Errorf("FontFor(%q) = %+v, want default", lang, got)
		}
	}
}

func TestMappingRegisteredScript(t *testing.T) {
	def := Descriptor{Name: LogicalFontName, Path: "/fonts/default.otf"}
	hans := Descriptor{Name: "HansFont", Path: "/fonts/hans.otf"}
	m := NewMapping(def)
	m.Register("Hans", hans)

	if got := m.FontFor("zh-CN"); got != hans {
		t.Errorf("FontFor(zh-CN) = %+v, want the Hans font", got)
	}
	// Traditional Chinese uses script Hant, which is not registered.
	if got := m.FontFor("zh-TW"); got != def {
		t.Errorf("FontFor(zh-TW) = %+v, want default", got)
	}
	if got := m.FontFor("en-US"); got != def {
		t.Errorf("FontFor(en-US) = %+v, want default", got)
	}
}
