// Package fonts locates an embeddable CJK-capable font for translated text.
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"pdf-translator/internal/downloader"
	"pdf-translator/internal/logger"
)

const (
	// LogicalFontName is the resource name translated text is set in.
	LogicalFontName = "CustomFont"

	// FallbackFontURL points at an open font that covers Simplified Chinese.
	FallbackFontURL = "https://github.com/adobe-fonts/source-han-serif/raw/release/OTF/SimplifiedChinese/SourceHanSerifSC-Regular.otf"

	fallbackFontFile = "SourceHanSerifSC-Regular.otf"
)

// Descriptor is a resolved font: the logical resource name plus the file to embed.
type Descriptor struct {
	Name string
	Path string
}

// family is an ordered preference entry: one family may ship under several file names.
type family struct {
	name  string
	files []string
}

// platformCandidates returns the family preference list and the directories
// to search for the given GOOS. Direct children only, no recursion.
func platformCandidates(goos string) ([]family, []string) {
	switch goos {
	case "windows":
		return []family{
				{"simsun", []string{"simsun.ttc", "simsun.ttf"}},
				{"simhei", []string{"simhei.ttf"}},
				{"msyh", []string{"msyh.ttc", "msyh.ttf"}},
				{"simkai", []string{"simkai.ttf"}},
			}, []string{
				filepath.Join(os.Getenv("WINDIR"), "Fonts"),
				filepath.Join(os.Getenv("LOCALAPPDATA"), "Microsoft", "Windows", "Fonts"),
			}
	case "darwin":
		home, _ := os.UserHomeDir()
		return []family{
				{"simsun", []string{"Sun.ttf", "STSong.ttf"}},
				{"simhei", []string{"STHeiti.ttf"}},
				{"msyh", []string{"STHeiti Light.ttf"}},
				{"simkai", []string{"STKaiti.ttf"}},
			}, []string{
				"/System/Library/Fonts",
				"/Library/Fonts",
				filepath.Join(home, "Library", "Fonts"),
			}
	default:
		home, _ := os.UserHomeDir()
		return []family{
				{"simsun", []string{"simsun.ttc", "simsun.ttf"}},
				{"simhei", []string{"simhei.ttf"}},
				{"msyh", []string{"msyh.ttc", "msyh.ttf"}},
				{"simkai", []string{"simkai.ttf"}},
			}, []string{
				"/usr/share/fonts",
				"/usr/local/share/fonts",
				filepath.Join(home, ".fonts"),
			}
	}
}

// searchFamilies walks families in preference order and returns the first
// candidate file that exists, or "" when none do.
func searchFamilies(families []family, dirs []string) string {
	for _, fam := range families {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			for _, file := range fam.files {
				fullPath := filepath.Join(dir, file)
				if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
					return fullPath
				}
			}
		}
	}
	return ""
}

// Resolver selects exactly one embeddable font per session.
type Resolver struct {
	families []family
	dirs     []string
	cacheDir string
	fetch    func(url, destPath string) error
}

// NewResolver creates a resolver for the current platform. extraDirs are
// searched before the platform directories; cacheDir holds the downloaded
// fallback font ("" defaults to a directory under the system temp dir).
func NewResolver(extraDirs []string, cacheDir string) *Resolver {
	families, dirs := platformCandidates(runtime.GOOS)
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "pdf-translator-fonts")
	}
	return &Resolver{
		families: families,
		dirs:     append(append([]string{}, extraDirs...), dirs...),
		cacheDir: cacheDir,
		fetch: func(url, destPath string) error {
			return downloader.NewDownloader("").FetchFile(url, destPath)
		},
	}
}

// Resolve returns the font to embed for this session. System families are
// preferred in order; when none is installed the open fallback font is
// fetched once into the cache directory and reused afterwards.
func (r *Resolver) Resolve() (Descriptor, error) {
	if path := searchFamilies(r.families, r.dirs); path != "" {
		logger.Info("using system font", logger.String("path", path))
		return Descriptor{Name: LogicalFontName, Path: path}, nil
	}

	fallbackPath := filepath.Join(r.cacheDir, fallbackFontFile)
	if info, err := os.Stat(fallbackPath); err == nil && !info.IsDir() {
		logger.Debug("using cached fallback font", logger.String("path", fallbackPath))
		return Descriptor{Name: LogicalFontName, Path: fallbackPath}, nil
	}

	logger.Info("no system font found, downloading fallback font",
		logger.String("url", FallbackFontURL))
	if err := r.fetch(FallbackFontURL, fallbackPath); err != nil {
		return Descriptor{}, fmt.Errorf("no suitable font found and fallback fetch failed: %w", err)
	}
	return Descriptor{Name: LogicalFontName, Path: fallbackPath}, nil
}
