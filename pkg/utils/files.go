package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// VMExt is the extension of VM source files.
const VMExt = ".vm"

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// ListVMFiles returns the .vm files directly inside dir, sorted by name.
func ListVMFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != VMExt {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// UnitName derives the static-symbol qualifier from a source path:
// "dir/Main.vm" -> "Main". Characters not allowed in an assembler symbol
// become underscores, and a leading digit gets an underscore prefix.
func UnitName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == ':') {
			return r
		}
		return '_'
	}, name)
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	return name
}

// OutputPath replaces the extension of inPath with ext.
func OutputPath(inPath, ext string) string {
	cur := filepath.Ext(inPath)
	if cur == "" {
		return inPath + ext
	}
	return strings.TrimSuffix(inPath, cur) + ext
}
