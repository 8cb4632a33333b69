package dataset

import (
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ListImages returns the image files directly inside dir in directory
// listing order. Subdirectories are not descended into.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, e.Name()))
	}
	return images, nil
}

// DescriptorPath maps the selected data path to the dataset descriptor used
// for validation. A directory gets descriptor appended; a file is used as is.
func DescriptorPath(dataPath, descriptor string) string {
	if isDir(dataPath) {
		return filepath.Join(dataPath, descriptor)
	}
	return dataPath
}

// ImageDir maps the selected data path to the folder of benchmark images.
// A descriptor file is replaced by its parent directory, then subpath is
// appended when that folder exists.
func ImageDir(dataPath, subpath string) string {
	dir := dataPath
	if dataPath != "" && !isDir(dataPath) {
		if _, err := os.Stat(dataPath); err == nil {
			dir = filepath.Dir(dataPath)
		}
	}

	if subpath != "" {
		candidate := filepath.Join(dir, subpath)
		if isDir(candidate) {
			return candidate
		}
	}
	return dir
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
