// Package media inspects image files kept by the crawler.
package media

import (
	"encoding/hex"
	"fmt"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
	"golang.org/x/crypto/sha3"
)

// summaryTags are the EXIF tags copied into Info.Exif.
var summaryTags = map[string]struct{}{
	"Make":     {},
	"Model":    {},
	"DateTime": {},
	"Software": {},
	"Artist":   {},
}

// Info describes one image file.
type Info struct {
	// Hash is the hex encoded SHA3-256 digest of the file content.
	Hash string

	// Size is the file size in bytes.
	Size int64

	// Exif holds the summary tags found in the file. Nil when the file has
	// no EXIF block.
	Exif map[string]string
}

// Inspect hashes the file at path and extracts its EXIF summary. A file
// without EXIF data is not an error.
func Inspect(path string) (Info, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a file the crawler wrote
	if err != nil {
		return Info{}, fmt.Errorf("failed to read image: %w", err)
	}
	return InspectBytes(data), nil
}

// InspectBytes is Inspect for an in-memory image.
func InspectBytes(data []byte) Info {
	sum := sha3.Sum256(data)
	return Info{
		Hash: hex.EncodeToString(sum[:]),
		Size: int64(len(data)),
		Exif: exifSummary(data),
	}
}

// exifSummary returns the summary tags of data, or nil.
func exifSummary(data []byte) map[string]string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	var summary map[string]string
	for _, entry := range entries {
		if _, ok := summaryTags[entry.TagName]; !ok || entry.Formatted == "" {
			continue
		}
		if summary == nil {
			summary = make(map[string]string)
		}
		if _, dup := summary[entry.TagName]; !dup {
			summary[entry.TagName] = entry.Formatted
		}
	}
	return summary
}
