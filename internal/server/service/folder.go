package service

import "strings"

// Folder is one of the language folders videos are filed under.
type Folder string

const (
	FolderEN Folder = "movie-en"
	FolderRU Folder = "movie-ru"
	FolderUZ Folder = "movie-uz"
)

// FolderRoot labels objects stored without a folder prefix.
const FolderRoot = "root"

// Folders lists every valid upload folder in display order.
var Folders = []Folder{FolderEN, FolderRU, FolderUZ}

// ParseFolder validates s against the known folders.
func ParseFolder(s string) (Folder, error) {
	for _, f := range Folders {
		if string(f) == s {
			return f, nil
		}
	}
	if s == "" {
		return "", &ValidationError{Field: "folder", Reason: "is required"}
	}
	return "", &ValidationError{Field: "folder", Reason: "must be one of movie-en, movie-ru, movie-uz"}
}

// objectKey joins folder and name into a storage key for an existing
// object. An empty folder or FolderRoot addresses an object at the bucket
// root. Any single segment is accepted as folder so that everything List
// returns can be addressed; the closed folder set applies to uploads only.
func objectKey(folder, name string) (string, error) {
	if err := checkSegment("name", name); err != nil {
		return "", err
	}
	if folder == "" || folder == FolderRoot {
		return name, nil
	}
	if err := checkSegment("folder", folder); err != nil {
		return "", err
	}
	return folder + "/" + name, nil
}

func checkSegment(field, s string) error {
	switch {
	case s == "":
		return &ValidationError{Field: field, Reason: "is required"}
	case strings.Contains(s, "/"):
		return &ValidationError{Field: field, Reason: "must not contain /"}
	case s == "." || s == "..":
		return &ValidationError{Field: field, Reason: "must not be . or .."}
	}
	return nil
}

// splitKey returns the folder label and file name of a storage key.
func splitKey(key string) (folder, name string) {
	parts := strings.Split(key, "/")
	if len(parts) == 1 {
		return FolderRoot, key
	}
	return parts[0], parts[len(parts)-1]
}
