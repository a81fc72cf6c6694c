package documents

import (
	"fmt"
	"regexp"
)

// Upload object paths are the bidirectional contract between the
// upload-initiation service (producer) and the confirmation handler
// (consumer): org-uploads/{org}/documents/{doc}/files/{file}/{filename}.
var uploadPathRe = regexp.MustCompile(`^org-uploads/([^/]+)/documents/([^/]+)/files/([^/]+)/(.+)$`)

// ParsedUploadPath holds the identifiers extracted from an upload object
// path. Fields are raw path segments; callers validate id formats.
type ParsedUploadPath struct {
	OrgID          string
	DocumentID     string
	DocumentFileID string
	Filename       string
}

// ParseUploadPath pattern-matches an object path. A path that deviates from
// the contract in any way fails parsing; that is always a permanent reject.
func ParseUploadPath(path string) (ParsedUploadPath, bool) {
	m := uploadPathRe.FindStringSubmatch(path)
	if m == nil {
		return ParsedUploadPath{}, false
	}
	return ParsedUploadPath{
		OrgID:          m[1],
		DocumentID:     m[2],
		DocumentFileID: m[3],
		Filename:       m[4],
	}, true
}

// FormatUploadPath builds the object path for a file upload.
func FormatUploadPath(orgID, documentID, documentFileID, filename string) string {
	return fmt.Sprintf("org-uploads/%s/documents/%s/files/%s/%s", orgID, documentID, documentFileID, filename)
}

// ResultPrefix is where the parsing worker writes its output for a file.
// Derived from the same identifiers as the upload path so the worker can
// predict it without a lookup.
func ResultPrefix(orgID, documentID, documentFileID string) string {
	return fmt.Sprintf("org-uploads/%s/documents/%s/files/%s/parsing/", orgID, documentID, documentFileID)
}
