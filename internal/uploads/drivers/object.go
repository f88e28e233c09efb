package drivers

import "mime"

const defaultContentType = "application/octet-stream"

// ObjectInfo is the metadata stored next to an object's bytes.
type ObjectInfo struct {
	ContentType string `json:"content_type"`
	// FileName is the name the object had on the uploader's machine.
	FileName string `json:"file_name,omitempty"`
}

func (o ObjectInfo) contentType() string {
	if o.ContentType == "" {
		return defaultContentType
	}
	return o.ContentType
}

// ContentDisposition renders an attachment header carrying the original file name.
func (o ObjectInfo) ContentDisposition() string {
	if o.FileName == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": o.FileName})
}
