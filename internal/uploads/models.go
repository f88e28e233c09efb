package uploads

// StoredFile describes an object after it has been written through the storage driver.
type StoredFile struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	// Checksum is the hex SHA-256 of the stored bytes.
	Checksum string `json:"checksum"`
}
