package models

// Attachment is a file payload in the provider wire format. Fileblob is the
// base64-encoded content.
type Attachment struct {
	Filename string `json:"filename"`
	Fileblob string `json:"fileblob"`
	Mimetype string `json:"mimetype"`
}
