package types

// answer for GET /keys/:email, resolved key material for a recipient
type OutputVerificationKeys struct {
	Email        string        `json:"email"`
	PinnedKeys   []string      `json:"pinnedKeys"`
	KeysResponse *KeysResponse `json:"keysResponse,omitempty"`
	IsOwnAddress bool          `json:"isOwnAddress"`
	SelfShortcut bool          `json:"selfShortcut,omitempty"`
	ResolvedInMs int64         `json:"resolvedInMs,omitempty"`
	ResolutionID string        `json:"resolutionId,omitempty"`
}

// answer for GET /keys/:email/encryption-status
type OutputEncryptionStatus struct {
	Email     string                `json:"email"`
	Status    *EncryptionIconStatus `json:"status,omitempty"`
	ErrorCode *int                  `json:"errorCode,omitempty"`
}

// answer for POST /attachments
type OutputAttachment struct {
	AttachmentID string `json:"attachmentId"`
	Path         string `json:"path"`
}

// answer for GET /keys/:email/send-preferences
type OutputSendPreferences struct {
	Email             string    `json:"email"`
	Encrypt           bool      `json:"encrypt"`
	Sign              bool      `json:"sign"`
	Scheme            PGPScheme `json:"scheme"`
	MIMEType          string    `json:"mimeType"`
	PublicKey         string    `json:"publicKey,omitempty"` // armored selected key
	IsPublicKeyPinned bool      `json:"isPublicKeyPinned"`
	HasApiKeys        bool      `json:"hasApiKeys"`
}
