package types

// store/replace the signed cards kept for a contact
type InputContactCards struct {
	OwnerAddress string     `json:"ownerAddress" validate:"required"`
	Cards        []CardData `json:"cards" validate:"required,min=1,dive"`
}

// sender verification request: the signed body of a received message plus
// any attachment references that may carry the senders public key inline
type InputVerifySender struct {
	SenderEmail   string                 `json:"senderEmail" validate:"required,email"`
	OwnerAddress  string                 `json:"ownerAddress" validate:"required"`
	Body          string                 `json:"body" validate:"required"`
	BodySignature string                 `json:"bodySignature" validate:"required"`
	Attachments   []AttachmentReference  `json:"attachments,omitempty" validate:"dive"`
	MimeType      string                 `json:"mimeType,omitempty"`
	Headers       map[string]interface{} `json:"headers,omitempty"`
}

// provision or replace the owner account record whose addresses and keys
// anchor the trust decisions
type InputUser struct {
	Addresses []UserAddress `json:"addresses" validate:"required,min=1,dive"`
}

// store an attachment object so verify-sender can reference it later
type InputAttachment struct {
	AttachmentID  string `json:"attachmentId,omitempty"`
	Name          string `json:"name,omitempty"`
	ContentBase64 string `json:"contentBase64" validate:"required"`
}

// AttachmentReference points into the attachment store (bucket objects).
type AttachmentReference struct {
	AttachmentID string `json:"attachmentId" validate:"required"`
	Name         string `json:"name,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
}
