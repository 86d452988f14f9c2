package services

import (
	"context"
	"testing"

	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/tj/assert"
)

func TestDownloadAttachmentEmptyID(t *testing.T) {
	attachmentService := NewAttachmentService(newTestEnv())
	_, err := attachmentService.DownloadAttachment(context.Background(), "")
	assert.Equal(t, types.ErrBadRequest, err)
}

func TestUploadAttachmentEmptyContent(t *testing.T) {
	attachmentService := NewAttachmentService(newTestEnv())
	_, err := attachmentService.UploadAttachment(context.Background(), "att-1", nil)
	assert.Equal(t, types.ErrBadRequest, err)
}
