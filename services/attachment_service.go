package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-kit/log/level"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/types"
)

// AttachmentService reads message attachments out of the object store.
// The sender check uses it to recover public keys attached inline to a
// message when no other source yields keys.
type AttachmentService struct {
	env *types.Environment
}

func NewAttachmentService(env *types.Environment) *AttachmentService {
	return &AttachmentService{env: env}
}

// DownloadAttachment fetches an attachment object by its id.
func (as *AttachmentService) DownloadAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	if attachmentID == "" {
		return nil, types.ErrBadRequest
	}
	buf := manager.NewWriteAtBuffer([]byte{})
	_, dErr := as.env.S3Downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(global.Conf.Storage.Bucket),
		Key:    aws.String(attachmentID),
	})
	if dErr != nil {
		var noKey *s3Types.NoSuchKey
		var apiErr *smithy.GenericAPIError
		if errors.As(dErr, &noKey) {
			level.Warn(global.Logger).Log("msg", "attachment does not exist", "objectKey", attachmentID)
			return nil, types.ErrNotFound
		} else if errors.As(dErr, &apiErr) {
			if apiErr.ErrorCode() == "AccessDenied" {
				level.Warn(global.Logger).Log("msg", "attachment access denied", "objectKey", attachmentID)
				return nil, types.ErrNotAuthorized
			}
		}
		return nil, dErr
	}
	return buf.Bytes(), nil
}

// UploadAttachment stores an attachment object.
func (as *AttachmentService) UploadAttachment(ctx context.Context, attachmentID string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", types.ErrBadRequest
	}
	_, uErr := as.env.S3Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(global.Conf.Storage.Bucket),
		Key:    aws.String(attachmentID),
		Body:   bytes.NewReader(content),
	})
	if uErr != nil {
		level.Error(global.Logger).Log("msg", "failed to upload attachment", "objectKey", attachmentID, "err", uErr)
		return "", uErr
	}
	return fmt.Sprintf("s3://%s/%s", global.Conf.Storage.Bucket, attachmentID), nil
}
