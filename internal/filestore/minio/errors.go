package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/bucketfs/internal/errs"
	minioErr "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errs.Error so the minio
// types never leak past this package.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp minioErr.ErrorResponse
	if errors.As(err, &resp) {
		// S3 codes are more precise than the status, check them first.
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case "BucketNotEmpty":
			return errs.Wrap(errs.ErrKindNotEmpty, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError", "XMinioInvalidObjectName":
			return errs.Wrap(errs.ErrKindInvalidPath, msg, err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case http.StatusConflict:
			return errs.Wrap(errs.ErrKindStoreFailed, msg, err)
		}
		if resp.StatusCode != 0 {
			return errs.Wrap(errs.ErrKindStoreFailed, msg, err)
		}
	}

	// Anything else is a generic connection or I/O failure
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
