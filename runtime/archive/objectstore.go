/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package archive

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kirky-x/inklog/apis/archive"
	"github.com/kirky-x/inklog/apis/config"
	"github.com/kirky-x/inklog/apis/errkind"
)

// multipartThreshold and partSize gate single-PUT vs multipart upload:
// a compressed blob at or under 5 MiB uses a single PUT; above that it
// is split into 5 MiB parts for a multipart upload.
const (
	multipartThreshold = 5 << 20
	partSize            = 5 << 20
)

// ObjectStore implements apis/archive.ObjectStore against an
// S3-compatible endpoint.
type ObjectStore struct {
	client *s3.Client
	bucket string
	sse    *config.EncryptionConfig
}

var _ archive.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore builds an S3 client from cfg. SSE-C is rejected at
// construction time by config validation, so it is never reachable
// here.
func NewObjectStore(ctx context.Context, cfg config.ArchiveConfig) (*ObjectStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID.IsSet() {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID.Expose(), cfg.SecretAccessKey.Expose(), cfg.SessionToken.Expose(),
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, "load aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &ObjectStore{client: client, bucket: cfg.Bucket, sse: cfg.Encryption}, nil
}

// Put uploads blob under key, choosing single-PUT vs multipart per the
// 5 MiB threshold, and attaches the object-metadata headers.
func (o *ObjectStore) Put(key string, blob archive.Blob, metadataHeaders map[string]string) (archive.UploadResult, error) {
	ctx := context.Background()
	storageClass := metadataHeaders["storage-class"]

	if len(blob.Data) <= multipartThreshold {
		input := &s3.PutObjectInput{
			Bucket:       aws.String(o.bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(blob.Data),
			Metadata:     metadataHeaders,
			StorageClass: awsStorageClass(storageClass),
		}
		o.applySSE(input)
		out, err := o.client.PutObject(ctx, input)
		if err != nil {
			return archive.UploadResult{}, errkind.Wrap(errkind.ObjectStore, "put object", err)
		}
		return archive.UploadResult{Key: key, StorageClass: storageClass, ETag: aws.ToString(out.ETag)}, nil
	}

	return o.multipartPut(ctx, key, blob.Data, metadataHeaders, storageClass)
}

func (o *ObjectStore) multipartPut(ctx context.Context, key string, data []byte, headers map[string]string, storageClass string) (archive.UploadResult, error) {
	create := &s3.CreateMultipartUploadInput{
		Bucket:       aws.String(o.bucket),
		Key:          aws.String(key),
		Metadata:     headers,
		StorageClass: awsStorageClass(storageClass),
	}
	created, err := o.client.CreateMultipartUpload(ctx, create)
	if err != nil {
		return archive.UploadResult{}, errkind.Wrap(errkind.ObjectStore, "create multipart upload", err)
	}
	uploadID := created.UploadId

	var parts []types.CompletedPart
	partNum := int32(1)
	for offset := 0; offset < len(data); offset += partSize {
		end := offset + partSize
		if end > len(data) {
			end = len(data)
		}
		up, err := o.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(o.bucket),
			Key:        aws.String(key),
			PartNumber: aws.Int32(partNum),
			UploadId:   uploadID,
			Body:       bytes.NewReader(data[offset:end]),
		})
		if err != nil {
			_, _ = o.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket: aws.String(o.bucket), Key: aws.String(key), UploadId: uploadID,
			})
			return archive.UploadResult{}, errkind.Wrap(errkind.ObjectStore, fmt.Sprintf("upload part %d", partNum), err)
		}
		parts = append(parts, types.CompletedPart{ETag: up.ETag, PartNumber: aws.Int32(partNum)})
		partNum++
	}

	out, err := o.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(o.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return archive.UploadResult{}, errkind.Wrap(errkind.ObjectStore, "complete multipart upload", err)
	}
	return archive.UploadResult{Key: key, StorageClass: storageClass, ETag: aws.ToString(out.ETag)}, nil
}

// applySSE sets server-side encryption headers per the configured mode.
// SSE-C is never reachable here: config validation rejects it earlier.
func (o *ObjectStore) applySSE(input *s3.PutObjectInput) {
	if o.sse == nil {
		return
	}
	switch o.sse.Mode {
	case config.SSEAES256:
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case config.SSEKMS:
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if o.sse.KeyID != "" {
			input.SSEKMSKeyId = aws.String(o.sse.KeyID)
		}
	}
}

// awsStorageClass maps the configuration enum's names onto the S3
// API's uppercase constants.
func awsStorageClass(name string) types.StorageClass {
	switch name {
	case config.StorageClassIntelligentTiering.String():
		return types.StorageClassIntelligentTiering
	case config.StorageClassStandardIA.String():
		return types.StorageClassStandardIa
	case config.StorageClassOneZoneIA.String():
		return types.StorageClassOnezoneIa
	case config.StorageClassGlacier.String():
		return types.StorageClassGlacier
	case config.StorageClassGlacierDeepArchive.String():
		return types.StorageClassDeepArchive
	case config.StorageClassReducedRedundancy.String():
		return types.StorageClassReducedRedundancy
	default:
		return types.StorageClassStandard
	}
}

// Head returns the object's storage class, used by Restore to decide
// whether a cold-tier Restore request is required.
func (o *ObjectStore) Head(key string) (string, error) {
	out, err := o.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket), Key: aws.String(key),
	})
	if err != nil {
		return "", errkind.Wrap(errkind.ObjectStore, "head object", err)
	}
	return string(out.StorageClass), nil
}

// Restore issues an S3 Restore request (tier Standard, 1-day expiry)
// for a cold-tier object. Callers must treat this as "restoration
// initiated", not "object ready now".
func (o *ObjectStore) Restore(key string) error {
	_, err := o.client.RestoreObject(context.Background(), &s3.RestoreObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
		RestoreRequest: &types.RestoreRequest{
			Days: aws.Int32(1),
			GlacierJobParameters: &types.GlacierJobParameters{
				Tier: types.TierStandard,
			},
		},
	})
	if err != nil {
		return errkind.Wrap(errkind.ObjectStore, "restore object", err)
	}
	return nil
}

// Get downloads key's body in full. Callers are responsible for
// checking Head's storage class and calling Restore first if it is a
// cold tier.
func (o *ObjectStore) Get(key string) ([]byte, error) {
	out, err := o.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(o.bucket), Key: aws.String(key),
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, "get object", err)
	}
	defer out.Body.Close()

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, errkind.Wrap(errkind.ObjectStore, "read object body", err)
	}
	return buf.Bytes(), nil
}

// List paginates ListObjectsV2 under prefix, filtering by last-modified
// date range.
func (o *ObjectStore) List(prefix string, from, to time.Time) ([]string, error) {
	ctx := context.Background()
	paginator := s3.NewListObjectsV2Paginator(o.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errkind.Wrap(errkind.ObjectStore, "list objects", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil {
				continue
			}
			if !from.IsZero() && obj.LastModified.Before(from) {
				continue
			}
			if !to.IsZero() && obj.LastModified.After(to) {
				continue
			}
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Delete removes key.
func (o *ObjectStore) Delete(key string) error {
	_, err := o.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket), Key: aws.String(key),
	})
	if err != nil {
		return errkind.Wrap(errkind.ObjectStore, "delete object", err)
	}
	return nil
}

// BuildKey constructs the object key layout:
// <prefix>/<YYYY>/<MM>/logs_<start_ts>_<end_ts>_<record_count>.parquet.<ext>
func BuildKey(prefix string, start, end time.Time, recordCount int, compression config.CompressionAlgorithm) string {
	ext := compression.Extension()
	name := fmt.Sprintf("logs_%d_%d_%s.parquet", start.UTC().Unix(), end.UTC().Unix(), strconv.Itoa(recordCount))
	if ext != "" {
		name += "." + ext
	}
	return fmt.Sprintf("%s%d/%02d/%s", prefix, start.UTC().Year(), start.UTC().Month(), name)
}

// MetadataHeaders builds the object metadata header map attached to
// every uploaded archive blob.
func MetadataHeaders(blob archive.Blob, storageClass string, status archive.Status) map[string]string {
	return map[string]string{
		"start-date":      blob.StartTimestamp.UTC().Format(time.RFC3339),
		"end-date":        blob.EndTimestamp.UTC().Format(time.RFC3339),
		"record-count":    strconv.Itoa(blob.RecordCount),
		"original-size":   strconv.FormatInt(blob.OriginalBytes, 10),
		"compressed-size": strconv.FormatInt(blob.CompressedBytes, 10),
		"compression":     blob.CompressionName,
		"storage-class":   storageClass,
		"checksum":        blob.ChecksumSHA256,
		"archive-version": "1",
		"archive-type":    blob.ArchiveFormat,
		"status":          string(status),
	}
}
