package store

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vshn/guildsnap/snapshot"
)

var _ Store = &S3{}

// S3 stores archives in a bucket, optionally below a key prefix.
type S3 struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	minioClient     *minio.Client
	bucket          string
	prefix          string
}

// NewS3 returns an unconnected S3 store. The endpoint has the form
// http(s)://host[:port]/bucket[/prefix].
func NewS3(endpoint, accessKeyID, secretAccessKey string) *S3 {
	return &S3{
		Endpoint:        endpoint,
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	}
}

// Connect creates the minio client and the bucket if it does not exist.
func (s *S3) Connect(ctx context.Context) error {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("cannot parse S3 endpoint URL: %w", err)
	}

	var ssl bool
	switch u.Scheme {
	case "https":
		ssl = true
	case "http":
		ssl = false
	default:
		return fmt.Errorf("endpoint '%v' has wrong scheme '%s' (should be 'http' or 'https')", s.Endpoint, u.Scheme)
	}

	s.bucket, s.prefix = parseBucketAndPrefix(u.Path)
	if s.bucket == "" {
		return fmt.Errorf("endpoint '%v' does not name a bucket", s.Endpoint)
	}
	mc, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(s.AccessKeyID, s.SecretAccessKey, ""),
		Secure: ssl,
	})
	if err != nil {
		return err
	}
	s.minioClient = mc
	return s.createBucket(ctx)
}

func (s *S3) createBucket(ctx context.Context) error {
	exists, err := s.minioClient.BucketExists(ctx, s.bucket)
	// Some providers return an error instead of false for a missing bucket.
	if !exists && (err == nil || strings.Contains(err.Error(), "exist")) {
		return s.minioClient.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	} else if err != nil {
		return err
	}
	return nil
}

// parseBucketAndPrefix splits "/bucket/some/prefix" into its bucket and prefix.
func parseBucketAndPrefix(path string) (bucket, prefix string) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Trim(parts[1], "/")
}

func (s *S3) objectPath(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3) Save(ctx context.Context, snap *snapshot.Snapshot) (Info, error) {
	buf := &bytes.Buffer{}
	if err := Encode(buf, snap); err != nil {
		return Info{}, err
	}
	id := IDOf(snap)
	size := int64(buf.Len())
	_, err := s.minioClient.PutObject(ctx, s.bucket, s.objectPath(id+ArchiveSuffix), buf, size, minio.PutObjectOptions{
		ContentType: "application/gzip",
	})
	if err != nil {
		return Info{}, fmt.Errorf("cannot upload %s: %w", id, err)
	}
	info, _ := infoFromName(id+ArchiveSuffix, size)
	return info, nil
}

func (s *S3) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	obj, err := s.minioClient.GetObject(ctx, s.bucket, s.objectPath(id+ArchiveSuffix), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err, id)
	}
	defer obj.Close()
	snap, err := Decode(obj)
	if err != nil {
		return nil, s.translate(err, id)
	}
	return snap, nil
}

func (s *S3) List(ctx context.Context, guildID string) ([]Info, error) {
	prefix := ""
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}
	infos := []Info{}
	for object := range s.minioClient.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if object.Err != nil {
			return nil, object.Err
		}
		if info, ok := infoFromName(strings.TrimPrefix(object.Key, prefix), object.Size); ok {
			infos = append(infos, info)
		}
	}
	return filterAndSort(infos, guildID), nil
}

func (s *S3) Delete(ctx context.Context, id string) error {
	key := s.objectPath(id + ArchiveSuffix)
	if _, err := s.minioClient.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return s.translate(err, id)
	}
	return s.minioClient.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *S3) translate(err error, id string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
