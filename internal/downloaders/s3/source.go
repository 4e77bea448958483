package s3

import (
	"fmt"
	"strings"
)

// Source is a parsed s3://bucket/key reference. An empty key or one ending
// in "/" names a folder.
type Source struct {
	Bucket string
	Key    string
}

func (s Source) String() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key)
}

func IsS3URL(raw string) bool {
	return strings.HasPrefix(raw, "s3://")
}

func ParseURL(raw string) (Source, error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return Source{}, fmt.Errorf("invalid S3 URL %q: missing s3:// prefix", raw)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Source{}, fmt.Errorf("invalid S3 URL %q: missing bucket", raw)
	}
	return Source{Bucket: bucket, Key: key}, nil
}
