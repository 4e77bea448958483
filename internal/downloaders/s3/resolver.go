package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tanq16/segdl/internal/utils"
)

const DefaultPresignExpiry = 6 * time.Hour

var ErrObjectNotFound = errors.New("S3 object not found")

// Object is one downloadable object with a presigned GET URL. RelDir is
// the object's directory relative to the requested folder.
type Object struct {
	Key    string
	Size   int64
	RelDir string
	URL    string
}

// Resolver turns s3:// references into presigned HTTPS URLs that the
// HTTP engine can fetch with byte ranges.
type Resolver struct {
	client  *s3.Client
	presign *s3.PresignClient
	expiry  time.Duration
}

// LoadConfig reads the shared AWS configuration for profile, optionally
// overriding the region.
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRetryMode(aws.RetryModeAdaptive)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("error loading AWS config: %w", err)
	}
	return cfg, nil
}

func NewResolver(cfg aws.Config, expiry time.Duration, optFns ...func(*s3.Options)) *Resolver {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	client := s3.NewFromConfig(cfg, optFns...)
	return &Resolver{
		client:  client,
		presign: s3.NewPresignClient(client),
		expiry:  expiry,
	}
}

// Resolve presigns the object named by raw, or every object under it when
// it names a folder.
func (r *Resolver) Resolve(ctx context.Context, raw string) ([]Object, error) {
	log := utils.GetLogger("s3")
	src, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	if src.Key != "" && !strings.HasSuffix(src.Key, "/") {
		head, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(src.Bucket),
			Key:    aws.String(src.Key),
		})
		if err == nil {
			obj := Object{Key: src.Key, Size: aws.ToInt64(head.ContentLength)}
			if obj.URL, err = r.presignGet(ctx, src.Bucket, src.Key); err != nil {
				return nil, err
			}
			log.Debug().Str("source", src.String()).Int64("size", obj.Size).Msg("Resolved S3 object")
			return []Object{obj}, nil
		}
		log.Debug().Err(err).Str("source", src.String()).Msg("HeadObject failed, trying as a folder")
	}

	prefix := src.Key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects, err := r.list(ctx, src.Bucket, prefix)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, src)
	}
	for i := range objects {
		if objects[i].URL, err = r.presignGet(ctx, src.Bucket, objects[i].Key); err != nil {
			return nil, err
		}
	}
	log.Debug().Str("source", src.String()).Int("objects", len(objects)).Msg("Resolved S3 folder")
	return objects, nil
}

func (r *Resolver) list(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue // folder placeholder
			}
			relDir := path.Dir(strings.TrimPrefix(key, prefix))
			if relDir == "." {
				relDir = ""
			}
			objects = append(objects, Object{Key: key, Size: aws.ToInt64(obj.Size), RelDir: relDir})
		}
	}
	return objects, nil
}

func (r *Resolver) presignGet(ctx context.Context, bucket, key string) (string, error) {
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		return "", fmt.Errorf("error presigning s3://%s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}
