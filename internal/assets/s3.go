package assets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// s3Source fetches artwork from an s3://bucket/prefix location. Objects
// written by the school upload tool may be encrypted; those carry a magic
// header and are decrypted transparently when a password is configured.
type s3Source struct {
	client      *s3.Client
	downloader  *manager.Downloader
	bucket      string
	prefix      string
	encPassword string
}

func newS3Source(ctx context.Context, base, encPassword string) (*s3Source, error) {
	path := strings.TrimPrefix(base, "s3://")
	bucket, prefix, _ := strings.Cut(path, "/")
	if bucket == "" {
		return nil, fmt.Errorf("invalid s3 asset base: %s", base)
	}

	var opts []func(*awscfg.LoadOptions) error
	// Static credentials dedicated to the asset bucket override the default
	// chain when present.
	if ak := os.Getenv("ASSETS_AWS_ACCESS_KEY_ID"); ak != "" {
		sk := os.Getenv("ASSETS_AWS_SECRET_ACCESS_KEY")
		opts = append(opts, awscfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ak, sk, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &s3Source{
		client:      cli,
		downloader:  manager.NewDownloader(cli),
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		encPassword: encPassword,
	}, nil
}

func (s *s3Source) Fetch(ctx context.Context, code string) (Asset, error) {
	key := code + ".svg"
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// Any download failure degrades to the next source in the chain.
		log.Debug().Err(err).Str("bucket", s.bucket).Str("key", key).Msg("s3 asset fetch failed")
		return Asset{}, fmt.Errorf("s3 asset %s: %w", code, ErrNotFound)
	}

	data := buf.Bytes()
	if isEncrypted(data) {
		if s.encPassword == "" {
			return Asset{}, fmt.Errorf("s3 asset %s encrypted but no password configured: %w", code, ErrNotFound)
		}
		data, err = decryptGCM(data, s.encPassword)
		if err != nil {
			return Asset{}, fmt.Errorf("decrypt asset %s: %w", code, err)
		}
	}
	log.Debug().Str("bucket", s.bucket).Str("key", key).Int("size", len(data)).Msg("fetched s3 asset")
	return Asset{Data: data}, nil
}
