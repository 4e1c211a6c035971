package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/foxcpp/readback/framework/config"
	"github.com/foxcpp/readback/framework/exterrors"
	"github.com/foxcpp/readback/framework/log"
	"github.com/foxcpp/readback/framework/readback"
	"github.com/foxcpp/readback/internal/storage/blob"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const modName = "storage.blob.s3"

const (
	credsTypeFileMinio = "file_minio"
	credsTypeFileAWS   = "file_aws"
	credsTypeAccessKey = "access_key"
	credsTypeIAM       = "iam"
	credsTypeDefault   = credsTypeAccessKey
)

type Store struct {
	log log.Logger

	endpoint string
	cl       *minio.Client

	bucketName   string
	objectPrefix string
}

func New(logger log.Logger) *Store {
	logger.Name = modName
	return &Store{log: logger}
}

func (s *Store) Init(cfg *config.Map) error {
	var (
		secure          bool
		accessKeyID     string
		secretAccessKey string
		credsType       string
		location        string
	)
	cfg.String("endpoint", false, true, "", &s.endpoint)
	cfg.Bool("secure", false, true, &secure)
	cfg.String("access_key", false, false, "", &accessKeyID)
	cfg.String("secret_key", false, false, "", &secretAccessKey)
	cfg.String("bucket", false, true, "", &s.bucketName)
	cfg.String("region", false, false, "", &location)
	cfg.String("object_prefix", false, false, "", &s.objectPrefix)
	cfg.Enum("creds", false, false,
		[]string{credsTypeFileMinio, credsTypeFileAWS, credsTypeAccessKey, credsTypeIAM},
		credsTypeDefault, &credsType)

	if _, err := cfg.Process(); err != nil {
		return err
	}
	if s.endpoint == "" {
		return config.NodeErr(cfg.Block, "%s: endpoint not set", modName)
	}

	var creds *credentials.Credentials

	switch credsType {
	case credsTypeFileMinio:
		creds = credentials.NewFileMinioClient("", "")
	case credsTypeFileAWS:
		creds = credentials.NewFileAWSCredentials("", "")
	case credsTypeIAM:
		creds = credentials.NewIAM("")
	default:
		if accessKeyID == "" || secretAccessKey == "" {
			return config.NodeErr(cfg.Block, "%s: access_key and secret_key are required", modName)
		}
		creds = credentials.NewStaticV4(accessKeyID, secretAccessKey, "")
	}

	cl, err := minio.New(s.endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: location,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", modName, err)
	}

	if s.log.Debug {
		cl.TraceOn(s.log.DebugWriter())
		s.log.Debugf("HTTP tracing enabled for %s", s.endpoint)
	}

	s.cl = cl
	s.log.DebugMsg("client initialized", "endpoint", s.endpoint, "bucket", s.bucketName)
	return nil
}

type object struct {
	*readback.SectionReader
	obj  *minio.Object
	size int64
}

func (o object) Size() int64 {
	return o.size
}

func (o object) Close() error {
	return o.obj.Close()
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

// Open returns the object as a blob.Blob. Each ReadBack call results in a
// ranged GET request, so the caller should wrap it in a readback.Reader with
// a reasonably large buffer.
func (s *Store) Open(ctx context.Context, key string) (blob.Blob, error) {
	obj, err := s.cl.GetObject(ctx, s.bucketName, s.objectPrefix+key, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blob.ErrNoSuchBlob
		}
		return nil, exterrors.WithFields(err, map[string]interface{}{"key": key})
	}

	// GetObject is lazy, Stat is the first request that reaches the server.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, blob.ErrNoSuchBlob
		}
		return nil, exterrors.WithFields(err, map[string]interface{}{"key": key})
	}

	return object{
		SectionReader: readback.NewSectionReader(obj, 0, info.Size),
		obj:           obj,
		size:          info.Size,
	}, nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	partSize := uint64(0)
	if size == blob.UnknownBlobSize {
		// Without this, minio-go will allocate 500 MiB buffer which
		// is a little too much.
		// https://github.com/minio/minio-go/issues/1478
		partSize = 5 * 1024 * 1024 /* 5 MiB, the S3 minimum */
	}
	_, err := s.cl.PutObject(ctx, s.bucketName, s.objectPrefix+key, r, size, minio.PutObjectOptions{
		PartSize: partSize,
	})
	if err != nil {
		return exterrors.WithFields(fmt.Errorf("s3 PutObject: %w", err), map[string]interface{}{"key": key})
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	var lastErr error
	for _, k := range keys {
		err := s.cl.RemoveObject(ctx, s.bucketName, s.objectPrefix+k, minio.RemoveObjectOptions{})
		if err != nil && !isNotFound(err) {
			s.log.Error("failed to delete object", err, "key", s.objectPrefix+k)
			lastErr = err
		}
	}
	return lastErr
}

var _ blob.Store = &Store{}

