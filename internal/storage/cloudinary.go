package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

// CloudinaryConfig holds credentials and upload tuning
type CloudinaryConfig struct {
	CloudName     string
	APIKey        string
	APISecret     string
	Folder        string
	UploadTimeout time.Duration
	DeleteTimeout time.Duration
	MaxRetries    uint64
}

var (
	ErrMissingCredentials = errors.New("cloudinary credentials are missing")
	ErrUploadFailed       = errors.New("failed to upload proof")
	ErrDeleteFailed       = errors.New("failed to delete proof")
)

// CloudinaryStore keeps proof photos in Cloudinary. The reference it returns is the public id.
type CloudinaryStore struct {
	client *cloudinary.Cloudinary
	cfg    CloudinaryConfig
	logger *zap.Logger
}

func ptrBool(b bool) *bool {
	return &b
}

func NewCloudinaryStore(cfg CloudinaryConfig, logger *zap.Logger) (*CloudinaryStore, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	logger.Info("Cloudinary proof store initialized", zap.String("folder", cfg.Folder))
	return &CloudinaryStore{client: cld, cfg: cfg, logger: logger}, nil
}

// publicID turns a storage key into a Cloudinary public id: folder prefixed, extension dropped
func (s *CloudinaryStore) publicID(key string) string {
	key = strings.TrimSuffix(key, path.Ext(key))
	if s.cfg.Folder == "" {
		return key
	}
	return path.Join(s.cfg.Folder, key)
}

func (s *CloudinaryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	params := uploader.UploadParams{
		PublicID:     s.publicID(key),
		Overwrite:    ptrBool(false),
		ResourceType: "image",
	}

	var result *uploader.UploadResult
	operation := func() error {
		var err error
		// the reader is rebuilt on every attempt since a failed upload may have consumed it
		result, err = s.client.Upload.Upload(ctx, bytes.NewReader(data), params)
		if err != nil {
			return err
		}
		if result.Error.Message != "" {
			return errors.New(result.Error.Message)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.cfg.UploadTimeout / 2
	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, s.cfg.MaxRetries), ctx),
		func(err error, d time.Duration) {
			s.logger.Warn("Upload attempt failed",
				zap.String("key", key),
				zap.Error(err),
				zap.Duration("backoff", d))
		},
	)
	if err != nil {
		s.logger.Error("All upload attempts failed",
			zap.String("key", key),
			zap.Uint64("retries", s.cfg.MaxRetries),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	s.logger.Info("Proof uploaded",
		zap.String("public_id", result.PublicID),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)),
		zap.Duration("duration", time.Since(startTime)))
	return result.PublicID, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeleteTimeout)
	defer cancel()

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     ref,
		ResourceType: "image",
	})
	if err != nil {
		s.logger.Error("Failed to delete proof", zap.String("public_id", ref), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("%w: %s", ErrDeleteFailed, result.Error.Message)
	}

	s.logger.Info("Proof deleted", zap.String("public_id", ref), zap.String("result", result.Result))
	return nil
}
