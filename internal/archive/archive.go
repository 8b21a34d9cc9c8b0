// Package archive exports finished weekly duty logs to S3-compatible storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/rotation"
)

var ErrDisabled = errors.New("archive not configured: S3 bucket or credentials missing")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	// Passphrase seals archives before upload when set.
	Passphrase string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type WeeklyLogs interface {
	ListWeek(companyID int64, weekStart string, kind model.ChoreKind) ([]model.WeeklyLogEntry, error)
}

type Records interface {
	Exists(companyID int64, weekStart string, kind model.ChoreKind) (bool, error)
	Create(companyID int64, weekStart string, kind model.ChoreKind, key string, entries int) (*model.Archive, error)
}

type Companies interface {
	List() ([]model.Company, error)
}

// Document is the uploaded form of one week's log.
type Document struct {
	CompanyID  int64                  `json:"company_id"`
	WeekStart  string                 `json:"week_start"`
	Kind       model.ChoreKind        `json:"kind"`
	ExportedAt time.Time              `json:"exported_at"`
	Entries    []model.WeeklyLogEntry `json:"entries"`
}

type Exporter struct {
	cfg       S3Config
	client    s3Client
	logs      WeeklyLogs
	records   Records
	companies Companies
	now       func() time.Time
	logger    *slog.Logger
}

// NewExporter creates an exporter. Without a complete S3 configuration the
// exporter is disabled and every export returns ErrDisabled.
func NewExporter(cfg S3Config, logs WeeklyLogs, records Records, companies Companies, logger *slog.Logger) *Exporter {
	e := &Exporter{
		cfg:       cfg,
		logs:      logs,
		records:   records,
		companies: companies,
		now:       time.Now,
		logger:    logger,
	}
	if cfg.complete() {
		e.client = newS3Client(cfg)
	}
	return e
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (e *Exporter) Enabled() bool {
	return e.client != nil
}

// ExportWeek uploads one week's log for a company and kind. It returns nil
// without uploading when the week was already archived or has no entries.
func (e *Exporter) ExportWeek(ctx context.Context, companyID int64, weekStart string, kind model.ChoreKind) (*model.Archive, error) {
	if e.client == nil {
		return nil, ErrDisabled
	}

	done, err := e.records.Exists(companyID, weekStart, kind)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, nil
	}

	entries, err := e.logs.ListWeek(companyID, weekStart, kind)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(Document{
		CompanyID:  companyID,
		WeekStart:  weekStart,
		Kind:       kind,
		ExportedAt: e.now().UTC(),
		Entries:    entries,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal archive: %w", err)
	}

	key := fmt.Sprintf("%s%d/%s/%s-%s.json", e.cfg.Prefix, companyID, weekStart, kind, uuid.NewString())
	contentType := "application/json"
	if e.cfg.Passphrase != "" {
		if body, err = Seal(body, e.cfg.Passphrase); err != nil {
			return nil, fmt.Errorf("seal archive: %w", err)
		}
		key += ".enc"
		contentType = "application/octet-stream"
	}

	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	rec, err := e.records.Create(companyID, weekStart, kind, key, len(entries))
	if err != nil {
		return nil, fmt.Errorf("record archive: %w", err)
	}
	e.logger.Info("weekly log archived", "company_id", companyID, "week_start", weekStart, "kind", kind, "key", key, "entries", len(entries))
	return rec, nil
}

// ExportPreviousWeek archives last week's logs of every company and kind.
// It keeps going after a failure and returns all errors joined.
func (e *Exporter) ExportPreviousWeek(ctx context.Context) (int, error) {
	if e.client == nil {
		return 0, ErrDisabled
	}
	companies, err := e.companies.List()
	if err != nil {
		return 0, err
	}

	weekStart := rotation.WeekStart(e.now().AddDate(0, 0, -7))
	exported := 0
	var errs []error
	for _, c := range companies {
		for _, kind := range model.ChoreKinds {
			if err := ctx.Err(); err != nil {
				return exported, err
			}
			rec, err := e.ExportWeek(ctx, c.ID, weekStart, kind)
			if err != nil {
				errs = append(errs, fmt.Errorf("company %d %s: %w", c.ID, kind, err))
				continue
			}
			if rec != nil {
				exported++
			}
		}
	}
	return exported, errors.Join(errs...)
}
