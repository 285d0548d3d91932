package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultPrefix is the object prefix for run reports.
const DefaultPrefix = "runs/"

// CloudStorageStore implements Store using Google Cloud Storage with JSON format
type CloudStorageStore struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewCloudStorageStore creates a new Cloud Storage store
func NewCloudStorageStore(ctx context.Context, bucketName string, opts ...option.ClientOption) (*CloudStorageStore, error) {
	if bucketName == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &CloudStorageStore{
		client:     client,
		bucketName: bucketName,
		prefix:     DefaultPrefix,
	}, nil
}

// objectName sorts chronologically: start time first, run id as tie-breaker.
func (s *CloudStorageStore) objectName(r *Report) string {
	return s.prefix + r.StartedAt.UTC().Format("20060102T150405.000000000Z") + "_" + r.ID + ".json"
}

// Save writes the report as a JSON object.
func (s *CloudStorageStore) Save(ctx context.Context, r *Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}

	writer := s.client.Bucket(s.bucketName).Object(s.objectName(r)).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("writing object data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing object writer: %w", err)
	}

	return nil
}

// List returns the newest reports first.
func (s *CloudStorageStore) List(ctx context.Context, limit int) ([]Report, error) {
	names, err := s.objectNames(ctx)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if limit <= 0 || limit > len(names) {
		limit = len(names)
	}

	reports := make([]Report, 0, limit)
	for _, name := range names[:limit] {
		r, err := s.read(ctx, name)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

// Get finds a report by run id.
func (s *CloudStorageStore) Get(ctx context.Context, id string) (*Report, error) {
	names, err := s.objectNames(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if strings.HasSuffix(name, "_"+id+".json") {
			return s.read(ctx, name)
		}
	}
	return nil, ErrNotFound
}

func (s *CloudStorageStore) objectNames(ctx context.Context) ([]string, error) {
	it := s.client.Bucket(s.bucketName).Objects(ctx, &storage.Query{Prefix: s.prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		if strings.HasSuffix(attrs.Name, ".json") {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}

func (s *CloudStorageStore) read(ctx context.Context, name string) (*Report, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening object reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading object data: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshaling run report %s: %w", name, err)
	}
	return &r, nil
}

// Close closes the Cloud Storage client
func (s *CloudStorageStore) Close() error {
	return s.client.Close()
}
