// Package runstore provides run-scoped artifact storage on NATS JetStream.
// Every generation run gets its own object store bucket holding the per
// sentence clips and the final archive, expiring together when the run's
// retention window lapses.
package runstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/sentence-clips-service/internal/core"
)

// bucketPrefix namespaces run buckets inside JetStream so unrelated object
// stores on the same server never collide with runs.
const bucketPrefix = "SENTENCE_CLIPS_RUN_"

var (
	// ErrRunNotFound indicates that a run's bucket does not exist, usually
	// because the run expired or the identifier is unknown.
	ErrRunNotFound = errors.New("run not found or expired")
	// ErrObjectNotFound indicates that a run holds no artifact under the
	// requested name.
	ErrObjectNotFound = errors.New("object not found")
)

// NatsOpener creates and reattaches run buckets. It implements
// core.RunStoreOpener on a shared JetStream context.
type NatsOpener struct {
	jetstreamContext nats.JetStreamContext
	ttl              time.Duration
	log              *logger.Logger
}

// NewNatsOpener creates an opener whose run buckets expire after ttl. A zero
// ttl keeps runs until they are destroyed explicitly.
func NewNatsOpener(
	jetstreamContext nats.JetStreamContext,
	ttl time.Duration,
	log *logger.Logger,
) *NatsOpener {
	return &NatsOpener{
		jetstreamContext: jetstreamContext,
		ttl:              ttl,
		log:              log,
	}
}

// Open creates the bucket for a fresh run.
func (o *NatsOpener) Open(_ context.Context, runID string) (core.RunStore, error) {
	bucketName := bucketPrefix + runID

	// Use a "create-first" approach.
	store, err := o.jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Clips and archive for run %s.", runID),
		TTL:         o.ttl,
		MaxBytes:    0,
		Storage:     nats.MemoryStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})

	// If the bucket already exists, bind to it.
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			store, err = o.jetstreamContext.ObjectStore(bucketName)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to bind to existing run bucket '%s': %w",
					bucketName,
					err,
				)
			}
		} else {
			// For any other error, fail.
			return nil, fmt.Errorf(
				"failed to create run bucket '%s': %w",
				bucketName,
				err,
			)
		}
	}

	o.log.Info("Opened run bucket %s", bucketName)

	return &NatsRunStore{
		jetstreamContext: o.jetstreamContext,
		bucket:           bucketName,
		store:            store,
	}, nil
}

// Bind reattaches to an existing run. Unknown and expired runs are
// indistinguishable here; both surface as ErrRunNotFound.
func (o *NatsOpener) Bind(_ context.Context, runID string) (core.RunStore, error) {
	bucketName := bucketPrefix + runID

	store, err := o.jetstreamContext.ObjectStore(bucketName)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %v", ErrRunNotFound, runID, err)
	}

	return &NatsRunStore{
		jetstreamContext: o.jetstreamContext,
		bucket:           bucketName,
		store:            store,
	}, nil
}

// NatsRunStore implements the core.RunStore interface on one run's bucket.
type NatsRunStore struct {
	jetstreamContext nats.JetStreamContext
	bucket           string
	store            nats.ObjectStore
}

// Put saves an artifact under its file name.
func (s *NatsRunStore) Put(_ context.Context, name string, data []byte) error {
	reader := bytes.NewReader(data)

	_, err := s.store.Put(&nats.ObjectMeta{
		Name:        name,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, reader)
	if err != nil {
		return fmt.Errorf(
			"failed to put object '%s' to bucket '%s': %w",
			name,
			s.bucket,
			err,
		)
	}

	return nil
}

// Get retrieves an artifact by file name.
func (s *NatsRunStore) Get(_ context.Context, name string) ([]byte, error) {
	obj, err := s.store.Get(name)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrObjectNotFound, name)
		}

		return nil, fmt.Errorf(
			"failed to get object '%s' from bucket '%s': %w",
			name,
			s.bucket,
			err,
		)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", name, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", name, closeErr)
	}

	return data, nil
}

// Delete removes one artifact from the run.
func (s *NatsRunStore) Delete(_ context.Context, name string) error {
	err := s.store.Delete(name)
	if err != nil {
		return fmt.Errorf(
			"failed to delete object '%s' from bucket '%s': %w",
			name,
			s.bucket,
			err,
		)
	}

	return nil
}

// Destroy removes the run's bucket and every artifact in it.
func (s *NatsRunStore) Destroy(_ context.Context) error {
	err := s.jetstreamContext.DeleteObjectStore(s.bucket)
	if err != nil {
		return fmt.Errorf("failed to delete run bucket '%s': %w", s.bucket, err)
	}

	return nil
}
