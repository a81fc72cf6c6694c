package processing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mareon-hq/mareon-backend/constants"
	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeJobRepo implements repository.ParsingJobRepository in memory, with the
// same unique-constraint behavior as the real table.
type fakeJobRepo struct {
	jobs      []*entity.ParsingJob
	createErr error
}

func (r *fakeJobRepo) Create(_ context.Context, job *entity.ParsingJob) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, j := range r.jobs {
		if job.MessageID != nil && j.MessageID != nil && *j.MessageID == *job.MessageID {
			return common.ErrAlreadyExists
		}
		if j.DocumentFileID == job.DocumentFileID && !j.Status.IsTerminal() {
			return common.ErrAlreadyExists
		}
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *fakeJobRepo) ExistsForMessage(_ context.Context, messageID string) (bool, error) {
	for _, j := range r.jobs {
		if j.MessageID != nil && *j.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeJobRepo) ExistsActiveForFile(_ context.Context, fileID uuid.UUID) (bool, error) {
	for _, j := range r.jobs {
		if j.DocumentFileID == fileID && !j.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func newJobRequest() JobRequest {
	docID := uuid.New()
	return JobRequest{
		OrgID:          uuid.New(),
		DocumentID:     &docID,
		DocumentFileID: uuid.New(),
		MessageID:      "msg-1",
		PublishTime:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		SourceBucket:   "uploads-bucket",
		SourceObject:   "org-uploads/o/documents/d/files/f/source",
		ResultPrefix:   "org-uploads/o/documents/d/files/f/parsing/",
	}
}

func TestCreateJobIfAbsent(t *testing.T) {
	svc := NewService(testLogger())
	repo := &fakeJobRepo{}
	req := newJobRequest()

	job, err := svc.CreateJobIfAbsent(context.Background(), repo, req)
	if err != nil {
		t.Fatalf("CreateJobIfAbsent: %v", err)
	}
	if job == nil {
		t.Fatal("no job created")
	}

	if job.Status != constants.JobStatusPending {
		t.Errorf("Status = %s, want PENDING", job.Status)
	}
	if job.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", job.MaxAttempts, DefaultMaxAttempts)
	}
	if job.MessageID == nil || *job.MessageID != "msg-1" {
		t.Errorf("MessageID = %v", job.MessageID)
	}
	if job.PublishTime == nil || !job.PublishTime.Equal(req.PublishTime) {
		t.Errorf("PublishTime = %v", job.PublishTime)
	}
	if job.SourceObject == nil || *job.SourceObject != "gs://uploads-bucket/org-uploads/o/documents/d/files/f/source" {
		t.Errorf("SourceObject = %v", job.SourceObject)
	}
	if job.ResultBucket == nil || *job.ResultBucket != "uploads-bucket" {
		t.Errorf("ResultBucket = %v", job.ResultBucket)
	}
	if job.ResultPrefix == nil || *job.ResultPrefix != req.ResultPrefix {
		t.Errorf("ResultPrefix = %v", job.ResultPrefix)
	}
	if len(repo.jobs) != 1 {
		t.Errorf("repo holds %d jobs, want 1", len(repo.jobs))
	}
}

func TestCreateJobIfAbsentDuplicateMessage(t *testing.T) {
	svc := NewService(testLogger())
	repo := &fakeJobRepo{}
	req := newJobRequest()

	if _, err := svc.CreateJobIfAbsent(context.Background(), repo, req); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// Same delivery redelivered: same message id, even for another file.
	dup := req
	dup.DocumentFileID = uuid.New()
	job, err := svc.CreateJobIfAbsent(context.Background(), repo, dup)
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if job != nil {
		t.Error("duplicate message id created a second job")
	}
	if len(repo.jobs) != 1 {
		t.Errorf("repo holds %d jobs, want 1", len(repo.jobs))
	}
}

func TestCreateJobIfAbsentActiveJobForFile(t *testing.T) {
	svc := NewService(testLogger())
	repo := &fakeJobRepo{}
	req := newJobRequest()

	if _, err := svc.CreateJobIfAbsent(context.Background(), repo, req); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// Different delivery, same file, first job still active.
	second := req
	second.MessageID = "msg-2"
	job, err := svc.CreateJobIfAbsent(context.Background(), repo, second)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if job != nil {
		t.Error("second active job created for the same file")
	}
}

func TestCreateJobIfAbsentAfterTerminalJob(t *testing.T) {
	svc := NewService(testLogger())
	repo := &fakeJobRepo{}
	req := newJobRequest()

	msgID := "msg-old"
	repo.jobs = append(repo.jobs, &entity.ParsingJob{
		ID:             uuid.New(),
		OrgID:          req.OrgID,
		DocumentFileID: req.DocumentFileID,
		Status:         constants.JobStatusFailed,
		MessageID:      &msgID,
	})

	job, err := svc.CreateJobIfAbsent(context.Background(), repo, req)
	if err != nil {
		t.Fatalf("CreateJobIfAbsent: %v", err)
	}
	if job == nil {
		t.Error("a terminal job must not block a new one for the same file")
	}
}

func TestCreateJobIfAbsentLostRace(t *testing.T) {
	// Both application checks pass, then the insert hits the unique
	// constraint because a concurrent transaction won. That is a no-op.
	svc := NewService(testLogger())
	repo := &fakeJobRepo{createErr: common.ErrAlreadyExists}

	job, err := svc.CreateJobIfAbsent(context.Background(), repo, newJobRequest())
	if err != nil {
		t.Fatalf("lost race must not surface an error, got %v", err)
	}
	if job != nil {
		t.Error("lost race returned a job")
	}
}

func TestCreateJobIfAbsentCreateFailure(t *testing.T) {
	svc := NewService(testLogger())
	dbErr := errors.New("connection reset")
	repo := &fakeJobRepo{createErr: dbErr}

	_, err := svc.CreateJobIfAbsent(context.Background(), repo, newJobRequest())
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want the underlying database error", err)
	}
}

func TestCreateJobIfAbsentWithoutMessageID(t *testing.T) {
	svc := NewService(testLogger())
	repo := &fakeJobRepo{}
	req := newJobRequest()
	req.MessageID = ""
	req.PublishTime = time.Time{}

	job, err := svc.CreateJobIfAbsent(context.Background(), repo, req)
	if err != nil {
		t.Fatalf("CreateJobIfAbsent: %v", err)
	}
	if job == nil {
		t.Fatal("no job created")
	}
	if job.MessageID != nil {
		t.Errorf("MessageID = %v, want nil", job.MessageID)
	}
	if job.PublishTime != nil {
		t.Errorf("PublishTime = %v, want nil", job.PublishTime)
	}
}
