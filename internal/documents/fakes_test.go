package documents

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/entity"
	"github.com/mareon-hq/mareon-backend/internal/processing"
	"github.com/mareon-hq/mareon-backend/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJobService() *processing.Service {
	return processing.NewService(testLogger())
}

// In-memory repositories mirroring the contracts of the pgx-backed ones,
// including the conditional-update and unique-constraint behavior.

type fakeDocRepo struct {
	docs map[uuid.UUID]*entity.Document
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[uuid.UUID]*entity.Document)}
}

func (r *fakeDocRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeDocRepo) Create(_ context.Context, doc *entity.Document) error {
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

type fakeFileRepo struct {
	files  map[uuid.UUID]*entity.DocumentFile
	getErr error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[uuid.UUID]*entity.DocumentFile)}
}

func (r *fakeFileRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.DocumentFile, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	f, ok := r.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) Create(_ context.Context, f *entity.DocumentFile) error {
	cp := *f
	r.files[f.ID] = &cp
	return nil
}

func (r *fakeFileRepo) ConfirmSource(_ context.Context, id uuid.UUID, observed repository.ObservedUpload) (bool, error) {
	f, ok := r.files[id]
	if !ok || f.SourceURI != nil {
		return false, nil
	}
	uri := observed.SourceURI
	f.SourceURI = &uri
	f.FileSizeBytes = observed.FileSizeBytes
	if observed.MimeType != nil {
		f.MimeType = observed.MimeType
	}
	if observed.ContentMD5B64 != nil {
		f.ContentMD5B64 = observed.ContentMD5B64
	}
	f.UploadedAt = time.Now().UTC()
	return true, nil
}

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

// fakeTxRunner hands the same in-memory repositories to every transaction
// and counts commits and rollbacks. It does not undo mutations on rollback;
// tests assert on the outcome counters instead.
type fakeTxRunner struct {
	docs  *fakeDocRepo
	files *fakeFileRepo
	jobs  *fakeJobRepo

	commits   int
	rollbacks int
}

func newFakeTxRunner() *fakeTxRunner {
	return &fakeTxRunner{
		docs:  newFakeDocRepo(),
		files: newFakeFileRepo(),
		jobs:  &fakeJobRepo{},
	}
}

func (r *fakeTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, uow repository.UnitOfWork) error) error {
	uow := repository.UnitOfWork{
		Documents:   r.docs,
		Files:       r.files,
		ParsingJobs: r.jobs,
	}
	if err := fn(ctx, uow); err != nil {
		r.rollbacks++
		return err
	}
	r.commits++
	return nil
}
