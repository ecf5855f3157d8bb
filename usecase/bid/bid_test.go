package bid

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/repository"
)

// memUserRepo is a simple in-memory user store for testing.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo(users ...*domain.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) Upsert(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func newMemTaskRepo(tasks ...*domain.Task) *memTaskRepo {
	r := &memTaskRepo{tasks: make(map[string]*domain.Task)}
	for _, task := range tasks {
		r.tasks[task.ID] = task
	}
	return r
}

func (r *memTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (r *memTaskRepo) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	return nil, nil
}

func (r *memTaskRepo) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Status = domain.TaskOpen
	r.tasks[task.ID] = task
	return task, nil
}

func (r *memTaskRepo) AdvanceStatus(ctx context.Context, id string, from, to domain.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if task.Status != from {
		return domain.ErrInvalidTransition
	}
	task.Status = to
	return nil
}

// memBidRepo mirrors the storage-level uniqueness guarantees: one active
// bid per (task, tiler) and one accepted bid per task, enforced under a
// single lock so concurrent submissions race realistically.
type memBidRepo struct {
	mu   sync.Mutex
	bids map[string]*domain.Bid
}

func newMemBidRepo() *memBidRepo {
	return &memBidRepo{bids: make(map[string]*domain.Bid)}
}

func (r *memBidRepo) GetByID(ctx context.Context, id string) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bid, ok := r.bids[id]
	if !ok {
		return nil, domain.ErrBidNotFound
	}
	copied := *bid
	return &copied, nil
}

func (r *memBidRepo) ListForTask(ctx context.Context, taskID string) ([]domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Bid
	for _, bid := range r.bids {
		if bid.TaskID == taskID {
			out = append(out, *bid)
		}
	}
	return out, nil
}

func (r *memBidRepo) ListForBidder(ctx context.Context, tilerID string) ([]domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Bid
	for _, bid := range r.bids {
		if bid.TilerID == tilerID {
			out = append(out, *bid)
		}
	}
	return out, nil
}

func (r *memBidRepo) Create(ctx context.Context, bid *domain.Bid) (*domain.Bid, error) {
	if bid.Amount <= 0 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "bid amount must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bids {
		if existing.TaskID == bid.TaskID && existing.TilerID == bid.TilerID && existing.Status == domain.BidActive {
			return nil, domain.ErrDuplicateActiveBid
		}
	}
	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	bid.Status = domain.BidActive
	r.bids[bid.ID] = bid
	copied := *bid
	return &copied, nil
}

func (r *memBidRepo) UpdateStatus(ctx context.Context, id string, from []domain.BidStatus, to domain.BidStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bid, ok := r.bids[id]
	if !ok {
		return domain.ErrBidNotFound
	}
	for _, s := range from {
		if bid.Status == s {
			if to == domain.BidAccepted {
				for _, other := range r.bids {
					if other.TaskID == bid.TaskID && other.ID != id && other.Status == domain.BidAccepted {
						return domain.ErrInvalidTransition
					}
				}
			}
			bid.Status = to
			return nil
		}
	}
	return domain.ErrInvalidTransition
}

func (r *memBidRepo) RejectOtherActive(ctx context.Context, taskID, keepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bid := range r.bids {
		if bid.TaskID == taskID && bid.ID != keepID && bid.Status == domain.BidActive {
			bid.Status = domain.BidRejected
		}
	}
	return nil
}

func newFixture() (*UseCase, *memTaskRepo, *memBidRepo) {
	users := newMemUserRepo(
		&domain.User{ID: "owner", Role: domain.RoleHomeowner, Status: "active"},
		&domain.User{ID: "tiler-a", Role: domain.RoleTiler, Status: "active"},
		&domain.User{ID: "tiler-b", Role: domain.RoleTiler, Status: "active"},
		&domain.User{ID: "tiler-owner", Role: domain.RoleTiler, Status: "active"},
	)
	tasks := newMemTaskRepo(
		&domain.Task{ID: "task-1", OwnerID: "owner", Status: domain.TaskOpen},
		&domain.Task{ID: "task-awarded", OwnerID: "owner", Status: domain.TaskAwarded},
		&domain.Task{ID: "task-own", OwnerID: "tiler-owner", Status: domain.TaskOpen},
	)
	bids := newMemBidRepo()
	return New(bids, tasks, users, nil), tasks, bids
}

func TestSubmit(t *testing.T) {
	uc, _, _ := newFixture()
	ctx := context.Background()

	bid, err := uc.Submit(ctx, "tiler-a", "task-1", 150, "can start monday")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if bid.Status != domain.BidActive {
		t.Errorf("expected active bid, got %s", bid.Status)
	}
	if bid.TaskID != "task-1" || bid.TilerID != "tiler-a" {
		t.Error("bid keyed to the wrong task or bidder")
	}
}

func TestSubmitRejectsNonTiler(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Submit(context.Background(), "owner", "task-1", 100, "")
	if !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestSubmitRejectsUnknownCaller(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Submit(context.Background(), "ghost", "task-1", 100, "")
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSubmitRejectsNonPositiveAmount(t *testing.T) {
	uc, _, bids := newFixture()

	for _, amount := range []float64{0, -50} {
		_, err := uc.Submit(context.Background(), "tiler-a", "task-1", amount, "")
		if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
			t.Fatalf("amount %v: expected ValidationError, got %v", amount, err)
		}
	}
	if len(bids.bids) != 0 {
		t.Error("rejected submissions must create no record")
	}
}

func TestSubmitRejectsMissingTask(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Submit(context.Background(), "tiler-a", "no-such-task", 100, "")
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSubmitRejectsClosedBidding(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Submit(context.Background(), "tiler-a", "task-awarded", 100, "")
	if !domain.IsDomainError(err, domain.ErrCodeTaskNotOpen) {
		t.Fatalf("expected TaskNotOpen, got %v", err)
	}
}

func TestSubmitRejectsSelfBid(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Submit(context.Background(), "tiler-owner", "task-own", 100, "")
	if !domain.IsDomainError(err, domain.ErrCodeSelfBid) {
		t.Fatalf("expected SelfBidForbidden, got %v", err)
	}
}

func TestSubmitRejectsDuplicateActiveBid(t *testing.T) {
	uc, _, _ := newFixture()
	ctx := context.Background()

	if _, err := uc.Submit(ctx, "tiler-a", "task-1", 100, ""); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	_, err := uc.Submit(ctx, "tiler-a", "task-1", 90, "lower offer")
	if !domain.IsDomainError(err, domain.ErrCodeDuplicateActiveBid) {
		t.Fatalf("expected DuplicateActiveBid, got %v", err)
	}
}

func TestWithdrawFreesTheSlot(t *testing.T) {
	uc, _, _ := newFixture()
	ctx := context.Background()

	first, err := uc.Submit(ctx, "tiler-a", "task-1", 100, "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	withdrawn, err := uc.Withdraw(ctx, "tiler-a", first.ID)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if withdrawn.Status != domain.BidWithdrawn {
		t.Errorf("expected withdrawn, got %s", withdrawn.Status)
	}

	second, err := uc.Submit(ctx, "tiler-a", "task-1", 95, "")
	if err != nil {
		t.Fatalf("resubmission after withdraw failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("resubmission must be a fresh bid, not a reopened one")
	}
}

func TestWithdrawForeignBidForbidden(t *testing.T) {
	uc, _, _ := newFixture()
	ctx := context.Background()

	bid, err := uc.Submit(ctx, "tiler-a", "task-1", 100, "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	_, err = uc.Withdraw(ctx, "tiler-b", bid.ID)
	if !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestRequestRevision(t *testing.T) {
	uc, _, _ := newFixture()
	ctx := context.Background()

	bid, err := uc.Submit(ctx, "tiler-a", "task-1", 100, "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := uc.RequestRevision(ctx, "tiler-b", bid.ID); !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("expected Forbidden for non-owner, got %v", err)
	}

	revised, err := uc.RequestRevision(ctx, "owner", bid.ID)
	if err != nil {
		t.Fatalf("request revision failed: %v", err)
	}
	if revised.Status != domain.BidRevisionRequested {
		t.Errorf("expected revision_requested, got %s", revised.Status)
	}

	if _, err := uc.Submit(ctx, "tiler-a", "task-1", 110, "revised"); err != nil {
		t.Fatalf("resubmission after revision request failed: %v", err)
	}
}

func TestListForTaskHiddenFromOtherTilers(t *testing.T) {
	uc, _, _ := newFixture()
	ctx := context.Background()

	if _, err := uc.Submit(ctx, "tiler-a", "task-1", 100, ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := uc.ListForTask(ctx, "tiler-b", "task-1"); !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}

	bids, err := uc.ListForTask(ctx, "owner", "task-1")
	if err != nil {
		t.Fatalf("owner list failed: %v", err)
	}
	if len(bids) != 1 {
		t.Errorf("expected 1 bid, got %d", len(bids))
	}
}

func TestConcurrentSubmissionsSingleActiveBid(t *testing.T) {
	uc, _, bids := newFixture()

	const attempts = 20
	var wg sync.WaitGroup
	wg.Add(attempts)
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := uc.Submit(context.Background(), "tiler-a", "task-1", 100, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, duplicates int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case domain.IsDomainError(err, domain.ErrCodeDuplicateActiveBid):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly one winning submission, got %d", successes)
	}
	if duplicates != attempts-1 {
		t.Errorf("expected %d duplicate rejections, got %d", attempts-1, duplicates)
	}

	active := 0
	for _, bid := range bids.bids {
		if bid.Status == domain.BidActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("expected exactly one active bid stored, got %d", active)
	}
}
