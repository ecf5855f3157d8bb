package award

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/repository"
)

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
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

type memBidRepo struct {
	mu   sync.Mutex
	bids map[string]*domain.Bid
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
	return nil, nil
}

func (r *memBidRepo) Create(ctx context.Context, bid *domain.Bid) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids[bid.ID] = bid
	return bid, nil
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
				// Single accepted bid per task, like the storage index.
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

type convKey struct {
	task      string
	homeowner string
	tiler     string
}

type memConversationRepo struct {
	mu    sync.Mutex
	convs map[convKey]*domain.Conversation

	// failFindOrCreate simulates a transport failure on the provisioning
	// step; it decrements on each attempt.
	failFindOrCreate int
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{convs: make(map[convKey]*domain.Conversation)}
}

func (r *memConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conv := range r.convs {
		if conv.ID == id {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (r *memConversationRepo) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return nil, nil
}

func (r *memConversationRepo) FindOrCreate(ctx context.Context, homeownerID, tilerID string, taskID *string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFindOrCreate > 0 {
		r.failFindOrCreate--
		return nil, errors.New("connection reset")
	}

	key := convKey{homeowner: homeownerID, tiler: tilerID}
	if taskID != nil {
		key.task = *taskID
	}
	if conv, ok := r.convs[key]; ok {
		copied := *conv
		return &copied, nil
	}
	conv := &domain.Conversation{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		HomeownerID: homeownerID,
		TilerID:     tilerID,
	}
	r.convs[key] = conv
	copied := *conv
	return &copied, nil
}

func (r *memConversationRepo) AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	return msg, nil
}

func (r *memConversationRepo) ListMessages(ctx context.Context, conversationID string, filter repository.MessageFilter) ([]domain.Message, error) {
	return nil, nil
}

func newFixture() (*UseCase, *memTaskRepo, *memBidRepo, *memConversationRepo) {
	tasks := &memTaskRepo{tasks: map[string]*domain.Task{
		"task-1": {ID: "task-1", OwnerID: "owner", Status: domain.TaskOpen},
		"task-2": {ID: "task-2", OwnerID: "owner", Status: domain.TaskOpen},
	}}
	bids := &memBidRepo{bids: map[string]*domain.Bid{
		"bid-a": {ID: "bid-a", TaskID: "task-1", TilerID: "tiler-a", Amount: 100, Status: domain.BidActive},
		"bid-b": {ID: "bid-b", TaskID: "task-1", TilerID: "tiler-b", Amount: 90, Status: domain.BidActive},
		"bid-x": {ID: "bid-x", TaskID: "task-2", TilerID: "tiler-a", Amount: 50, Status: domain.BidActive},
	}}
	convs := newMemConversationRepo()
	return New(bids, tasks, convs, nil), tasks, bids, convs
}

func TestAcceptAwardsTaskAndProvisionsConversation(t *testing.T) {
	uc, tasks, bids, _ := newFixture()
	ctx := context.Background()

	result, err := uc.Accept(ctx, "owner", "task-1", "bid-b")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if result.Task.Status != domain.TaskAwarded {
		t.Errorf("expected awarded task, got %s", result.Task.Status)
	}
	if result.Bid.Status != domain.BidAccepted {
		t.Errorf("expected accepted bid, got %s", result.Bid.Status)
	}
	if result.Conversation == nil || result.Conversation.ID == "" {
		t.Fatal("expected a provisioned conversation")
	}
	if result.Conversation.HomeownerID != "owner" || result.Conversation.TilerID != "tiler-b" {
		t.Error("conversation joins the wrong parties")
	}

	if tasks.tasks["task-1"].Status != domain.TaskAwarded {
		t.Error("task row not awarded")
	}
	if bids.bids["bid-b"].Status != domain.BidAccepted {
		t.Error("bid row not accepted")
	}
	if bids.bids["bid-a"].Status != domain.BidRejected {
		t.Errorf("competing bid should be auto-rejected, got %s", bids.bids["bid-a"].Status)
	}
}

func TestAcceptForbiddenForNonOwner(t *testing.T) {
	uc, _, bids, _ := newFixture()

	_, err := uc.Accept(context.Background(), "tiler-a", "task-1", "bid-a")
	if !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if bids.bids["bid-a"].Status != domain.BidActive {
		t.Error("rejected accept must mutate nothing")
	}
}

func TestAcceptRejectsBidTaskMismatch(t *testing.T) {
	uc, _, _, _ := newFixture()

	_, err := uc.Accept(context.Background(), "owner", "task-1", "bid-x")
	if !domain.IsDomainError(err, domain.ErrCodeBidTaskMismatch) {
		t.Fatalf("expected BidTaskMismatch, got %v", err)
	}
}

func TestAcceptMissingEntities(t *testing.T) {
	uc, _, _, _ := newFixture()
	ctx := context.Background()

	if _, err := uc.Accept(ctx, "owner", "no-task", "bid-a"); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NotFound for missing task, got %v", err)
	}
	if _, err := uc.Accept(ctx, "owner", "task-1", "no-bid"); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NotFound for missing bid, got %v", err)
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	uc, _, _, _ := newFixture()
	ctx := context.Background()

	first, err := uc.Accept(ctx, "owner", "task-1", "bid-b")
	if err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	second, err := uc.Accept(ctx, "owner", "task-1", "bid-b")
	if err != nil {
		t.Fatalf("repeat accept must be a no-op, got %v", err)
	}
	if first.Conversation.ID != second.Conversation.ID {
		t.Error("repeat accept must return the same conversation")
	}
}

func TestSecondAwardAttemptFails(t *testing.T) {
	uc, _, bids, _ := newFixture()
	ctx := context.Background()

	if _, err := uc.Accept(ctx, "owner", "task-1", "bid-b"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	_, err := uc.Accept(ctx, "owner", "task-1", "bid-a")
	if !domain.IsDomainError(err, domain.ErrCodeInvalidTransition) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
	if bids.bids["bid-b"].Status != domain.BidAccepted {
		t.Error("winning bid must stay accepted")
	}
}

func TestConcurrentAcceptsSingleWinner(t *testing.T) {
	uc, tasks, bids, _ := newFixture()

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make([]error, 2)

	go func() {
		defer wg.Done()
		_, errs[0] = uc.Accept(context.Background(), "owner", "task-1", "bid-a")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = uc.Accept(context.Background(), "owner", "task-1", "bid-b")
	}()
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !domain.IsDomainError(err, domain.ErrCodeInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning accept, got %d", wins)
	}

	if tasks.tasks["task-1"].Status != domain.TaskAwarded {
		t.Error("task must end awarded")
	}
	var accepted int
	for _, bid := range bids.bids {
		if bid.TaskID == "task-1" && bid.Status == domain.BidAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("expected exactly one accepted bid, got %d", accepted)
	}
}

func TestAcceptRetriesAfterPartialFailure(t *testing.T) {
	uc, tasks, bids, convs := newFixture()
	ctx := context.Background()

	convs.failFindOrCreate = 1

	_, err := uc.Accept(ctx, "owner", "task-1", "bid-b")
	if err == nil {
		t.Fatal("expected the provisioning step to fail")
	}
	if !domain.IsDomainError(err, domain.ErrCodeInternal) {
		t.Fatalf("partial failure must surface as internal, got %v", err)
	}

	// Bid and task were already flipped; the re-run must complete the
	// missing step instead of erroring on the half-done state.
	if bids.bids["bid-b"].Status != domain.BidAccepted {
		t.Fatal("bid flip should have happened before the failure")
	}
	if tasks.tasks["task-1"].Status != domain.TaskAwarded {
		t.Fatal("task flip should have happened before the failure")
	}

	result, err := uc.Accept(ctx, "owner", "task-1", "bid-b")
	if err != nil {
		t.Fatalf("retry should complete the award: %v", err)
	}
	if result.Conversation == nil || result.Conversation.ID == "" {
		t.Fatal("retry must return the provisioned conversation")
	}
}
