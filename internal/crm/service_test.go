// internal/crm/service_test.go
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"intake-crm/internal/common/database"
	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/common/logger"
	"intake-crm/internal/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// memStore is an in-memory Store with the same uniqueness rules as the table.
type memStore struct {
	mu      sync.Mutex
	records map[string]*models.CRMRecord

	// loseRace hides existing records from the pre-insert lookup.
	loseRace bool
	err      error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*models.CRMRecord{}}
}

func (m *memStore) InsertIfAbsent(ctx context.Context, rec *models.CRMRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, existing := range m.records {
		if existing.ApplicationID == rec.ApplicationID {
			return false, nil
		}
		if existing.TransactionID == rec.TransactionID {
			return false, &pq.Error{Code: database.UniqueViolation, Constraint: database.CRMTransactionIDKey}
		}
	}
	stored := *rec
	m.records[rec.ID] = &stored
	return true, nil
}

func (m *memStore) FindByID(ctx context.Context, id string) (*models.CRMRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if rec, ok := m.records[id]; ok {
		out := *rec
		return &out, nil
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) FindByApplicationID(ctx context.Context, applicationID string) (*models.CRMRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.loseRace {
		return nil, ErrRecordNotFound
	}
	for _, rec := range m.records {
		if rec.ApplicationID == applicationID {
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) FindByApplicationIDs(ctx context.Context, applicationIDs []string) ([]models.CRMRecord, error) {
	out := make([]models.CRMRecord, 0, len(applicationIDs))
	for _, appID := range applicationIDs {
		if rec, err := m.FindByApplicationID(ctx, appID); err == nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memStore) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	search := strings.ToLower(params.Search)
	matched := make([]models.CRMRecord, 0)
	for _, rec := range m.records {
		if params.Status != "" && rec.Status != params.Status {
			continue
		}
		if search != "" {
			haystack := strings.ToLower(rec.FirstName + " " + rec.LastName + " " + rec.Email)
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		matched = append(matched, *rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SubmittedAt.Equal(matched[j].SubmittedAt) {
			return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	start := params.offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return &QueryResult{Items: matched[start:end], Total: len(matched)}, nil
}

func (m *memStore) Update(ctx context.Context, id string, patch *Patch, now time.Time) (*models.CRMRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		rec.AssignedTo = *patch.AssignedTo
	}
	if patch.Notes != nil {
		rec.Notes = *patch.Notes
	}
	if patch.Tags != nil {
		rec.Tags = *patch.Tags
	}
	if patch.LastContactedAt.Set {
		rec.LastContactedAt = patch.LastContactedAt.Value
	}
	rec.UpdatedAt = now
	out := *rec
	return &out, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	indexed []string
	ids     []string
	total   int
	err     error
}

func (f *fakeSearcher) Index(ctx context.Context, rec *models.CRMRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, rec.ApplicationID)
	return nil
}

func (f *fakeSearcher) Search(ctx context.Context, params QueryParams) ([]string, int, error) {
	return f.ids, f.total, f.err
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
}

func newTestService(t *testing.T, store Store, search Searcher, notifier *Notifier) *Service {
	t.Helper()
	svc := NewService(&Config{}, store, search, notifier, logger.NewTestLogger(t))
	svc.now = func() time.Time { return testNow }
	svc.newID = sequentialIDs()
	return svc
}

func relayedBody(t *testing.T, applicationID string, overrides map[string]interface{}) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"id":            "intake-storage-id",
		"applicationId": applicationID,
		"transactionId": "txn-" + applicationID,
		"sessionId":     "sess-1",
		"firstName":     "Alice", "lastName": "Doe", "email": "A@B.com", "phone": "5551234567",
		"dateOfBirth": "1990-01-01", "street": "1 Main St", "city": "X", "state": "Y",
		"zipCode": "12345", "country": "US", "highestDegree": "Bachelor", "institution": "U",
		"graduationYear": 2015, "fieldOfStudy": "CS", "yearsOfExperience": 5,
		"skills":      []string{"go"},
		"thankYouUrl": "https://apply.example.com/application?applicationId=" + applicationID,
		"submittedAt": "2025-03-01T08:00:00Z",
	}
	for k, v := range overrides {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

// ==========================
// Ingest
// ==========================

func TestService_Ingest_CreatesRecord(t *testing.T) {
	store := newMemStore()
	search := &fakeSearcher{}
	email := &fakeEmailSender{}
	notifier := NewNotifier(NotifierConfig{Recipients: []string{"hr@example.com"}}, email, nil, logger.NewTestLogger(t))
	svc := newTestService(t, store, search, notifier)

	result, err := svc.Ingest(context.Background(), relayedBody(t, "app-1", nil))

	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "app-1", result.ApplicationID)

	rec, err := store.FindByApplicationID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", rec.ID, "the CRM assigns its own storage id")
	assert.Equal(t, models.StatusNew, rec.Status)
	assert.Equal(t, "a@b.com", rec.Email)
	assert.Equal(t, []string{"go"}, rec.Skills)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), rec.SubmittedAt.UTC())
	assert.Equal(t, testNow, rec.CreatedAt)

	require.NoError(t, svc.Wait(context.Background()))
	assert.Equal(t, []string{"app-1"}, search.indexed)
	assert.Len(t, email.sent, 1)
}

func TestService_Ingest_DefaultsSubmittedAt(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil, nil)

	_, err := svc.Ingest(context.Background(), relayedBody(t, "app-1", map[string]interface{}{"submittedAt": nil}))
	require.NoError(t, err)

	rec, err := store.FindByApplicationID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, testNow, rec.SubmittedAt)
}

func TestService_Ingest_IsIdempotent(t *testing.T) {
	store := newMemStore()
	email := &fakeEmailSender{}
	notifier := NewNotifier(NotifierConfig{Recipients: []string{"hr@example.com"}}, email, nil, logger.NewTestLogger(t))
	svc := newTestService(t, store, nil, notifier)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, relayedBody(t, "app-1", nil))
	require.NoError(t, err)
	require.True(t, first.Created)

	rec, err := store.FindByApplicationID(ctx, "app-1")
	require.NoError(t, err)
	_, err = svc.Update(ctx, rec.ID, []byte(`{"status":"reviewed","notes":"strong"}`))
	require.NoError(t, err)

	second, err := svc.Ingest(ctx, relayedBody(t, "app-1", map[string]interface{}{"firstName": "Changed"}))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, "app-1", second.ApplicationID)

	assert.Len(t, store.records, 1)
	after, err := store.FindByApplicationID(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, after.Status)
	assert.Equal(t, "strong", after.Notes)
	assert.Equal(t, "Alice", after.FirstName)
	require.NoError(t, svc.Wait(ctx))
	assert.Len(t, email.sent, 1, "redelivery does not notify again")
}

type blockingSearcher struct {
	fakeSearcher
	release chan struct{}
}

func (b *blockingSearcher) Index(ctx context.Context, rec *models.CRMRecord) error {
	<-b.release
	return b.fakeSearcher.Index(ctx, rec)
}

func TestService_Ingest_DoesNotWaitForIndexOrNotify(t *testing.T) {
	search := &blockingSearcher{release: make(chan struct{})}
	email := &fakeEmailSender{}
	notifier := NewNotifier(NotifierConfig{Recipients: []string{"hr@example.com"}}, email, nil, logger.NewTestLogger(t))
	svc := newTestService(t, newMemStore(), search, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	result, err := svc.Ingest(ctx, relayedBody(t, "app-1", nil))
	cancel()

	require.NoError(t, err)
	assert.True(t, result.Created)

	pending, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, svc.Wait(pending), context.DeadlineExceeded, "indexing is still blocked")

	close(search.release)
	require.NoError(t, svc.Wait(context.Background()))
	assert.Equal(t, []string{"app-1"}, search.indexed)
	assert.Len(t, email.sent, 1, "request cancellation does not cancel the notification")
}

func TestService_Ingest_LostRaceIsNoop(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, relayedBody(t, "app-1", nil))
	require.NoError(t, err)

	store.loseRace = true
	result, err := svc.Ingest(ctx, relayedBody(t, "app-1", nil))

	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Len(t, store.records, 1)
}

func TestService_Ingest_ConcurrentRedelivery(t *testing.T) {
	store := newMemStore()
	svc := NewService(&Config{}, store, nil, nil, logger.NewNoOpLogger())
	body := relayedBody(t, "app-1", nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Ingest(context.Background(), body)
			if assert.NoError(t, err) && result.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, store.records, 1)
}

func TestService_Ingest_UniqueViolationOnApplicationID(t *testing.T) {
	store := &violatingStore{memStore: newMemStore(), constraint: database.CRMApplicationIDKey}
	svc := newTestService(t, store, nil, nil)

	result, err := svc.Ingest(context.Background(), relayedBody(t, "app-1", nil))

	require.NoError(t, err)
	assert.False(t, result.Created)
}

func TestService_Ingest_TransactionIDConflict(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, relayedBody(t, "app-1", map[string]interface{}{"transactionId": "txn-shared"}))
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, relayedBody(t, "app-2", map[string]interface{}{"transactionId": "txn-shared"}))

	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestService_Ingest_Validation(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil, nil)

	_, err := svc.Ingest(context.Background(), relayedBody(t, "app-1", map[string]interface{}{"applicationId": nil, "email": "nope"}))

	require.ErrorIs(t, err, apperrors.ErrValidation)
	fields := apperrors.As(err).Fields
	require.Len(t, fields, 2)
	assert.Equal(t, "applicationId", fields[0].Field)
	assert.Equal(t, "email", fields[1].Field)
}

func TestService_Ingest_PersistenceFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("db down")
	svc := newTestService(t, store, nil, nil)

	_, err := svc.Ingest(context.Background(), relayedBody(t, "app-1", nil))

	require.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.Equal(t, "db down", apperrors.As(err).Details)
}

type violatingStore struct {
	*memStore
	constraint string
}

func (v *violatingStore) InsertIfAbsent(ctx context.Context, rec *models.CRMRecord) (bool, error) {
	return false, &pq.Error{Code: database.UniqueViolation, Constraint: v.constraint}
}

// ==========================
// Query / Get / Update
// ==========================

func seed(t *testing.T, svc *Service, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		submitted := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
		body := relayedBody(t, fmt.Sprintf("app-%02d", i), map[string]interface{}{
			"submittedAt": submitted.Format(time.RFC3339),
			"email":       fmt.Sprintf("user%02d@example.com", i),
		})
		_, err := svc.Ingest(context.Background(), body)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Wait(context.Background()))
}

func TestService_Query_Pagination(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil, nil)
	seed(t, svc, 25)
	ctx := context.Background()

	page1, err := svc.Query(ctx, QueryParams{Page: 1, Limit: 10, SortBy: "submittedAt", SortOrder: SortDesc})
	require.NoError(t, err)
	page2, err := svc.Query(ctx, QueryParams{Page: 2, Limit: 10, SortBy: "submittedAt", SortOrder: SortDesc})
	require.NoError(t, err)

	assert.Equal(t, 25, page2.Total)
	require.Len(t, page2.Items, 10)
	assert.Equal(t, "app-25", page1.Items[0].ApplicationID)
	assert.Equal(t, "app-15", page2.Items[0].ApplicationID)

	seen := map[string]bool{}
	for _, rec := range page1.Items {
		seen[rec.ApplicationID] = true
	}
	for _, rec := range page2.Items {
		assert.False(t, seen[rec.ApplicationID], "page overlap on %s", rec.ApplicationID)
	}

	page3, err := svc.Query(ctx, QueryParams{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page3.Items, 5)
}

func TestService_Query_UsesSearchIndex(t *testing.T) {
	store := newMemStore()
	search := &fakeSearcher{ids: []string{"app-02", "app-01"}, total: 2}
	svc := newTestService(t, store, search, nil)
	seed(t, svc, 3)

	result, err := svc.Query(context.Background(), QueryParams{Search: "alice", Page: 1, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "app-02", result.Items[0].ApplicationID)
}

func TestService_Query_SearchIndexFailureFallsBack(t *testing.T) {
	store := newMemStore()
	search := &fakeSearcher{err: errors.New("cluster red")}
	svc := newTestService(t, store, search, nil)
	seed(t, svc, 3)

	result, err := svc.Query(context.Background(), QueryParams{Search: "user02", Page: 1, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "app-02", result.Items[0].ApplicationID)
}

func TestService_Query_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("timeout")
	svc := newTestService(t, store, nil, nil)

	_, err := svc.Query(context.Background(), QueryParams{Page: 1, Limit: 10})

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestService_Get_ByEitherIdentifier(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil, nil)
	seed(t, svc, 1)
	ctx := context.Background()

	byAppID, err := svc.Get(ctx, "app-01")
	require.NoError(t, err)
	byID, err := svc.Get(ctx, byAppID.ID)
	require.NoError(t, err)

	assert.Equal(t, byAppID, byID)

	_, err = svc.Get(ctx, "app-unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.Get(ctx, unknownUUID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_Update_StatusTransitions(t *testing.T) {
	search := &fakeSearcher{}
	svc := newTestService(t, newMemStore(), search, nil)
	seed(t, svc, 1)
	ctx := context.Background()

	for _, status := range []models.Status{
		models.StatusHired, models.StatusNew, models.StatusRejected,
		models.StatusInterviewed, models.StatusContacted, models.StatusReviewed,
	} {
		rec, err := svc.Update(ctx, "app-01", []byte(fmt.Sprintf(`{"status":%q}`, status)))
		require.NoError(t, err)
		assert.Equal(t, status, rec.Status)
		assert.Equal(t, testNow, rec.UpdatedAt)
	}
	assert.Len(t, search.indexed, 7)
}

func TestService_Update_RejectsApplicantFields(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil, nil)
	seed(t, svc, 1)
	ctx := context.Background()

	_, err := svc.Update(ctx, "app-01", []byte(`{"email":"evil@example.com","status":"hired"}`))
	require.ErrorIs(t, err, apperrors.ErrValidation)

	rec, err := svc.Get(ctx, "app-01")
	require.NoError(t, err)
	assert.Equal(t, "user01@example.com", rec.Email)
	assert.Equal(t, models.StatusNew, rec.Status)
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil, nil)

	_, err := svc.Update(context.Background(), "app-missing", []byte(`{"status":"hired"}`))

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_Update_SetsAndClearsLastContacted(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil, nil)
	seed(t, svc, 1)
	ctx := context.Background()

	rec, err := svc.Update(ctx, "app-01", []byte(`{"lastContactedAt":"2025-03-09T12:00:00Z","tags":["phone-screen"]}`))
	require.NoError(t, err)
	require.NotNil(t, rec.LastContactedAt)
	assert.Equal(t, []string{"phone-screen"}, rec.Tags)

	rec, err = svc.Update(ctx, "app-01", []byte(`{"lastContactedAt":null}`))
	require.NoError(t, err)
	assert.Nil(t, rec.LastContactedAt)
	assert.Equal(t, []string{"phone-screen"}, rec.Tags)
}
