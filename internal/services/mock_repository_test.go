package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// mockRepository is a stateful in-memory Repository. WithTransaction runs
// the callback against the same store (reads inside the callback see prior
// writes) and rolls the store back when the callback errors, so tests catch
// side effects that fire for state that never committed.
type mockRepository struct {
	mu sync.Mutex

	tests    map[uint]*models.Test
	attempts map[uint]*models.TestAttempt
	answers  map[uint]map[string]*models.AttemptAnswer
	certs    map[string]*models.Certificate
	users    map[string]*models.User

	nextAttemptID uint
	nextCertID    uint

	// lockedAttemptReads counts GetByIDForUpdate calls, so tests can assert
	// that mutating paths read the attempt under a row lock.
	lockedAttemptReads int

	// failCertCreate forces Certificate().Create to fail once, to exercise
	// the concurrent-issue fallback.
	failCertCreate bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		tests:    make(map[uint]*models.Test),
		attempts: make(map[uint]*models.TestAttempt),
		answers:  make(map[uint]map[string]*models.AttemptAnswer),
		certs:    make(map[string]*models.Certificate),
		users:    make(map[string]*models.User),
	}
}

func (m *mockRepository) Test() repositories.TestRepository               { return &mockTestRepo{m} }
func (m *mockRepository) Attempt() repositories.AttemptRepository         { return &mockAttemptRepo{m} }
func (m *mockRepository) Answer() repositories.AnswerRepository           { return &mockAnswerRepo{m} }
func (m *mockRepository) Certificate() repositories.CertificateRepository { return &mockCertRepo{m} }
func (m *mockRepository) Leaderboard() repositories.LeaderboardRepository {
	return &mockLeaderboardRepo{m}
}
func (m *mockRepository) User() repositories.UserRepository { return &mockUserRepo{m} }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// mockSnapshot holds the store by value so a failed transaction can be
// rolled back without breaking pointer identity for the callers.
type mockSnapshot struct {
	tests    map[uint]models.Test
	attempts map[uint]models.TestAttempt
	answers  map[uint]map[string]models.AttemptAnswer
	certs    map[string]models.Certificate

	nextAttemptID uint
	nextCertID    uint
}

func (m *mockRepository) snapshot() *mockSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &mockSnapshot{
		tests:         make(map[uint]models.Test, len(m.tests)),
		attempts:      make(map[uint]models.TestAttempt, len(m.attempts)),
		answers:       make(map[uint]map[string]models.AttemptAnswer, len(m.answers)),
		certs:         make(map[string]models.Certificate, len(m.certs)),
		nextAttemptID: m.nextAttemptID,
		nextCertID:    m.nextCertID,
	}
	for id, t := range m.tests {
		snap.tests[id] = *t
	}
	for id, a := range m.attempts {
		snap.attempts[id] = *a
	}
	for attemptID, rows := range m.answers {
		copied := make(map[string]models.AttemptAnswer, len(rows))
		for qid, row := range rows {
			copied[qid] = *row
		}
		snap.answers[attemptID] = copied
	}
	for key, c := range m.certs {
		snap.certs[key] = *c
	}
	return snap
}

// restore writes snapshot values back through the existing pointers, so
// objects the service already holds reflect the rollback too.
func (m *mockRepository) restore(snap *mockSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.tests {
		if _, ok := snap.tests[id]; !ok {
			delete(m.tests, id)
		}
	}
	for id, t := range snap.tests {
		if cur, ok := m.tests[id]; ok {
			*cur = t
		} else {
			cp := t
			m.tests[id] = &cp
		}
	}

	for id := range m.attempts {
		if _, ok := snap.attempts[id]; !ok {
			delete(m.attempts, id)
		}
	}
	for id, a := range snap.attempts {
		if cur, ok := m.attempts[id]; ok {
			*cur = a
		} else {
			cp := a
			m.attempts[id] = &cp
		}
	}

	for attemptID := range m.answers {
		if _, ok := snap.answers[attemptID]; !ok {
			delete(m.answers, attemptID)
		}
	}
	for attemptID, rows := range snap.answers {
		cur, ok := m.answers[attemptID]
		if !ok {
			cur = make(map[string]*models.AttemptAnswer, len(rows))
			m.answers[attemptID] = cur
		}
		for qid := range cur {
			if _, ok := rows[qid]; !ok {
				delete(cur, qid)
			}
		}
		for qid, row := range rows {
			if existing, ok := cur[qid]; ok {
				*existing = row
			} else {
				cp := row
				cur[qid] = &cp
			}
		}
	}

	for key := range m.certs {
		if _, ok := snap.certs[key]; !ok {
			delete(m.certs, key)
		}
	}
	for key, c := range snap.certs {
		if cur, ok := m.certs[key]; ok {
			*cur = c
		} else {
			cp := c
			m.certs[key] = &cp
		}
	}

	m.nextAttemptID = snap.nextAttemptID
	m.nextCertID = snap.nextCertID
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

func (m *mockRepository) addTest(test *models.Test) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[test.ID] = test
}

func (m *mockRepository) addUser(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func certKey(testID uint, userID string) string {
	return fmt.Sprintf("%d:%s", testID, userID)
}

// ===== TEST REPO =====

type mockTestRepo struct{ m *mockRepository }

func (r *mockTestRepo) Create(ctx context.Context, test *models.Test) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if test.ID == 0 {
		test.ID = uint(len(r.m.tests) + 1)
	}
	r.m.tests[test.ID] = test
	return nil
}

func (r *mockTestRepo) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	test, ok := r.m.tests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return test, nil
}

func (r *mockTestRepo) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) {
	return r.GetByID(ctx, id)
}

func (r *mockTestRepo) Update(ctx context.Context, test *models.Test) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tests[test.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.tests[test.ID] = test
	return nil
}

func (r *mockTestRepo) Delete(ctx context.Context, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tests[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.tests, id)
	return nil
}

func (r *mockTestRepo) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var tests []*models.Test
	for _, test := range r.m.tests {
		if filters.Status != nil && test.Status != *filters.Status {
			continue
		}
		if filters.CreatedBy != nil && test.CreatedBy != *filters.CreatedBy {
			continue
		}
		tests = append(tests, test)
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].ID < tests[j].ID })
	return tests, int64(len(tests)), nil
}

func (r *mockTestRepo) GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	filters.CreatedBy = &creatorID
	return r.List(ctx, filters)
}

func (r *mockTestRepo) Search(ctx context.Context, query string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	all, _, err := r.List(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	var tests []*models.Test
	for _, test := range all {
		if strings.Contains(strings.ToLower(test.Title), strings.ToLower(query)) {
			tests = append(tests, test)
		}
	}
	return tests, int64(len(tests)), nil
}

func (r *mockTestRepo) UpdateStatus(ctx context.Context, id uint, status models.TestStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	test, ok := r.m.tests[id]
	if !ok {
		return repositories.ErrNotFound
	}
	test.Status = status
	return nil
}

func (r *mockTestRepo) HasAttempts(ctx context.Context, id uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, attempt := range r.m.attempts {
		if attempt.TestID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockTestRepo) GetStats(ctx context.Context, id uint) (*repositories.TestStats, error) {
	return &repositories.TestStats{}, nil
}

// ===== ATTEMPT REPO =====

type mockAttemptRepo struct{ m *mockRepository }

func (r *mockAttemptRepo) Create(ctx context.Context, attempt *models.TestAttempt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextAttemptID++
	attempt.ID = r.m.nextAttemptID
	r.m.attempts[attempt.ID] = attempt
	return nil
}

func (r *mockAttemptRepo) GetByID(ctx context.Context, id uint) (*models.TestAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	attempt, ok := r.m.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return attempt, nil
}

func (r *mockAttemptRepo) GetByIDForUpdate(ctx context.Context, id uint) (*models.TestAttempt, error) {
	r.m.mu.Lock()
	r.m.lockedAttemptReads++
	r.m.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *mockAttemptRepo) GetByIDWithAnswers(ctx context.Context, id uint) (*models.TestAttempt, error) {
	attempt, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if test, ok := r.m.tests[attempt.TestID]; ok {
		attempt.Test = *test
	}
	attempt.Answers = nil
	for _, answer := range r.m.answers[attempt.ID] {
		attempt.Answers = append(attempt.Answers, *answer)
	}
	return attempt, nil
}

func (r *mockAttemptRepo) Update(ctx context.Context, attempt *models.TestAttempt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.attempts[attempt.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.attempts[attempt.ID] = attempt
	return nil
}

func (r *mockAttemptRepo) GetActiveAttempt(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, attempt := range r.m.attempts {
		if attempt.TestID == testID && attempt.UserID == userID && attempt.Status == models.AttemptInProgress {
			return attempt, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *mockAttemptRepo) GetActiveAttemptForUpdate(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error) {
	return r.GetActiveAttempt(ctx, testID, userID)
}

func (r *mockAttemptRepo) CountCompleted(ctx context.Context, testID uint, userID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var count int64
	for _, attempt := range r.m.attempts {
		if attempt.TestID == testID && attempt.UserID == userID && attempt.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (r *mockAttemptRepo) GetBestGradedAttempt(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var best *models.TestAttempt
	for _, attempt := range r.m.attempts {
		if attempt.TestID != testID || attempt.UserID != userID || attempt.Status != models.AttemptGraded {
			continue
		}
		if best == nil || attempt.Score > best.Score {
			best = attempt
		}
	}
	if best == nil {
		return nil, repositories.ErrNotFound
	}
	return best, nil
}

func (r *mockAttemptRepo) GetByUser(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var attempts []*models.TestAttempt
	for _, attempt := range r.m.attempts {
		if attempt.UserID == userID {
			attempts = append(attempts, attempt)
		}
	}
	return attempts, int64(len(attempts)), nil
}

func (r *mockAttemptRepo) GetByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var attempts []*models.TestAttempt
	for _, attempt := range r.m.attempts {
		if attempt.TestID == testID {
			attempts = append(attempts, attempt)
		}
	}
	return attempts, int64(len(attempts)), nil
}

func (r *mockAttemptRepo) GetGradedByTest(ctx context.Context, testID uint) ([]*models.TestAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var attempts []*models.TestAttempt
	for _, attempt := range r.m.attempts {
		if attempt.TestID == testID && attempt.Status == models.AttemptGraded {
			attempts = append(attempts, attempt)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].ID < attempts[j].ID })
	return attempts, nil
}

// ===== ANSWER REPO =====

type mockAnswerRepo struct{ m *mockRepository }

func (r *mockAnswerRepo) Upsert(ctx context.Context, answer *models.AttemptAnswer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	byQuestion, ok := r.m.answers[answer.AttemptID]
	if !ok {
		byQuestion = make(map[string]*models.AttemptAnswer)
		r.m.answers[answer.AttemptID] = byQuestion
	}
	if existing, ok := byQuestion[answer.QuestionID]; ok {
		existing.SelectedChoiceIDs = answer.SelectedChoiceIDs
		existing.TextAnswer = answer.TextAnswer
		return nil
	}
	answer.ID = uint(len(byQuestion) + 1)
	byQuestion[answer.QuestionID] = answer
	return nil
}

func (r *mockAnswerRepo) GetByAttemptAndQuestion(ctx context.Context, attemptID uint, questionID string) (*models.AttemptAnswer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if answer, ok := r.m.answers[attemptID][questionID]; ok {
		return answer, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *mockAnswerRepo) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.AttemptAnswer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var answers []*models.AttemptAnswer
	for _, answer := range r.m.answers[attemptID] {
		answers = append(answers, answer)
	}
	return answers, nil
}

func (r *mockAnswerRepo) Update(ctx context.Context, answer *models.AttemptAnswer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	byQuestion, ok := r.m.answers[answer.AttemptID]
	if !ok {
		return repositories.ErrNotFound
	}
	byQuestion[answer.QuestionID] = answer
	return nil
}

func (r *mockAnswerRepo) UpdateBatch(ctx context.Context, answers []*models.AttemptAnswer) error {
	for _, answer := range answers {
		r.m.mu.Lock()
		byQuestion, ok := r.m.answers[answer.AttemptID]
		if !ok {
			byQuestion = make(map[string]*models.AttemptAnswer)
			r.m.answers[answer.AttemptID] = byQuestion
		}
		byQuestion[answer.QuestionID] = answer
		r.m.mu.Unlock()
	}
	return nil
}

// ===== CERTIFICATE REPO =====

type mockCertRepo struct{ m *mockRepository }

func (r *mockCertRepo) Create(ctx context.Context, cert *models.Certificate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failCertCreate {
		// Simulate a concurrent writer winning the unique index race: their
		// row lands, ours fails.
		r.m.failCertCreate = false
		key := certKey(cert.TestID, cert.UserID)
		if _, ok := r.m.certs[key]; !ok {
			r.m.nextCertID++
			winner := *cert
			winner.ID = r.m.nextCertID
			winner.VerificationCode = "CONCURNT"
			r.m.certs[key] = &winner
		}
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	key := certKey(cert.TestID, cert.UserID)
	if _, ok := r.m.certs[key]; ok {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	r.m.nextCertID++
	cert.ID = r.m.nextCertID
	r.m.certs[key] = cert
	return nil
}

func (r *mockCertRepo) GetByTestAndUser(ctx context.Context, testID uint, userID string) (*models.Certificate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if cert, ok := r.m.certs[certKey(testID, userID)]; ok {
		return cert, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *mockCertRepo) GetByVerificationCode(ctx context.Context, code string) (*models.Certificate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, cert := range r.m.certs {
		if cert.VerificationCode == code {
			if test, ok := r.m.tests[cert.TestID]; ok {
				cert.Test = *test
			}
			return cert, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// ===== LEADERBOARD REPO =====

type mockLeaderboardRepo struct{ m *mockRepository }

func (r *mockLeaderboardRepo) GetByTest(ctx context.Context, testID uint, limit int) ([]*repositories.LeaderboardEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	type agg struct {
		best     float64
		sum      float64
		points   float64
		attempts int
	}
	byUser := make(map[string]*agg)
	for _, attempt := range r.m.attempts {
		if attempt.TestID != testID || attempt.Status != models.AttemptGraded {
			continue
		}
		a, ok := byUser[attempt.UserID]
		if !ok {
			a = &agg{}
			byUser[attempt.UserID] = a
		}
		a.attempts++
		a.sum += attempt.Score
		if attempt.Score > a.best {
			a.best = attempt.Score
		}
		if attempt.EarnedPoints > a.points {
			a.points = attempt.EarnedPoints
		}
	}

	var entries []*repositories.LeaderboardEntry
	for userID, a := range byUser {
		entries = append(entries, &repositories.LeaderboardEntry{
			UserID:       userID,
			TotalPoints:  a.points,
			AverageScore: a.sum / float64(a.attempts),
			BestScore:    a.best,
			Attempts:     a.attempts,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TotalPoints > entries[j].TotalPoints })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i, entry := range entries {
		entry.Rank = i + 1
	}
	return entries, nil
}

// ===== USER REPO =====

type mockUserRepo struct{ m *mockRepository }

func (r *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if user, ok := r.m.users[id]; ok {
		return user, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *mockUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var users []*models.User
	for _, id := range ids {
		if user, ok := r.m.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *mockUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.users[id]
	return ok, nil
}

func (r *mockUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return false, nil
	}
	return user.Role == role, nil
}
