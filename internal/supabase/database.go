package supabase

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"layerminder-backend/internal/models"
)

// ErrRecordNotFound is returned when a record/session lookup matches no row.
var ErrRecordNotFound = errors.New("record not found")

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) CreateSession(sessionID, userID uuid.UUID) (*models.Session, error) {
	var session models.Session
	err := d.db.QueryRow(`
		INSERT INTO history_sessions (session_id, user_id)
		VALUES ($1, $2)
		RETURNING session_id, user_id, created_at
	`, sessionID, userID).Scan(&session.SessionID, &session.UserID, &session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &session, nil
}

func (d *DatabaseClient) GetSession(sessionID uuid.UUID) (*models.Session, error) {
	var session models.Session
	err := d.db.QueryRow(`
		SELECT session_id, user_id, created_at
		FROM history_sessions
		WHERE session_id = $1
	`, sessionID).Scan(&session.SessionID, &session.UserID, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func (d *DatabaseClient) ListSessions(userID uuid.UUID) ([]models.Session, error) {
	rows, err := d.db.Query(`
		SELECT session_id, user_id, created_at
		FROM history_sessions
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(&session.SessionID, &session.UserID, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (d *DatabaseClient) CreateRecord(recordID, sessionID, userID uuid.UUID) (*models.GenerationRecord, error) {
	var record models.GenerationRecord
	err := d.db.QueryRow(`
		INSERT INTO history_records (record_id, session_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING record_id, session_id, user_id,
			image_status, story_status, keywords_status, recommendation_status,
			story, keywords, reference_image_id, recommendation_error,
			created_at, updated_at
	`, recordID, sessionID, userID).Scan(
		&record.RecordID, &record.SessionID, &record.UserID,
		&record.ImageStatus, &record.StoryStatus, &record.KeywordsStatus, &record.RecommendationStatus,
		&record.Story, &record.Keywords, &record.ReferenceImageID, &record.RecommendationError,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	return &record, nil
}

func (d *DatabaseClient) GetRecord(recordID uuid.UUID) (*models.GenerationRecord, error) {
	var record models.GenerationRecord
	err := d.db.QueryRow(`
		SELECT record_id, session_id, user_id,
			image_status, story_status, keywords_status, recommendation_status,
			story, keywords, reference_image_id, recommendation_error,
			created_at, updated_at
		FROM history_records
		WHERE record_id = $1
	`, recordID).Scan(
		&record.RecordID, &record.SessionID, &record.UserID,
		&record.ImageStatus, &record.StoryStatus, &record.KeywordsStatus, &record.RecommendationStatus,
		&record.Story, &record.Keywords, &record.ReferenceImageID, &record.RecommendationError,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return &record, nil
}

func (d *DatabaseClient) ListRecordsBySession(sessionID, userID uuid.UUID) ([]models.GenerationRecord, error) {
	rows, err := d.db.Query(`
		SELECT record_id, session_id, user_id,
			image_status, story_status, keywords_status, recommendation_status,
			story, keywords, reference_image_id, recommendation_error,
			created_at, updated_at
		FROM history_records
		WHERE session_id = $1 AND user_id = $2
		ORDER BY created_at DESC
	`, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []models.GenerationRecord
	for rows.Next() {
		var record models.GenerationRecord
		err := rows.Scan(
			&record.RecordID, &record.SessionID, &record.UserID,
			&record.ImageStatus, &record.StoryStatus, &record.KeywordsStatus, &record.RecommendationStatus,
			&record.Story, &record.Keywords, &record.ReferenceImageID, &record.RecommendationError,
			&record.CreatedAt, &record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

// ClaimRecord moves a record from pending to images_processing, returning
// false if another pipeline run already claimed it. This is the re-entrancy
// guard at orchestrator entry: the compare-and-swap is a single conditional
// update, so two concurrent runs against one record resolve to one winner.
func (d *DatabaseClient) ClaimRecord(recordID uuid.UUID) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE history_records
		SET image_status = $1, updated_at = NOW()
		WHERE record_id = $2 AND image_status = $3
	`, models.ImageStatusProcessing, recordID, models.ImageStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return affected == 1, nil
}

func (d *DatabaseClient) UpdateImageStatus(recordID uuid.UUID, status string) error {
	_, err := d.db.Exec(`
		UPDATE history_records
		SET image_status = $1, updated_at = NOW()
		WHERE record_id = $2
	`, status, recordID)
	return err
}

func (d *DatabaseClient) UpdateStoryKeywordsStatus(recordID uuid.UUID, status string) error {
	_, err := d.db.Exec(`
		UPDATE history_records
		SET story_status = $1, keywords_status = $1, updated_at = NOW()
		WHERE record_id = $2
	`, status, recordID)
	return err
}

func (d *DatabaseClient) SetStoryAndKeywords(recordID uuid.UUID, story string, keywords []string) error {
	// keywords is NOT NULL; a nil slice would encode as SQL NULL
	if keywords == nil {
		keywords = []string{}
	}
	_, err := d.db.Exec(`
		UPDATE history_records
		SET story = $1, keywords = $2,
			story_status = $3, keywords_status = $3, updated_at = NOW()
		WHERE record_id = $4
	`, story, pq.StringArray(keywords), models.StoryStatusReady, recordID)
	return err
}

func (d *DatabaseClient) UpdateRecommendationStatus(recordID uuid.UUID, status string) error {
	_, err := d.db.Exec(`
		UPDATE history_records
		SET recommendation_status = $1, updated_at = NOW()
		WHERE record_id = $2
	`, status, recordID)
	return err
}

// SetRecommendation marks the recommendation stage ready and clears any error
// left by a previous failed run against the same record.
func (d *DatabaseClient) SetRecommendation(recordID uuid.UUID, referenceImageID string) error {
	_, err := d.db.Exec(`
		UPDATE history_records
		SET reference_image_id = $1, recommendation_status = $2,
			recommendation_error = NULL, updated_at = NOW()
		WHERE record_id = $3
	`, referenceImageID, models.RecommendationStatusReady, recordID)
	return err
}

func (d *DatabaseClient) SetRecommendationFailed(recordID uuid.UUID, reason string) error {
	_, err := d.db.Exec(`
		UPDATE history_records
		SET recommendation_status = $1, recommendation_error = $2, updated_at = NOW()
		WHERE record_id = $3
	`, models.RecommendationStatusFailed, reason, recordID)
	return err
}

func (d *DatabaseClient) CreateImage(image *models.Image) error {
	_, err := d.db.Exec(`
		INSERT INTO images (image_id, user_id, url)
		VALUES ($1, $2, $3)
	`, image.ImageID, image.UserID, image.URL)
	return err
}

func (d *DatabaseClient) CreateRecordImage(recordID, imageID uuid.UUID, seq int) error {
	_, err := d.db.Exec(`
		INSERT INTO history_record_images (record_id, image_id, seq)
		VALUES ($1, $2, $3)
	`, recordID, imageID, seq)
	return err
}

func (d *DatabaseClient) ListRecordImages(recordID uuid.UUID) ([]models.RecordImage, error) {
	rows, err := d.db.Query(`
		SELECT ri.record_id, ri.image_id, ri.seq, i.url, i.created_at
		FROM history_record_images ri
		JOIN images i ON i.image_id = ri.image_id
		WHERE ri.record_id = $1
		ORDER BY ri.seq
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list record images: %w", err)
	}
	defer rows.Close()

	var images []models.RecordImage
	for rows.Next() {
		var image models.RecordImage
		err := rows.Scan(&image.RecordID, &image.ImageID, &image.Seq, &image.URL, &image.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record image: %w", err)
		}
		images = append(images, image)
	}

	return images, nil
}

// CreditBalance returns the user's balance, or 0 with no error when the user
// has no credit row yet.
func (d *DatabaseClient) CreditBalance(userID uuid.UUID) (int, error) {
	var balance int
	err := d.db.QueryRow(`
		SELECT balance FROM user_credits WHERE user_id = $1
	`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}

	return balance, nil
}

// ConsumeCredits decrements the balance only if it is sufficient. The check
// and the decrement are one conditional UPDATE, so concurrent calls for a
// user with exactly `amount` credits left resolve to a single success.
func (d *DatabaseClient) ConsumeCredits(userID uuid.UUID, amount int) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE user_credits
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
	`, amount, userID)
	if err != nil {
		return false, fmt.Errorf("failed to consume credits: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read consume result: %w", err)
	}
	return affected == 1, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
