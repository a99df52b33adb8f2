package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ecohearing/EcoHearing/internal/models"
)

// marshalSessionColumns encodes the JSON side columns of a session row.
// Empty collections are stored as NULL.
func marshalSessionColumns(sess Session) (answers, log, payload interface{}, err error) {
	if len(sess.Answers) > 0 {
		b, merr := json.Marshal(sess.Answers)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("marshal answers failed: %w", merr)
		}
		answers = string(b)
	}
	if len(sess.Log) > 0 {
		b, merr := json.Marshal(sess.Log)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("marshal log failed: %w", merr)
		}
		log = string(b)
	}
	if sess.Payload != nil {
		b, merr := json.Marshal(sess.Payload)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("marshal payload failed: %w", merr)
		}
		payload = string(b)
	}
	return answers, log, payload, nil
}

// scanSession scans a session from a single row.
func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var answersJSON, logJSON, payloadJSON sql.NullString
	err := row.Scan(&sess.ID, &sess.Phase, &sess.CurrentStepID, &answersJSON, &logJSON, &payloadJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if answersJSON.Valid {
		if err := json.Unmarshal([]byte(answersJSON.String), &sess.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers failed: %w", err)
		}
	}
	if logJSON.Valid {
		if err := json.Unmarshal([]byte(logJSON.String), &sess.Log); err != nil {
			return nil, fmt.Errorf("unmarshal log failed: %w", err)
		}
	}
	if payloadJSON.Valid {
		var p models.Payload
		if err := json.Unmarshal([]byte(payloadJSON.String), &p); err != nil {
			return nil, fmt.Errorf("unmarshal payload failed: %w", err)
		}
		sess.Payload = &p
	}
	return &sess, nil
}
