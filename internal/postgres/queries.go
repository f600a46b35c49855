package postgres

const messageColumns = `id, sender_id, receiver_id, room_id, content, attachments,
	message_type, is_urgent, is_read, metadata, created_at`

const (
	queryInsertMessage = `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10)`

	queryHistory = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND (
		    $3::timestamptz IS NULL
		    OR created_at > $3
		    OR (created_at = $3 AND id > $4::text)
		  )
		ORDER BY created_at ASC, id ASC
		LIMIT $5`

	queryListByParticipant = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at ASC, id ASC`

	queryMarkRead = `
		UPDATE messages
		SET is_read = true
		WHERE id = ANY($1::text[]) AND receiver_id = $2 AND NOT is_read`

	queryUnreadCount = `
		SELECT count(*) FROM messages WHERE receiver_id = $1 AND NOT is_read`

	queryGetProfile = `
		SELECT id, display_name, role, specialty, profile_image_url
		FROM users WHERE id = $1`

	queryUpsertProfile = `
		INSERT INTO users (id, display_name, role, specialty, profile_image_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    role = EXCLUDED.role,
		    specialty = EXCLUDED.specialty,
		    profile_image_url = EXCLUDED.profile_image_url`
)
