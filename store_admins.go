package ments

import (
	"context"
	"errors"
	"time"
)

const adminColumns = `id, email, password_hash, role, verified, verify_token, created_at`

func scanAdmin(r rowScanner) (Admin, error) {
	var a Admin
	err := r.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.Verified, &a.VerifyToken, &a.CreatedAt)
	return a, storeErr(err)
}

// CreateAdmin inserts an unverified admin. An existing email is reported as
// ErrDuplicate.
func (s *Store) CreateAdmin(ctx context.Context, email, passwordHash, verifyToken string) (Admin, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO admins (email, password_hash, role, verified, verify_token, created_at)
		VALUES (?, ?, 'admin', 0, ?, ?)`, email, passwordHash, verifyToken, now)
	if err != nil {
		return Admin{}, storeErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Admin{}, err
	}
	return Admin{ID: id, Email: email, PasswordHash: passwordHash, Role: "admin", VerifyToken: verifyToken, CreatedAt: now}, nil
}

// ResetUnverifiedAdmin replaces the password hash and verification token of
// an admin that has not confirmed its address yet. Verified admins are
// reported as ErrDuplicate and unknown emails as ErrNotFound.
func (s *Store) ResetUnverifiedAdmin(ctx context.Context, email, passwordHash, verifyToken string) (Admin, error) {
	a, err := s.GetAdminByEmail(ctx, email)
	if err != nil {
		return Admin{}, err
	}
	if a.Verified {
		return Admin{}, ErrDuplicate
	}
	res, err := s.db.ExecContext(ctx, `UPDATE admins SET password_hash = ?, verify_token = ?
		WHERE id = ? AND verified = 0`, passwordHash, verifyToken, a.ID)
	if err != nil {
		return Admin{}, err
	}
	if err := requireRow(res); errors.Is(err, ErrNotFound) {
		return Admin{}, ErrDuplicate
	} else if err != nil {
		return Admin{}, err
	}
	a.PasswordHash = passwordHash
	a.VerifyToken = verifyToken
	return a, nil
}

// GetAdminByEmail returns the admin with email.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	return scanAdmin(s.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = ?`, email))
}

// GetAdmin returns the admin with id.
func (s *Store) GetAdmin(ctx context.Context, id int64) (Admin, error) {
	return scanAdmin(s.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = ?`, id))
}

// VerifyAdmin marks the admin holding token as verified and clears the
// token so it cannot be reused.
func (s *Store) VerifyAdmin(ctx context.Context, token string) (Admin, error) {
	if token == "" {
		return Admin{}, ErrNotFound
	}
	a, err := scanAdmin(s.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE verify_token = ?`, token))
	if err != nil {
		return Admin{}, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE admins SET verified = 1, verify_token = '' WHERE id = ?`, a.ID); err != nil {
		return Admin{}, err
	}
	a.Verified = true
	a.VerifyToken = ""
	return a, nil
}

// SaveImage records an uploaded image.
func (s *Store) SaveImage(ctx context.Context, img Image) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO images (filename, original_name, width, height, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt)
	return storeErr(err)
}

// ListImages returns uploaded images, newest first.
func (s *Store) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, original_name, width, height, size, uploaded_at
		FROM images ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &img.UploadedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteImage removes the image record for filename.
func (s *Store) DeleteImage(ctx context.Context, filename string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE filename = ?`, filename)
	if err != nil {
		return err
	}
	return requireRow(res)
}
