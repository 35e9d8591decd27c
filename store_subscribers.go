package ments

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Subscribe adds email as an active subscriber. An address that is already
// active is reported as ErrDuplicate; an inactive one is reactivated and
// returned with Reactivated set.
func (s *Store) Subscribe(ctx context.Context, email, source string) (Subscriber, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return Subscriber{}, ErrInvalidEmail
	}
	existing, err := s.GetSubscriberByEmail(ctx, email)
	switch {
	case err == nil && existing.Active:
		return existing, ErrDuplicate
	case err == nil:
		if _, err := s.SetSubscriberActive(ctx, existing.ID, true); err != nil {
			return Subscriber{}, err
		}
		existing.Active = true
		existing.Reactivated = true
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return Subscriber{}, err
	}
	return s.insertSubscriber(ctx, email, source)
}

func (s *Store) insertSubscriber(ctx context.Context, email, source string) (Subscriber, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO subscribers (email, is_active, source, subscribed_at)
		VALUES (?, 1, ?, ?)`, email, source, now)
	if err != nil {
		return Subscriber{}, storeErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Subscriber{}, err
	}
	return Subscriber{ID: id, Email: email, Active: true, Source: source, SubscribedAt: now}, nil
}

// AddSubscribers inserts each address with source. Invalid addresses and
// addresses already on the list are counted, not treated as errors.
func (s *Store) AddSubscribers(ctx context.Context, emails []string, source string) (BulkResult, error) {
	var res BulkResult
	for _, email := range emails {
		email = NormalizeEmail(email)
		if !ValidEmail(email) {
			res.Invalid++
			continue
		}
		if _, err := s.insertSubscriber(ctx, email, source); err != nil {
			if errors.Is(err, ErrDuplicate) {
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Added++
	}
	return res, nil
}

// Unsubscribe deactivates email. It returns ErrNotFound for unknown
// addresses and ErrAlreadyUnsubscribed when the subscriber is inactive.
func (s *Store) Unsubscribe(ctx context.Context, email string) error {
	sub, err := s.GetSubscriberByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if !sub.Active {
		return ErrAlreadyUnsubscribed
	}
	_, err = s.SetSubscriberActive(ctx, sub.ID, false)
	return err
}

const subscriberColumns = `id, email, is_active, source, subscribed_at`

func scanSubscriber(r rowScanner) (Subscriber, error) {
	var sub Subscriber
	err := r.Scan(&sub.ID, &sub.Email, &sub.Active, &sub.Source, &sub.SubscribedAt)
	return sub, err
}

// GetSubscriberByEmail looks up a subscriber by normalized address.
func (s *Store) GetSubscriberByEmail(ctx context.Context, email string) (Subscriber, error) {
	sub, err := scanSubscriber(s.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = ?`, email))
	return sub, storeErr(err)
}

// GetSubscriber looks up a subscriber by id.
func (s *Store) GetSubscriber(ctx context.Context, id int64) (Subscriber, error) {
	sub, err := scanSubscriber(s.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE id = ?`, id))
	return sub, storeErr(err)
}

// ListSubscribers returns every subscriber, newest first.
func (s *Store) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers
		ORDER BY subscribed_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ActiveEmails returns the addresses of active subscribers in insertion
// order.
func (s *Store) ActiveEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM subscribers WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// CountActiveSubscribers returns the number of active subscribers.
func (s *Store) CountActiveSubscribers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers WHERE is_active = 1`).Scan(&n)
	return n, err
}

// SetSubscriberActive sets the active flag and returns the updated row.
func (s *Store) SetSubscriberActive(ctx context.Context, id int64, active bool) (Subscriber, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE subscribers SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return Subscriber{}, err
	}
	if err := requireRow(res); err != nil {
		return Subscriber{}, err
	}
	return s.GetSubscriber(ctx, id)
}

// ToggleSubscriber flips the active flag of a subscriber.
func (s *Store) ToggleSubscriber(ctx context.Context, id int64) (Subscriber, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE subscribers SET is_active = 1 - is_active WHERE id = ?`, id)
	if err != nil {
		return Subscriber{}, err
	}
	if err := requireRow(res); err != nil {
		return Subscriber{}, err
	}
	return s.GetSubscriber(ctx, id)
}

// DeleteSubscribers removes the subscribers with the given ids and returns
// how many rows were deleted.
func (s *Store) DeleteSubscribers(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
