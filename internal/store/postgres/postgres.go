package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
)

const maxSerializationRetries = 3

type Store struct {
	db  *sql.DB
	orm *gorm.DB
	log logrus.FieldLogger
}

func New(ctx context.Context, databaseURL string, logger logrus.FieldLogger) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	orm, err := gorm.Open(gormpg.New(gormpg.Config{Conn: db}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, orm: orm, log: logger.WithField("module", "postgres-store")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates or extends the schema for every persisted record.
func (s *Store) Migrate(ctx context.Context) error {
	return s.orm.WithContext(ctx).AutoMigrate(
		&tripRow{},
		&allocationRow{},
		&saleRow{},
		&debtRow{},
		&paymentRow{},
		&userRow{},
	)
}

func (s *Store) CreateTrip(ctx context.Context, trip domain.Trip) (*domain.TripBook, error) {
	if trip.ID == "" || strings.TrimSpace(trip.Name) == "" {
		return nil, store.ErrInvalidRecord
	}
	book := domain.NewTripBook(trip)
	row := tripRowFrom(book)
	if err := s.orm.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return book, nil
}

func (s *Store) LoadBook(ctx context.Context, tripID string) (*domain.TripBook, error) {
	var book *domain.TripBook
	err := s.snapshot(ctx, func(tx *gorm.DB) error {
		var err error
		book, err = loadBook(tx, tripID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (s *Store) ListBooks(ctx context.Context) ([]*domain.TripBook, error) {
	var books []*domain.TripBook
	err := s.snapshot(ctx, func(tx *gorm.DB) error {
		var err error
		books, err = listBooks(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// snapshot runs fn in a read-only repeatable-read transaction so every query
// of a book sees the same committed state.
func (s *Store) snapshot(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.orm.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

func listBooks(tx *gorm.DB) ([]*domain.TripBook, error) {
	var trips []tripRow
	if err := tx.Order("date DESC, id ASC").Find(&trips).Error; err != nil {
		return nil, err
	}
	books := make([]*domain.TripBook, 0, len(trips))
	byID := make(map[string]*domain.TripBook, len(trips))
	for _, row := range trips {
		b := row.toBook()
		books = append(books, b)
		byID[b.Trip.ID] = b
	}
	if len(books) == 0 {
		return books, nil
	}

	var allocations []allocationRow
	if err := tx.Order("created_at, id").Find(&allocations).Error; err != nil {
		return nil, err
	}
	for _, r := range allocations {
		if b := byID[r.TripID]; b != nil {
			b.Allocations = append(b.Allocations, r.toDomain())
		}
	}
	var sales []saleRow
	if err := tx.Order("created_at, id").Find(&sales).Error; err != nil {
		return nil, err
	}
	for _, r := range sales {
		if b := byID[r.TripID]; b != nil {
			b.Sales = append(b.Sales, r.toDomain())
		}
	}
	var debts []debtRow
	if err := tx.Order("created_at, id").Find(&debts).Error; err != nil {
		return nil, err
	}
	for _, r := range debts {
		if b := byID[r.TripID]; b != nil {
			b.Debts = append(b.Debts, r.toDomain())
		}
	}
	var payments []paymentRow
	if err := tx.Order("created_at, id").Find(&payments).Error; err != nil {
		return nil, err
	}
	for _, r := range payments {
		if b := byID[r.TripID]; b != nil {
			b.Payments = append(b.Payments, r.toDomain())
		}
	}
	return books, nil
}

// UpdateBook locks the trip row, runs fn on the loaded book and writes back
// every row that changed. A serialization failure reruns the whole unit of
// work, so fn must only touch the book it is given.
func (s *Store) UpdateBook(ctx context.Context, tripID string, fn func(*domain.TripBook) error) (*domain.TripBook, error) {
	var out *domain.TripBook
	err := s.serializable(ctx, tripID, func(tx *gorm.DB) error {
		book, err := loadBook(tx, tripID, true)
		if err != nil {
			return err
		}
		before := book.Clone()
		if err := fn(book); err != nil {
			return err
		}
		book.Trip.ID = tripID
		if err := saveBook(tx, before, book); err != nil {
			return err
		}
		out = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteTrip(ctx context.Context, tripID string, guard func(*domain.TripBook) error) error {
	return s.serializable(ctx, tripID, func(tx *gorm.DB) error {
		book, err := loadBook(tx, tripID, true)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(book); err != nil {
				return err
			}
		}
		for _, model := range []any{&paymentRow{}, &debtRow{}, &saleRow{}, &allocationRow{}} {
			if err := tx.Where("trip_id = ?", tripID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", tripID).Delete(&tripRow{}).Error
	})
}

var locateQueries = map[domain.EntityKind]string{
	domain.KindTrip:       `SELECT id FROM trips WHERE id = $1`,
	domain.KindAllocation: `SELECT trip_id FROM product_allocations WHERE id = $1`,
	domain.KindSale:       `SELECT trip_id FROM sales WHERE id = $1`,
	domain.KindDebt:       `SELECT trip_id FROM debts WHERE id = $1`,
	domain.KindPayment:    `SELECT trip_id FROM payments WHERE id = $1`,
}

func (s *Store) LocateTrip(ctx context.Context, kind domain.EntityKind, id string) (string, error) {
	query, ok := locateQueries[kind]
	if !ok {
		return "", store.ErrInvalidRecord
	}
	var tripID string
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&tripID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return tripID, nil
}

func (s *Store) serializable(ctx context.Context, tripID string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxSerializationRetries; attempt++ {
		err = s.orm.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if !isSerializationFailure(err) {
			return err
		}
		s.log.WithFields(logrus.Fields{"trip_id": tripID, "attempt": attempt}).Warn("serialization failure, retrying unit of work")
	}
	return err
}

func loadBook(tx *gorm.DB, tripID string, forUpdate bool) (*domain.TripBook, error) {
	q := tx
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var trip tripRow
	if err := q.Where("id = ?", tripID).Take(&trip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	book := trip.toBook()

	var allocations []allocationRow
	if err := tx.Where("trip_id = ?", tripID).Order("created_at, id").Find(&allocations).Error; err != nil {
		return nil, err
	}
	for _, r := range allocations {
		book.Allocations = append(book.Allocations, r.toDomain())
	}
	var sales []saleRow
	if err := tx.Where("trip_id = ?", tripID).Order("created_at, id").Find(&sales).Error; err != nil {
		return nil, err
	}
	for _, r := range sales {
		book.Sales = append(book.Sales, r.toDomain())
	}
	var debts []debtRow
	if err := tx.Where("trip_id = ?", tripID).Order("created_at, id").Find(&debts).Error; err != nil {
		return nil, err
	}
	for _, r := range debts {
		book.Debts = append(book.Debts, r.toDomain())
	}
	var payments []paymentRow
	if err := tx.Where("trip_id = ?", tripID).Order("created_at, id").Find(&payments).Error; err != nil {
		return nil, err
	}
	for _, r := range payments {
		book.Payments = append(book.Payments, r.toDomain())
	}
	return book, nil
}

// saveBook upserts every record of after and deletes the ones that were in
// before but are gone now.
func saveBook(tx *gorm.DB, before, after *domain.TripBook) error {
	trip := tripRowFrom(after)
	if err := tx.Save(&trip).Error; err != nil {
		return err
	}
	allocations := make([]allocationRow, 0, len(after.Allocations))
	for _, a := range after.Allocations {
		allocations = append(allocations, allocationRowFrom(a))
	}
	sales := make([]saleRow, 0, len(after.Sales))
	for _, s := range after.Sales {
		sales = append(sales, saleRowFrom(s))
	}
	debts := make([]debtRow, 0, len(after.Debts))
	for _, d := range after.Debts {
		debts = append(debts, debtRowFrom(d))
	}
	payments := make([]paymentRow, 0, len(after.Payments))
	for _, p := range after.Payments {
		payments = append(payments, paymentRowFrom(p))
	}

	if len(allocations) > 0 {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&allocations).Error; err != nil {
			return err
		}
	}
	if len(sales) > 0 {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&sales).Error; err != nil {
			return err
		}
	}
	if len(debts) > 0 {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&debts).Error; err != nil {
			return err
		}
	}
	if len(payments) > 0 {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&payments).Error; err != nil {
			return err
		}
	}

	removed := []struct {
		model any
		ids   []string
	}{
		{&paymentRow{}, removedIDs(paymentIDs(before), paymentIDs(after))},
		{&debtRow{}, removedIDs(debtIDs(before), debtIDs(after))},
		{&saleRow{}, removedIDs(saleIDs(before), saleIDs(after))},
		{&allocationRow{}, removedIDs(allocationIDs(before), allocationIDs(after))},
	}
	for _, r := range removed {
		if len(r.ids) == 0 {
			continue
		}
		if err := tx.Where("id IN ?", r.ids).Delete(r.model).Error; err != nil {
			return err
		}
	}
	return nil
}

func removedIDs(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}
	out := make([]string, 0)
	for _, id := range before {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func allocationIDs(b *domain.TripBook) []string {
	ids := make([]string, 0, len(b.Allocations))
	for _, a := range b.Allocations {
		ids = append(ids, a.ID)
	}
	return ids
}

func saleIDs(b *domain.TripBook) []string {
	ids := make([]string, 0, len(b.Sales))
	for _, s := range b.Sales {
		ids = append(ids, s.ID)
	}
	return ids
}

func debtIDs(b *domain.TripBook) []string {
	ids := make([]string, 0, len(b.Debts))
	for _, d := range b.Debts {
		ids = append(ids, d.ID)
	}
	return ids
}

func paymentIDs(b *domain.TripBook) []string {
	ids := make([]string, 0, len(b.Payments))
	for _, p := range b.Payments {
		ids = append(ids, p.ID)
	}
	return ids
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RoleSeller
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
