package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nestjam/yap-shortlink/internal/domain"
	"github.com/nestjam/yap-shortlink/internal/persistance/inmemory"
)

const (
	recordLink  = "link"
	recordClick = "click"
)

// FileStore хранит ссылки в памяти и дописывает изменения в журнал JSON Lines.
// При создании журнал воспроизводится.
type FileStore struct {
	encoder *json.Encoder
	s       *inmemory.InmemoryStore
	mu      sync.Mutex
}

// StoredRecord описывает строку журнала: создание ссылки или приращение счетчика.
type StoredRecord struct {
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Type      string     `json:"type"`
	Code      string     `json:"code"`
	LongURL   string     `json:"long_url,omitempty"`
	Delta     int64      `json:"delta,omitempty"`
}

// New читает журнал из rw и возвращает хранилище, которое дописывает в него новые записи.
// Приращения для кода, ссылка которого записана в журнале позже, применяются после ее восстановления.
func New(ctx context.Context, rw io.ReadWriter) (*FileStore, error) {
	const op = "new file storage"

	records, err := readRecords(rw)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	r := replayer{
		s:       inmemory.New(),
		pending: make(map[string]int64),
	}
	for i := 0; i < len(records); i++ {
		if err := r.replay(ctx, records[i]); err != nil {
			return nil, errors.Wrapf(err, "%s: record %d", op, i)
		}
	}

	return &FileStore{
		encoder: json.NewEncoder(rw),
		s:       r.s,
	}, nil
}

func readRecords(r io.Reader) ([]StoredRecord, error) {
	dec := json.NewDecoder(r)
	var records []StoredRecord

	for dec.More() {
		var rec StoredRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}

		records = append(records, rec)
	}

	return records, nil
}

type replayer struct {
	s       *inmemory.InmemoryStore
	pending map[string]int64
}

func (r *replayer) replay(ctx context.Context, rec StoredRecord) error {
	switch rec.Type {
	case recordLink:
		var createdAt time.Time
		if rec.CreatedAt != nil {
			createdAt = *rec.CreatedAt
		}
		link := domain.NewShortLink(rec.Code, rec.LongURL, createdAt)
		link.Clicks = r.pending[rec.Code]
		delete(r.pending, rec.Code)
		return r.s.PutIfAbsent(ctx, link)
	case recordClick:
		_, err := r.s.IncrementClicks(ctx, rec.Code, rec.Delta)
		if errors.Is(err, domain.ErrNotFound) {
			r.pending[rec.Code] += rec.Delta
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown record type %q", rec.Type)
	}
}

// Get возвращает ссылку по коду.
func (f *FileStore) Get(ctx context.Context, code string) (domain.ShortLink, error) {
	return f.s.Get(ctx, code)
}

// PutIfAbsent сохраняет ссылку, если код свободен. Ссылка становится доступной
// только после записи в журнал.
func (f *FileStore) PutIfAbsent(ctx context.Context, link domain.ShortLink) error {
	const op = "put link"

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.s.Get(ctx, link.Code); err == nil {
		return errors.Wrap(domain.ErrAlreadyExists, op)
	}

	createdAt := link.CreatedAt
	rec := StoredRecord{
		Type:      recordLink,
		Code:      link.Code,
		LongURL:   link.LongURL,
		CreatedAt: &createdAt,
	}
	if err := f.encoder.Encode(rec); err != nil {
		return errors.Wrap(err, op)
	}

	if err := f.s.PutIfAbsent(ctx, link); err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

// IncrementClicks записывает приращение в журнал и затем увеличивает счетчик переходов.
func (f *FileStore) IncrementClicks(ctx context.Context, code string, delta int64) (int64, error) {
	const op = "increment clicks"

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.s.Get(ctx, code); err != nil {
		return 0, errors.Wrap(err, op)
	}

	rec := StoredRecord{
		Type:  recordClick,
		Code:  code,
		Delta: delta,
	}
	if err := f.encoder.Encode(rec); err != nil {
		return 0, errors.Wrap(err, op)
	}

	clicks, err := f.s.IncrementClicks(ctx, code, delta)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}

	return clicks, nil
}

// IsAvailable всегда возвращает true.
func (f *FileStore) IsAvailable(ctx context.Context) bool {
	return true
}
