package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// Memory is a process-local archive used when no database is configured.
type Memory struct {
	mu      sync.RWMutex
	byCode  map[string]models.BookingRecord
	byPair  map[string]string
	ordered []string
}

func NewMemory() *Memory {
	return &Memory{
		byCode: make(map[string]models.BookingRecord),
		byPair: make(map[string]string),
	}
}

func (m *Memory) Save(_ context.Context, record *models.BookingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair := record.HoldID + "|" + record.PaymentID
	if _, ok := m.byCode[record.ConfirmationCode]; ok {
		return nil
	}
	if _, ok := m.byPair[pair]; ok {
		return nil
	}
	m.byCode[record.ConfirmationCode] = *record
	m.byPair[pair] = record.ConfirmationCode
	m.ordered = append(m.ordered, record.ConfirmationCode)
	return nil
}

func (m *Memory) ByCode(_ context.Context, code string) (*models.BookingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]models.BookingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.ordered) {
		limit = len(m.ordered)
	}
	records := make([]models.BookingRecord, 0, limit)
	for i := len(m.ordered) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, m.byCode[m.ordered[i]])
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].IssuedAt.After(records[j].IssuedAt)
	})
	return records, nil
}
