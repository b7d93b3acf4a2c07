// Package store provides in-memory credits.Store and directory implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/creative-boost/credits"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	outputTypes map[string]credits.OutputType
	configs     map[string]credits.ClientCreditConfig
	months      map[string]credits.ClientMonth
	outputs     map[string]credits.ClientMonthOutput
	changes     []credits.SettingsChange
}

func NewMemory() *Memory {
	return &Memory{
		outputTypes: make(map[string]credits.OutputType),
		configs:     make(map[string]credits.ClientCreditConfig),
		months:      make(map[string]credits.ClientMonth),
		outputs:     make(map[string]credits.ClientMonthOutput),
	}
}

var _ credits.Store = (*Memory)(nil)

// --- output types ---

func (m *Memory) SaveOutputType(_ context.Context, t credits.OutputType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputTypes[t.ID] = t
	return nil
}

func (m *Memory) GetOutputType(_ context.Context, id string) (*credits.OutputType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getOutputTypeLocked(id), nil
}

func (m *Memory) getOutputTypeLocked(id string) *credits.OutputType {
	t, ok := m.outputTypes[id]
	if !ok {
		return nil
	}
	return &t
}

func (m *Memory) ListOutputTypes(_ context.Context) ([]credits.OutputType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOutputTypesLocked(), nil
}

func (m *Memory) listOutputTypesLocked() []credits.OutputType {
	result := make([]credits.OutputType, 0, len(m.outputTypes))
	for _, t := range m.outputTypes {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// --- client configs ---

func (m *Memory) SaveClientConfig(_ context.Context, c credits.ClientCreditConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[c.ClientID] = c
	return nil
}

func (m *Memory) GetClientConfig(_ context.Context, clientID string) (*credits.ClientCreditConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getClientConfigLocked(clientID), nil
}

func (m *Memory) getClientConfigLocked(clientID string) *credits.ClientCreditConfig {
	c, ok := m.configs[clientID]
	if !ok {
		return nil
	}
	return &c
}

func (m *Memory) ListClientConfigs(_ context.Context) ([]credits.ClientCreditConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listClientConfigsLocked(), nil
}

func (m *Memory) listClientConfigsLocked() []credits.ClientCreditConfig {
	result := make([]credits.ClientCreditConfig, 0, len(m.configs))
	for _, c := range m.configs {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClientID < result[j].ClientID })
	return result
}

// --- client months ---

func (m *Memory) InsertClientMonth(_ context.Context, cm credits.ClientMonth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertClientMonthLocked(cm)
}

func (m *Memory) insertClientMonthLocked(cm credits.ClientMonth) error {
	if _, exists := m.months[cm.ID]; exists {
		return credits.ErrDuplicateClientMonth
	}
	if err := m.checkMonthKeysLocked(cm); err != nil {
		return err
	}
	m.months[cm.ID] = cloneMonth(cm)
	return nil
}

func (m *Memory) UpdateClientMonth(_ context.Context, cm credits.ClientMonth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateClientMonthLocked(cm)
}

func (m *Memory) updateClientMonthLocked(cm credits.ClientMonth) error {
	if _, exists := m.months[cm.ID]; !exists {
		return credits.ErrClientMonthNotFound
	}
	if err := m.checkMonthKeysLocked(cm); err != nil {
		return err
	}
	m.months[cm.ID] = cloneMonth(cm)
	return nil
}

// checkMonthKeysLocked enforces the (client, period) and (engagement service, period) keys.
func (m *Memory) checkMonthKeysLocked(cm credits.ClientMonth) error {
	for id, other := range m.months {
		if id == cm.ID || other.Period != cm.Period {
			continue
		}
		if other.ClientID == cm.ClientID {
			return credits.ErrDuplicateClientMonth
		}
		if cm.EngagementServiceID != nil && other.EngagementServiceID != nil &&
			*cm.EngagementServiceID == *other.EngagementServiceID {
			return credits.ErrDuplicateClientMonth
		}
	}
	return nil
}

func (m *Memory) DeleteClientMonth(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.months, id)
	return nil
}

func (m *Memory) GetClientMonth(_ context.Context, id string) (*credits.ClientMonth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getClientMonthLocked(id), nil
}

func (m *Memory) getClientMonthLocked(id string) *credits.ClientMonth {
	cm, ok := m.months[id]
	if !ok {
		return nil
	}
	cm = cloneMonth(cm)
	return &cm
}

func (m *Memory) FindClientMonth(_ context.Context, clientID string, p credits.Period) (*credits.ClientMonth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findClientMonthLocked(func(cm credits.ClientMonth) bool {
		return cm.ClientID == clientID && cm.Period == p
	}), nil
}

func (m *Memory) FindClientMonthByEngagementService(_ context.Context, engagementServiceID string, p credits.Period) (*credits.ClientMonth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findClientMonthLocked(byEngagementService(engagementServiceID, p)), nil
}

func byEngagementService(engagementServiceID string, p credits.Period) func(credits.ClientMonth) bool {
	return func(cm credits.ClientMonth) bool {
		return cm.Period == p && cm.EngagementServiceID != nil && *cm.EngagementServiceID == engagementServiceID
	}
}

func (m *Memory) findClientMonthLocked(match func(credits.ClientMonth) bool) *credits.ClientMonth {
	for _, cm := range m.months {
		if match(cm) {
			cm = cloneMonth(cm)
			return &cm
		}
	}
	return nil
}

func (m *Memory) ListClientMonths(_ context.Context, p credits.Period) ([]credits.ClientMonth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listClientMonthsLocked(p), nil
}

func (m *Memory) listClientMonthsLocked(p credits.Period) []credits.ClientMonth {
	result := []credits.ClientMonth{}
	for _, cm := range m.months {
		if cm.Period == p {
			result = append(result, cloneMonth(cm))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClientID < result[j].ClientID })
	return result
}

// --- outputs ---

func (m *Memory) SaveOutput(_ context.Context, o credits.ClientMonthOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveOutputLocked(o)
}

func (m *Memory) saveOutputLocked(o credits.ClientMonthOutput) error {
	for id, other := range m.outputs {
		if id != o.ID && other.ClientID == o.ClientID && other.OutputTypeID == o.OutputTypeID && other.Period == o.Period {
			return credits.ErrDuplicateOutput
		}
	}
	m.outputs[o.ID] = cloneOutput(o)
	return nil
}

func (m *Memory) DeleteOutput(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outputs, id)
	return nil
}

func (m *Memory) DeleteOutputs(_ context.Context, clientID string, p credits.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteOutputsLocked(clientID, p)
	return nil
}

func (m *Memory) deleteOutputsLocked(clientID string, p credits.Period) {
	for id, o := range m.outputs {
		if o.ClientID == clientID && o.Period == p {
			delete(m.outputs, id)
		}
	}
}

func (m *Memory) FindOutput(_ context.Context, clientID, outputTypeID string, p credits.Period) (*credits.ClientMonthOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findOutputLocked(clientID, outputTypeID, p), nil
}

func (m *Memory) findOutputLocked(clientID, outputTypeID string, p credits.Period) *credits.ClientMonthOutput {
	for _, o := range m.outputs {
		if o.ClientID == clientID && o.OutputTypeID == outputTypeID && o.Period == p {
			o = cloneOutput(o)
			return &o
		}
	}
	return nil
}

func (m *Memory) ListOutputs(_ context.Context, filter credits.OutputFilter) ([]credits.ClientMonthOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOutputsLocked(filter), nil
}

func (m *Memory) listOutputsLocked(filter credits.OutputFilter) []credits.ClientMonthOutput {
	result := []credits.ClientMonthOutput{}
	for _, o := range m.outputs {
		if matchOutput(o, filter) {
			result = append(result, cloneOutput(o))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		return a.OutputTypeID < b.OutputTypeID
	})
	return result
}

func matchOutput(o credits.ClientMonthOutput, f credits.OutputFilter) bool {
	if f.ClientID != "" && o.ClientID != f.ClientID {
		return false
	}
	if f.ColleagueID != "" && (o.ColleagueID == nil || *o.ColleagueID != f.ColleagueID) {
		return false
	}
	if f.Year != 0 && o.Period.Year != f.Year {
		return false
	}
	if f.Month != 0 && o.Period.Month != f.Month {
		return false
	}
	return true
}

// --- audit ---

// AppendSettingsChange adds an audit row. Append-only.
func (m *Memory) AppendSettingsChange(_ context.Context, c credits.SettingsChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, c)
	return nil
}

func (m *Memory) ListSettingsChanges(_ context.Context, clientMonthID string) ([]credits.SettingsChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSettingsChangesLocked(clientMonthID), nil
}

func (m *Memory) listSettingsChangesLocked(clientMonthID string) []credits.SettingsChange {
	result := []credits.SettingsChange{}
	for _, c := range m.changes {
		if c.ClientMonthID == clientMonthID {
			result = append(result, c)
		}
	}
	return result
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, each write inside fn records how to undo itself; an error
// replays the undo log newest first.
func (m *Memory) WithTx(_ context.Context, fn func(credits.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &txMemoryView{parent: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// txMemoryView runs against the parent's maps while WithTx holds its lock.
type txMemoryView struct {
	parent *Memory
	undo   []func()
}

func (tv *txMemoryView) rollback() {
	for i := len(tv.undo) - 1; i >= 0; i-- {
		tv.undo[i]()
	}
	tv.undo = nil
}

// restoreEntry captures the current state of table[key].
func restoreEntry[K comparable, V any](table map[K]V, key K) func() {
	prev, existed := table[key]
	return func() {
		if existed {
			table[key] = prev
		} else {
			delete(table, key)
		}
	}
}

func (tv *txMemoryView) SaveOutputType(_ context.Context, t credits.OutputType) error {
	tv.undo = append(tv.undo, restoreEntry(tv.parent.outputTypes, t.ID))
	tv.parent.outputTypes[t.ID] = t
	return nil
}

func (tv *txMemoryView) GetOutputType(_ context.Context, id string) (*credits.OutputType, error) {
	return tv.parent.getOutputTypeLocked(id), nil
}

func (tv *txMemoryView) ListOutputTypes(_ context.Context) ([]credits.OutputType, error) {
	return tv.parent.listOutputTypesLocked(), nil
}

func (tv *txMemoryView) SaveClientConfig(_ context.Context, c credits.ClientCreditConfig) error {
	tv.undo = append(tv.undo, restoreEntry(tv.parent.configs, c.ClientID))
	tv.parent.configs[c.ClientID] = c
	return nil
}

func (tv *txMemoryView) GetClientConfig(_ context.Context, clientID string) (*credits.ClientCreditConfig, error) {
	return tv.parent.getClientConfigLocked(clientID), nil
}

func (tv *txMemoryView) ListClientConfigs(_ context.Context) ([]credits.ClientCreditConfig, error) {
	return tv.parent.listClientConfigsLocked(), nil
}

func (tv *txMemoryView) InsertClientMonth(_ context.Context, cm credits.ClientMonth) error {
	tv.undo = append(tv.undo, restoreEntry(tv.parent.months, cm.ID))
	return tv.parent.insertClientMonthLocked(cm)
}

func (tv *txMemoryView) UpdateClientMonth(_ context.Context, cm credits.ClientMonth) error {
	tv.undo = append(tv.undo, restoreEntry(tv.parent.months, cm.ID))
	return tv.parent.updateClientMonthLocked(cm)
}

func (tv *txMemoryView) DeleteClientMonth(_ context.Context, id string) error {
	tv.undo = append(tv.undo, restoreEntry(tv.parent.months, id))
	delete(tv.parent.months, id)
	return nil
}

func (tv *txMemoryView) GetClientMonth(_ context.Context, id string) (*credits.ClientMonth, error) {
	return tv.parent.getClientMonthLocked(id), nil
}

func (tv *txMemoryView) FindClientMonth(_ context.Context, clientID string, p credits.Period) (*credits.ClientMonth, error) {
	return tv.parent.findClientMonthLocked(func(cm credits.ClientMonth) bool {
		return cm.ClientID == clientID && cm.Period == p
	}), nil
}

func (tv *txMemoryView) FindClientMonthByEngagementService(_ context.Context, engagementServiceID string, p credits.Period) (*credits.ClientMonth, error) {
	return tv.parent.findClientMonthLocked(byEngagementService(engagementServiceID, p)), nil
}

func (tv *txMemoryView) ListClientMonths(_ context.Context, p credits.Period) ([]credits.ClientMonth, error) {
	return tv.parent.listClientMonthsLocked(p), nil
}

func (tv *txMemoryView) SaveOutput(_ context.Context, o credits.ClientMonthOutput) error {
	tv.undo = append(tv.undo, restoreEntry(tv.parent.outputs, o.ID))
	return tv.parent.saveOutputLocked(o)
}

func (tv *txMemoryView) DeleteOutput(_ context.Context, id string) error {
	tv.undo = append(tv.undo, restoreEntry(tv.parent.outputs, id))
	delete(tv.parent.outputs, id)
	return nil
}

func (tv *txMemoryView) DeleteOutputs(_ context.Context, clientID string, p credits.Period) error {
	for id, o := range tv.parent.outputs {
		if o.ClientID == clientID && o.Period == p {
			tv.undo = append(tv.undo, restoreEntry(tv.parent.outputs, id))
		}
	}
	tv.parent.deleteOutputsLocked(clientID, p)
	return nil
}

func (tv *txMemoryView) FindOutput(_ context.Context, clientID, outputTypeID string, p credits.Period) (*credits.ClientMonthOutput, error) {
	return tv.parent.findOutputLocked(clientID, outputTypeID, p), nil
}

func (tv *txMemoryView) ListOutputs(_ context.Context, filter credits.OutputFilter) ([]credits.ClientMonthOutput, error) {
	return tv.parent.listOutputsLocked(filter), nil
}

func (tv *txMemoryView) AppendSettingsChange(_ context.Context, c credits.SettingsChange) error {
	n := len(tv.parent.changes)
	tv.undo = append(tv.undo, func() { tv.parent.changes = tv.parent.changes[:n] })
	tv.parent.changes = append(tv.parent.changes, c)
	return nil
}

func (tv *txMemoryView) ListSettingsChanges(_ context.Context, clientMonthID string) ([]credits.SettingsChange, error) {
	return tv.parent.listSettingsChangesLocked(clientMonthID), nil
}

// WithTx on a view joins the enclosing transaction.
func (tv *txMemoryView) WithTx(_ context.Context, fn func(credits.Store) error) error {
	return fn(tv)
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneMonth(cm credits.ClientMonth) credits.ClientMonth {
	cm.ColleagueID = cloneString(cm.ColleagueID)
	cm.EngagementServiceID = cloneString(cm.EngagementServiceID)
	cm.EngagementID = cloneString(cm.EngagementID)
	return cm
}

func cloneOutput(o credits.ClientMonthOutput) credits.ClientMonthOutput {
	o.ColleagueID = cloneString(o.ColleagueID)
	return o
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Reset drops every row.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputTypes = make(map[string]credits.OutputType)
	m.configs = make(map[string]credits.ClientCreditConfig)
	m.months = make(map[string]credits.ClientMonth)
	m.outputs = make(map[string]credits.ClientMonthOutput)
	m.changes = nil
	return nil
}
