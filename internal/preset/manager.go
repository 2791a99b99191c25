package preset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxnote/voxnote/internal/storage"
)

// Manager owns the preset collection and the current selection. All mutation
// goes through its methods; the persisted collection is written back after
// every successful mutation (last-write-wins, per the [storage.KV] contract).
//
// Manager is safe for concurrent use.
type Manager struct {
	store storage.KV

	mu       sync.Mutex
	presets  map[string]Preset
	order    []string
	selected string
}

// Update describes a partial preset update. Nil fields are left unchanged.
type Update struct {
	Name    *string
	Prompt  *string
	Enabled *bool
}

// NewManager returns a [Manager] backed by store. Call [Manager.Init] before
// any other method.
func NewManager(store storage.KV) *Manager {
	return &Manager{
		store:   store,
		presets: make(map[string]Preset),
	}
}

// Init loads persisted state, seeds any missing system presets, and runs the
// one-time legacy migration. It is idempotent: a second call finds nothing
// to seed or migrate.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.store.Get(ctx, KeyPresets, KeySelected, KeyLegacySitePrompts)
	if err != nil {
		return fmt.Errorf("preset: load: %w", err)
	}

	if raw, ok := values[KeyPresets]; ok {
		if err := json.Unmarshal(raw, &m.presets); err != nil {
			return fmt.Errorf("preset: decode collection: %w", err)
		}
	}
	if m.presets == nil {
		m.presets = make(map[string]Preset)
	}
	m.rebuildOrder()

	m.selected = string(values[KeySelected])
	if m.selected != "" {
		if _, ok := m.presets[m.selected]; !ok {
			slog.Warn("selected preset no longer exists, reverting to off", "id", m.selected)
			m.selected = ""
		}
	}

	changed := m.seedSystemPresets()

	if raw, ok := values[KeyLegacySitePrompts]; ok {
		migrated, parsed := m.migrateLegacy(raw)
		// A malformed payload keeps the legacy key so the data survives for
		// a manual recovery; only a parsed payload is consumed.
		if parsed {
			if err := m.store.Delete(ctx, KeyLegacySitePrompts); err != nil {
				return fmt.Errorf("preset: remove legacy keys: %w", err)
			}
		}
		changed = changed || migrated
	}

	if changed {
		if err := m.persistLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// seedSystemPresets inserts any missing system preset. Reports whether the
// collection changed.
func (m *Manager) seedSystemPresets() bool {
	changed := false
	for _, id := range []string{SystemEmail, SystemProfessional, SystemBasic} {
		if _, ok := m.presets[id]; ok {
			continue
		}
		def := systemPrompts[id]
		m.presets[id] = Preset{
			ID:        id,
			Name:      def.name,
			Prompt:    def.prompt,
			IsSystem:  true,
			Enabled:   true,
			CreatedAt: time.Now(),
		}
		m.order = append(m.order, id)
		changed = true
	}
	return changed
}

// List returns all presets in stable order: system presets first, then
// custom presets in creation order.
func (m *Manager) List() []Preset {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Preset, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.presets[id])
	}
	return out
}

// Get returns the preset with the given id, or [ErrNotFound].
func (m *Manager) Get(id string) (Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.presets[id]
	if !ok {
		return Preset{}, ErrNotFound
	}
	return p, nil
}

// Selected returns the currently selected preset. ok is false when no preset
// is selected ("Off") or the selected preset is disabled.
func (m *Manager) Selected() (Preset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selected == "" {
		return Preset{}, false
	}
	p, ok := m.presets[m.selected]
	if !ok || !p.Enabled {
		return Preset{}, false
	}
	return p, true
}

// SelectPreset sets the current selection. An empty id selects "Off".
// Returns [ErrNotFound] when a non-empty id is unknown.
func (m *Manager) SelectPreset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if _, ok := m.presets[id]; !ok {
			return fmt.Errorf("preset: select %q: %w", id, ErrNotFound)
		}
	}
	m.selected = id
	return m.persistLocked(ctx)
}

// CreateCustomPreset adds a user-defined preset. It fails when the custom
// cap is reached, the name collides case-insensitively with any preset, or
// name/prompt validation fails.
func (m *Manager) CreateCustomPreset(ctx context.Context, name, promptText string) (Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validate(name, promptText); err != nil {
		return Preset{}, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
	if m.customCount() >= MaxCustomPresets {
		return Preset{}, ErrCustomLimit
	}
	if m.nameTaken(name, "") {
		return Preset{}, fmt.Errorf("preset: create %q: %w", name, ErrDuplicateName)
	}

	p := Preset{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Prompt:    promptText,
		Enabled:   true,
		CreatedAt: time.Now(),
	}
	m.presets[p.ID] = p
	m.order = append(m.order, p.ID)

	if err := m.persistLocked(ctx); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// UpdatePreset applies upd to the preset with the given id. For system
// presets only Prompt and Enabled may change; a Name change on a system
// preset returns [ErrSystemPreset]. Custom preset renames are checked for
// case-insensitive uniqueness against every other preset.
func (m *Manager) UpdatePreset(ctx context.Context, id string, upd Update) (Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.presets[id]
	if !ok {
		return Preset{}, fmt.Errorf("preset: update %q: %w", id, ErrNotFound)
	}

	if upd.Name != nil && *upd.Name != p.Name {
		if p.IsSystem {
			return Preset{}, fmt.Errorf("preset: rename %q: %w", id, ErrSystemPreset)
		}
		if strings.TrimSpace(*upd.Name) == "" {
			return Preset{}, fmt.Errorf("%w: preset name must not be empty", ErrInvalidPreset)
		}
		if m.nameTaken(*upd.Name, id) {
			return Preset{}, fmt.Errorf("preset: rename to %q: %w", *upd.Name, ErrDuplicateName)
		}
		p.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Prompt != nil {
		if err := validate(p.Name, *upd.Prompt); err != nil {
			return Preset{}, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
		}
		p.Prompt = *upd.Prompt
	}
	if upd.Enabled != nil {
		p.Enabled = *upd.Enabled
	}

	m.presets[id] = p
	if err := m.persistLocked(ctx); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// DeletePreset removes a custom preset. System presets return
// [ErrSystemPreset]; a missing id returns [ErrNotFound]. When the deleted
// preset was selected, the selection reverts to "Off".
func (m *Manager) DeletePreset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.presets[id]
	if !ok {
		return fmt.Errorf("preset: delete %q: %w", id, ErrNotFound)
	}
	if p.IsSystem {
		return fmt.Errorf("preset: delete %q: %w", id, ErrSystemPreset)
	}

	delete(m.presets, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.selected == id {
		m.selected = ""
	}
	return m.persistLocked(ctx)
}

// UpdateUsageStats increments the usage counter and stamps last-use time.
// It silently no-ops when the preset has been deleted in the meantime; a
// lost stat update is preferable to failing a successful enhancement.
func (m *Manager) UpdateUsageStats(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.presets[id]
	if !ok {
		return
	}
	p.UsageCount++
	p.LastUsed = time.Now()
	m.presets[id] = p

	if err := m.persistLocked(ctx); err != nil {
		slog.Warn("failed to persist preset usage stats", "id", id, "error", err)
	}
}

// migrateLegacy converts the legacy per-site prompt layout into custom
// presets: one preset per site, disabled unless the site entry was enabled,
// honouring the custom cap and name uniqueness. migrated reports whether
// anything was converted; parsed is false when the payload could not be
// decoded at all, so the caller can leave the legacy key intact.
func (m *Manager) migrateLegacy(raw []byte) (migrated, parsed bool) {
	var sites map[string]struct {
		Prompt  string `json:"prompt"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.Unmarshal(raw, &sites); err != nil {
		slog.Warn("legacy site prompts are malformed, skipping migration", "error", err)
		return false, false
	}

	names := make([]string, 0, len(sites))
	for site := range sites {
		names = append(names, site)
	}
	sort.Strings(names)

	for _, site := range names {
		entry := sites[site]
		if strings.TrimSpace(entry.Prompt) == "" {
			continue
		}
		if m.customCount() >= MaxCustomPresets {
			slog.Warn("custom preset limit reached during migration, skipping remaining sites", "site", site)
			break
		}
		if m.nameTaken(site, "") {
			slog.Warn("skipping legacy site prompt with colliding name", "site", site)
			continue
		}

		promptText := entry.Prompt
		if !strings.Contains(promptText, "{"+TranscriptVariable+"}") {
			// Legacy prompts predate placeholders; the transcript was
			// appended after the prompt text.
			promptText += "\n\n{" + TranscriptVariable + "}"
		}

		p := Preset{
			ID:        uuid.NewString(),
			Name:      site,
			Prompt:    promptText,
			Enabled:   entry.Enabled,
			CreatedAt: time.Now(),
		}
		m.presets[p.ID] = p
		m.order = append(m.order, p.ID)
		migrated = true
		slog.Info("migrated legacy site prompt", "site", site, "enabled", entry.Enabled)
	}
	return migrated, true
}

// persistLocked writes the collection and selection back to storage.
// Caller must hold m.mu.
func (m *Manager) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(m.presets)
	if err != nil {
		return fmt.Errorf("preset: encode collection: %w", err)
	}
	err = m.store.Set(ctx, map[string][]byte{
		KeyPresets:  raw,
		KeySelected: []byte(m.selected),
	})
	if err != nil {
		return fmt.Errorf("preset: persist: %w", err)
	}
	return nil
}

func (m *Manager) customCount() int {
	n := 0
	for _, p := range m.presets {
		if !p.IsSystem {
			n++
		}
	}
	return n
}

func (m *Manager) nameTaken(name, excludeID string) bool {
	for id, p := range m.presets {
		if id == excludeID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// rebuildOrder derives a stable listing order from a freshly loaded
// collection: system presets in their canonical order, then custom presets
// by creation time.
func (m *Manager) rebuildOrder() {
	m.order = m.order[:0]
	for _, id := range []string{SystemEmail, SystemProfessional, SystemBasic} {
		if _, ok := m.presets[id]; ok {
			m.order = append(m.order, id)
		}
	}
	var custom []Preset
	for _, p := range m.presets {
		if !p.IsSystem {
			custom = append(custom, p)
		}
	}
	sort.Slice(custom, func(i, j int) bool {
		if custom[i].CreatedAt.Equal(custom[j].CreatedAt) {
			return custom[i].ID < custom[j].ID
		}
		return custom[i].CreatedAt.Before(custom[j].CreatedAt)
	})
	for _, p := range custom {
		m.order = append(m.order, p.ID)
	}
}
