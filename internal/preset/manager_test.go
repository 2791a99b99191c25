package preset_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/voxnote/voxnote/internal/preset"
	"github.com/voxnote/voxnote/internal/storage"
)

func newManager(t *testing.T) (*preset.Manager, *storage.MemStore) {
	t.Helper()
	store := storage.NewMemStore()
	m := preset.NewManager(store)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m, store
}

func TestInit_SeedsSystemPresets(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t)

	for _, id := range []string{preset.SystemEmail, preset.SystemProfessional, preset.SystemBasic} {
		p, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if !p.IsSystem {
			t.Errorf("preset %s: IsSystem = false", id)
		}
		if !p.Enabled {
			t.Errorf("preset %s: Enabled = false", id)
		}
	}

	if got := len(m.List()); got != 3 {
		t.Fatalf("List: got %d presets, want 3", got)
	}
}

func TestInit_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, store := newManager(t)

	if _, err := m.CreateCustomPreset(ctx, "Notes", "Summarise: {transcript}"); err != nil {
		t.Fatalf("CreateCustomPreset: %v", err)
	}

	// A fresh manager over the same store must not duplicate anything.
	m2 := preset.NewManager(store)
	if err := m2.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if got := len(m2.List()); got != 4 {
		t.Fatalf("List after reload: got %d presets, want 4", got)
	}
}

func TestSelectPreset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("valid id", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		if err := m.SelectPreset(ctx, preset.SystemEmail); err != nil {
			t.Fatalf("SelectPreset: %v", err)
		}
		sel, ok := m.Selected()
		if !ok || sel.ID != preset.SystemEmail {
			t.Fatalf("Selected: got (%v, %v)", sel.ID, ok)
		}
	})

	t.Run("off", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		_ = m.SelectPreset(ctx, preset.SystemEmail)
		if err := m.SelectPreset(ctx, ""); err != nil {
			t.Fatalf("SelectPreset(off): %v", err)
		}
		if _, ok := m.Selected(); ok {
			t.Fatal("Selected: expected no selection")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		err := m.SelectPreset(ctx, "nope")
		if !errors.Is(err, preset.ErrNotFound) {
			t.Fatalf("SelectPreset: got %v, want ErrNotFound", err)
		}
	})

	t.Run("disabled selection reports off", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		_ = m.SelectPreset(ctx, preset.SystemBasic)
		enabled := false
		if _, err := m.UpdatePreset(ctx, preset.SystemBasic, preset.Update{Enabled: &enabled}); err != nil {
			t.Fatalf("UpdatePreset: %v", err)
		}
		if _, ok := m.Selected(); ok {
			t.Fatal("Selected: disabled preset should not be returned")
		}
	})
}

func TestCreateCustomPreset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		p, err := m.CreateCustomPreset(ctx, "Meeting notes", "Turn into notes: {transcript}")
		if err != nil {
			t.Fatalf("CreateCustomPreset: %v", err)
		}
		if p.ID == "" || p.IsSystem || !p.Enabled || p.UsageCount != 0 {
			t.Fatalf("CreateCustomPreset: bad preset %+v", p)
		}
	})

	t.Run("case-insensitive duplicate name", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		// "Email" collides with the system preset named "Email".
		_, err := m.CreateCustomPreset(ctx, "email", "x {transcript}")
		if !errors.Is(err, preset.ErrDuplicateName) {
			t.Fatalf("CreateCustomPreset: got %v, want ErrDuplicateName", err)
		}
	})

	t.Run("cap of two custom presets", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		if _, err := m.CreateCustomPreset(ctx, "One", "a {transcript}"); err != nil {
			t.Fatalf("first: %v", err)
		}
		if _, err := m.CreateCustomPreset(ctx, "Two", "b {transcript}"); err != nil {
			t.Fatalf("second: %v", err)
		}
		_, err := m.CreateCustomPreset(ctx, "Three", "c {transcript}")
		if !errors.Is(err, preset.ErrCustomLimit) {
			t.Fatalf("third: got %v, want ErrCustomLimit", err)
		}
	})

	t.Run("empty name or prompt rejected", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		if _, err := m.CreateCustomPreset(ctx, "", "x {transcript}"); !errors.Is(err, preset.ErrInvalidPreset) {
			t.Fatalf("empty name: got %v", err)
		}
		if _, err := m.CreateCustomPreset(ctx, "Name", ""); !errors.Is(err, preset.ErrInvalidPreset) {
			t.Fatalf("empty prompt: got %v", err)
		}
		if _, err := m.CreateCustomPreset(ctx, "Name", "no placeholder"); !errors.Is(err, preset.ErrInvalidPreset) {
			t.Fatalf("missing placeholder: got %v", err)
		}
	})
}

func TestUpdatePreset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("system preset rename rejected", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		name := "Renamed"
		_, err := m.UpdatePreset(ctx, preset.SystemEmail, preset.Update{Name: &name})
		if !errors.Is(err, preset.ErrSystemPreset) {
			t.Fatalf("UpdatePreset: got %v, want ErrSystemPreset", err)
		}
	})

	t.Run("system preset prompt and enabled change", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		newPrompt := "New instructions: {transcript}"
		enabled := false
		p, err := m.UpdatePreset(ctx, preset.SystemEmail, preset.Update{Prompt: &newPrompt, Enabled: &enabled})
		if err != nil {
			t.Fatalf("UpdatePreset: %v", err)
		}
		if p.Prompt != newPrompt || p.Enabled {
			t.Fatalf("UpdatePreset: got %+v", p)
		}
	})

	t.Run("custom rename honours uniqueness excluding self", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		p, _ := m.CreateCustomPreset(ctx, "Mine", "x {transcript}")

		same := "mine"
		if _, err := m.UpdatePreset(ctx, p.ID, preset.Update{Name: &same}); err != nil {
			t.Fatalf("rename to own name (case change): %v", err)
		}

		taken := "Email"
		if _, err := m.UpdatePreset(ctx, p.ID, preset.Update{Name: &taken}); !errors.Is(err, preset.ErrDuplicateName) {
			t.Fatalf("rename to taken name: got %v, want ErrDuplicateName", err)
		}
	})
}

func TestDeletePreset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("system preset rejected", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		if err := m.DeletePreset(ctx, preset.SystemBasic); !errors.Is(err, preset.ErrSystemPreset) {
			t.Fatalf("DeletePreset: got %v, want ErrSystemPreset", err)
		}
	})

	t.Run("missing preset returns ErrNotFound", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		if err := m.DeletePreset(ctx, "ghost"); !errors.Is(err, preset.ErrNotFound) {
			t.Fatalf("DeletePreset: got %v, want ErrNotFound", err)
		}
	})

	t.Run("deleting the selected preset reverts selection to off", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)
		p, _ := m.CreateCustomPreset(ctx, "Temp", "x {transcript}")
		_ = m.SelectPreset(ctx, p.ID)

		if err := m.DeletePreset(ctx, p.ID); err != nil {
			t.Fatalf("DeletePreset: %v", err)
		}
		if _, ok := m.Selected(); ok {
			t.Fatal("Selected: expected selection to revert to off")
		}
	})
}

func TestUpdateUsageStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newManager(t)

	m.UpdateUsageStats(ctx, preset.SystemEmail)
	m.UpdateUsageStats(ctx, preset.SystemEmail)

	p, _ := m.Get(preset.SystemEmail)
	if p.UsageCount != 2 {
		t.Fatalf("UsageCount: got %d, want 2", p.UsageCount)
	}
	if p.LastUsed.IsZero() {
		t.Fatal("LastUsed: not set")
	}

	// Deleted-in-the-meantime preset: must not panic or error.
	m.UpdateUsageStats(ctx, "gone")
}

func TestLegacyMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemStore()

	legacy := map[string]map[string]any{
		"docs.example.com": {"prompt": "Tidy this up", "enabled": true},
		"mail.example.com": {"prompt": "Make it an email", "enabled": false},
	}
	raw, _ := json.Marshal(legacy)
	_ = store.Set(ctx, map[string][]byte{preset.KeyLegacySitePrompts: raw})

	m := preset.NewManager(store)
	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var docs, mail *preset.Preset
	for _, p := range m.List() {
		p := p
		switch p.Name {
		case "docs.example.com":
			docs = &p
		case "mail.example.com":
			mail = &p
		}
	}
	if docs == nil || mail == nil {
		t.Fatalf("migration did not create presets: %+v", m.List())
	}
	if !docs.Enabled {
		t.Error("docs preset: previously enabled site should stay enabled")
	}
	if mail.Enabled {
		t.Error("mail preset: previously disabled site must be disabled")
	}

	// Legacy key removed, and a reload migrates nothing further.
	got, _ := store.Get(ctx, preset.KeyLegacySitePrompts)
	if len(got) != 0 {
		t.Fatal("legacy key still present after migration")
	}

	m2 := preset.NewManager(store)
	if err := m2.Init(ctx); err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	if got := len(m2.List()); got != 5 {
		t.Fatalf("List after re-Init: got %d presets, want 5", got)
	}
}

func TestLegacyMigration_MalformedPayloadPreserved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemStore()
	raw := []byte(`{"docs.example.com": {"prompt": `)
	_ = store.Set(ctx, map[string][]byte{preset.KeyLegacySitePrompts: raw})

	m := preset.NewManager(store)
	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := len(m.List()); got != 3 {
		t.Fatalf("List: got %d presets, want only the 3 system presets", got)
	}

	// An unparseable payload stays in the store for manual recovery.
	got, err := store.Get(ctx, preset.KeyLegacySitePrompts)
	if err != nil {
		t.Fatalf("Get legacy key: %v", err)
	}
	if string(got[preset.KeyLegacySitePrompts]) != string(raw) {
		t.Fatalf("legacy key = %q, want the original payload preserved", got[preset.KeyLegacySitePrompts])
	}
}
