package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged    bool
	NewLogLevel        LogLevel
	EnhancementChanged bool
	FoldersChanged     bool         // true if any folder was added, removed, or modified
	FolderChanges      []FolderDiff // per-folder diffs
}

// FolderDiff describes what changed for a single seeded folder.
type FolderDiff struct {
	Name          string
	PhraseChanged bool
	Added         bool
	Removed       bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider,
// storage, and listener changes require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Enhancement != new.Enhancement {
		d.EnhancementChanged = true
	}

	oldFolders := make(map[string]FolderConfig, len(old.Folders))
	for _, f := range old.Folders {
		oldFolders[f.Name] = f
	}
	newFolders := make(map[string]FolderConfig, len(new.Folders))
	for _, f := range new.Folders {
		newFolders[f.Name] = f
	}

	for name, of := range oldFolders {
		nf, exists := newFolders[name]
		if !exists {
			d.FolderChanges = append(d.FolderChanges, FolderDiff{Name: name, Removed: true})
			d.FoldersChanged = true
			continue
		}
		if of.ActivationPhrase != nf.ActivationPhrase {
			d.FolderChanges = append(d.FolderChanges, FolderDiff{Name: name, PhraseChanged: true})
			d.FoldersChanged = true
		}
	}
	for name := range newFolders {
		if _, exists := oldFolders[name]; !exists {
			d.FolderChanges = append(d.FolderChanges, FolderDiff{Name: name, Added: true})
			d.FoldersChanged = true
		}
	}

	return d
}
