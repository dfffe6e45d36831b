package retention

import (
	"context"
	"log"
	"os"

	"podcast-drive/internal/db"
	"podcast-drive/internal/drive"
	"podcast-drive/internal/models"
)

// Manager enforces the per-podcast keep-N policy. It only ever considers
// episodes that already have a confirmed remote copy; nothing local is
// deleted ahead of that.
type Manager struct {
	store drive.Store
}

// NewManager returns a retention manager. The store may be nil, in which
// case remote deletion is skipped even for podcasts that request it.
func NewManager(store drive.Store) *Manager {
	return &Manager{store: store}
}

// Enforce applies the podcast's retention policy. With keep_count < 0
// everything is kept and uploaded episodes simply settle into RETAINED;
// otherwise episodes beyond the keep_count most recent lose their local
// file (and the Drive copy too, when the podcast opts in).
func (m *Manager) Enforce(ctx context.Context, p models.Podcast) error {
	episodes, err := db.ListByState(p.ID, db.StateUploaded, db.StateRetained, db.StateDeletedLocal)
	if err != nil {
		return err
	}

	for i, ep := range episodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		keep := p.KeepCount < 0 || i < p.KeepCount
		if keep {
			if ep.State != db.StateUploaded {
				continue
			}
			if err := db.MarkRetained(ep.ID); err != nil {
				log.Printf("Failed to mark episode %d retained: %v", ep.ID, err)
			}
			continue
		}

		if ep.State == db.StateDeletedLocal {
			continue
		}
		if ep.LocalPath != nil && *ep.LocalPath != "" {
			if err := os.Remove(*ep.LocalPath); err != nil && !os.IsNotExist(err) {
				log.Printf("Failed to delete local file %s: %v", *ep.LocalPath, err)
				continue
			}
		}
		if p.DeleteRemote && m.store != nil && ep.DriveFileID != nil {
			if err := m.store.DeleteFile(ctx, *ep.DriveFileID); err != nil {
				log.Printf("Failed to delete Drive file %s for episode %d: %v", *ep.DriveFileID, ep.ID, err)
				continue
			}
		}
		if err := db.MarkDeletedLocal(ep.ID); err != nil {
			log.Printf("Failed to mark episode %d deleted: %v", ep.ID, err)
			continue
		}
		log.Printf("Retention: removed episode %d (%q) beyond keep count %d", ep.ID, ep.Title, p.KeepCount)
	}
	return nil
}
