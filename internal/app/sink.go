package app

import (
	"context"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/translate"
)

// historySink writes translations to the store, then notifies the sync
// plugins in the background. Sync failures do not fail the save.
type historySink struct {
	repo   *store.TranslationRepository
	syncer *plugin.Syncer
}

func (h *historySink) Persist(ctx context.Context, t translate.Translation) error {
	if err := h.repo.Persist(ctx, t); err != nil {
		return err
	}
	h.syncer.Dispatch(t)
	return nil
}
