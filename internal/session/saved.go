package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/event"
	apperrors "github.com/kidsdesign/storefront/pkg/errors"
	"github.com/kidsdesign/storefront/pkg/logger"
)

// SetSaved saves or unsaves productID for the session's shopper. The change
// shows in the view immediately and is rolled back if the wishlist service
// rejects it. Setting the current state again is a no-op.
func (m *Manager) SetSaved(ctx context.Context, s *Session, productID int, saved bool) error {
	if m.wishlist == nil {
		return apperrors.ServiceUnavailable("wishlist is not available")
	}

	s.saving.Lock()
	defer s.saving.Unlock()

	comp := s.Composer
	wasSaved, entryID := comp.SavedEntry(productID)
	if wasSaved == saved {
		return nil
	}
	if !saved && entryID == 0 {
		return apperrors.Conflict("product is not saved in the wishlist yet")
	}

	prev, existed := comp.Override(productID)
	comp.SetSaved(productID, saved, 0)

	var err error
	if saved {
		var entry catalog.WishEntry
		entry, err = m.wishlist.AddItem(ctx, productID)
		if err == nil {
			entryID = entry.ID
			comp.SetSaved(productID, true, entryID)
		}
	} else {
		err = m.wishlist.RemoveItem(ctx, entryID)
	}

	l := logger.FromContext(ctx)
	if err != nil {
		comp.RestoreOverride(productID, prev, existed)
		l.WarnContext(ctx, "wishlist update failed, override rolled back",
			slog.String("session_id", s.ID),
			slog.Int("product_id", productID),
			slog.Bool("saved", saved),
			slog.String("error", err.Error()),
		)
		return wishlistError(err)
	}

	if m.events != nil {
		_ = m.events.PublishProductSaved(ctx, event.ProductSavedData{
			ProductID: productID,
			Saved:     saved,
			EntryID:   entryID,
		})
	}
	return nil
}

// wishlistError keeps application errors (e.g. unauthorized) and reports
// everything else as an upstream failure.
func wishlistError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status < 500 {
		return appErr
	}
	return apperrors.BadGateway("WISHLIST_UNAVAILABLE", "wishlist update failed", err)
}
