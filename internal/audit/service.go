package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"logistics-backend/internal/database"
	"logistics-backend/internal/models"
)

// Entity types written to the audit log.
const (
	EntitySupplier      = "supplier"
	EntityProduct       = "product"
	EntityRequirement   = "requirement"
	EntityPurchaseOrder = "purchase_order"
	EntityReception     = "reception"
	EntityOutput        = "output"
	EntityInvoice       = "invoice"
	EntityAdjustment    = "inventory_adjustment"
)

var (
	ErrLogNotFound   = errors.New("audit log not found")
	ErrAlreadyUndone = errors.New("this action was already undone")
	ErrNotUndoable   = errors.New("this action cannot be undone")
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog stores a log row using database.DB.
func WriteLog(opts LogOptions) error {
	return WriteLogTx(database.DB, opts)
}

// WriteLogTx stores a log row on the given handle so it can share a transaction.
func WriteLogTx(db *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("could not write audit log: %w", err)
	}
	return nil
}

func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// UndoLog reverts the change recorded by logID and writes an undo log.
// create -> the entity is removed, update -> the before snapshot is restored,
// delete -> the entity is recreated with its original id.
func UndoLog(logID, userID uint, userName string) (*models.AuditLog, error) {
	var undoEntry models.AuditLog

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.AuditLog
		if err := tx.First(&entry, "id = ?", logID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLogNotFound
			}
			return err
		}
		if entry.IsUndone {
			return ErrAlreadyUndone
		}

		handler, ok := undoables[entry.EntityType]
		if !ok || entry.IsUndo {
			return ErrNotUndoable
		}

		var err error
		switch entry.Action {
		case models.AuditActionCreate:
			err = handler.remove(tx, entry.EntityID)
		case models.AuditActionUpdate:
			err = handler.restore(tx, entry.EntityID, entry.BeforeData, entry.AfterData)
		case models.AuditActionDelete:
			err = handler.recreate(tx, entry.BeforeData)
		default:
			return ErrNotUndoable
		}
		if err != nil {
			return err
		}

		now := time.Now()
		entry.IsUndone = true
		entry.UndoneBy = &userID
		entry.UndoneAt = &now
		if err := tx.Save(&entry).Error; err != nil {
			return fmt.Errorf("could not mark log as undone: %w", err)
		}

		undoEntry = models.AuditLog{
			UserID:      userID,
			UserName:    userName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: fmt.Sprintf("Undone: %s", entry.Description),
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
			IsUndo:      true,
		}
		if err := tx.Create(&undoEntry).Error; err != nil {
			return fmt.Errorf("could not write undo log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &undoEntry, nil
}
