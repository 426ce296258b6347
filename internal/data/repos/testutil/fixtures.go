package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/domain/workspace"
)

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) *types.Project {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.Project{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, p *types.Project, fileName string, status types.DocumentStatus) *types.Document {
	tb.Helper()
	now := time.Now().UTC()
	d := &types.Document{
		ID:         uuid.New(),
		ProjectID:  p.ID,
		UserID:     p.UserID,
		FileName:   fileName,
		FileType:   workspace.FileExtension(fileName),
		FileSize:   128,
		StorageKey: p.UserID.String() + "/" + p.ID.String() + "/" + uuid.NewString() + "-" + fileName,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedConversation(tb testing.TB, ctx context.Context, tx *gorm.DB, p *types.Project, title string) *types.Conversation {
	tb.Helper()
	now := time.Now().UTC()
	c := &types.Conversation{
		ID:        uuid.New(),
		ProjectID: p.ID,
		UserID:    p.UserID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}
