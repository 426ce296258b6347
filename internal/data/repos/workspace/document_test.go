package workspace

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/unravel-backend/internal/data/repos/testutil"
	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
)

func TestDocumentRepoCountsReadyAndDeletes(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewDocumentRepo(db, testutil.Logger(t))

	p := testutil.SeedProject(t, ctx, db, uuid.New(), "P1")
	testutil.SeedDocument(t, ctx, db, p, "a.pdf", types.DocumentStatusReady)
	testutil.SeedDocument(t, ctx, db, p, "b.pdf", types.DocumentStatusProcessing)

	doc, err := repo.Create(dbc, &types.Document{
		ProjectID:  p.ID,
		UserID:     p.UserID,
		FileName:   "c.txt",
		FileType:   "txt",
		StorageKey: "k",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.Status != types.DocumentStatusUploading {
		t.Fatalf("default status: want=%q got=%q", types.DocumentStatusUploading, doc.Status)
	}

	n, err := repo.CountByStatus(dbc, p.ID, types.DocumentStatusReady)
	if err != nil || n != 1 {
		t.Fatalf("CountByStatus ready: err=%v n=%d", err, n)
	}

	fileID := "llama-1"
	if err := repo.UpdateFields(dbc, doc.ID, map[string]interface{}{"status": types.DocumentStatusReady, "llama_file_id": fileID}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err := repo.GetByIDForUser(dbc, doc.ID, p.UserID)
	if err != nil {
		t.Fatalf("GetByIDForUser: %v", err)
	}
	if got.LlamaFileID == nil || *got.LlamaFileID != fileID {
		t.Fatalf("llama_file_id: want=%q got=%v", fileID, got.LlamaFileID)
	}
	if n, _ := repo.CountByStatus(dbc, p.ID, types.DocumentStatusReady); n != 2 {
		t.Fatalf("CountByStatus after update: want=2 got=%d", n)
	}

	if err := repo.Delete(dbc, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ := repo.ListByProject(dbc, p.ID)
	if len(list) != 2 {
		t.Fatalf("ListByProject after delete: want=2 got=%d", len(list))
	}
	if err := repo.DeleteByProject(dbc, p.ID); err != nil {
		t.Fatalf("DeleteByProject: %v", err)
	}
	list, _ = repo.ListByProject(dbc, p.ID)
	if len(list) != 0 {
		t.Fatalf("ListByProject after DeleteByProject: want=0 got=%d", len(list))
	}
}
