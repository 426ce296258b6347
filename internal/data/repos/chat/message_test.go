package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/data/repos/testutil"
	types "github.com/yungbote/unravel-backend/internal/domain"
	chatdomain "github.com/yungbote/unravel-backend/internal/domain/chat"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
)

func TestMessageRepoCreateRejectsForeignOwner(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	p := testutil.SeedProject(t, ctx, db, uuid.New(), "Owned")
	conv := testutil.SeedConversation(t, ctx, db, p, "t")

	_, err := repo.Create(dbc, uuid.New(), &types.Message{ConversationID: conv.ID, Role: types.RoleUser, Content: "q"})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Create foreign owner: want ErrRecordNotFound got=%v", err)
	}
	if _, err := repo.Create(dbc, uuid.Nil, &types.Message{ConversationID: conv.ID, Role: types.RoleUser, Content: "q"}); err == nil {
		t.Fatalf("Create without owner: want error")
	}
	if n, _ := repo.CountByConversation(dbc, conv.ID); n != 0 {
		t.Fatalf("CountByConversation: want=0 got=%d", n)
	}
}

func TestMessageRepoOrderingAndSources(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	owner := uuid.New()
	p := testutil.SeedProject(t, ctx, db, owner, "P1")
	conv := testutil.SeedConversation(t, ctx, db, p, "t")

	base := time.Now().UTC()
	user, err := repo.Create(dbc, owner, &types.Message{ConversationID: conv.ID, Role: types.RoleUser, Content: "q", CreatedAt: base})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	if string(user.Sources) != "[]" {
		t.Fatalf("user sources default: want=[] got=%s", user.Sources)
	}

	citations := []types.Citation{{FileName: "policy.pdf", Content: "Refunds are issued within 30 days."}}
	if _, err := repo.Create(dbc, owner, &types.Message{
		ConversationID: conv.ID,
		Role:           types.RoleAssistant,
		Content:        "a",
		Sources:        chatdomain.EncodeCitations(citations),
		CreatedAt:      base.Add(time.Microsecond),
	}); err != nil {
		t.Fatalf("Create assistant: %v", err)
	}
	if _, err := repo.Create(dbc, owner, &types.Message{ConversationID: conv.ID, Role: "system", Content: "x"}); err == nil {
		t.Fatalf("Create invalid role: want error")
	}

	msgs, err := repo.ListByConversation(dbc, owner, conv.ID, 0)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("ListByConversation: err=%v len=%d", err, len(msgs))
	}
	if msgs[0].Role != types.RoleUser || msgs[1].Role != types.RoleAssistant {
		t.Fatalf("order: got=%s,%s", msgs[0].Role, msgs[1].Role)
	}
	if foreign, err := repo.ListByConversation(dbc, uuid.New(), conv.ID, 0); err != nil || len(foreign) != 0 {
		t.Fatalf("ListByConversation foreign owner: want empty got err=%v len=%d", err, len(foreign))
	}
	back := msgs[1].Citations()
	if len(back) != 1 || back[0] != citations[0] {
		t.Fatalf("citations round trip: want=%v got=%v", citations, back)
	}

	if err := repo.DeleteByConversations(dbc, []uuid.UUID{conv.ID}); err != nil {
		t.Fatalf("DeleteByConversations: %v", err)
	}
	if n, _ := repo.CountByConversation(dbc, conv.ID); n != 0 {
		t.Fatalf("CountByConversation after delete: want=0 got=%d", n)
	}
}
