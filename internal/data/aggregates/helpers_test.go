package aggregates_test

import (
	"context"

	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

func testDBC(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}
