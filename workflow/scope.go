package workflow

import (
	"context"

	"github.com/mmdatafocus/ledger_backend/utils"
)

// systemScope lets cross-company queries through the tenant guard.
func systemScope(ctx context.Context) context.Context {
	return utils.SetSkipTenantScopeInContext(ctx, true)
}
