package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/zentoria-gateway/internal/apikey"
	"github.com/eleven-am/zentoria-gateway/internal/audit"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAPIKeyStore(db *gorm.DB) *apikey.Store {
	return apikey.NewStore(db)
}

func ProvideAuditStore(db *gorm.DB, log *slog.Logger) *audit.Store {
	return audit.NewStore(db, log)
}

func RunMigrations(apiKeyStore *apikey.Store, auditStore *audit.Store) error {
	if err := apiKeyStore.Migrate(); err != nil {
		return err
	}
	return auditStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideAPIKeyStore,
		ProvideAuditStore,
	),
	fx.Invoke(RunMigrations),
)
