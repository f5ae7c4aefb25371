package migration

import (
	"strings"

	"github.com/smallbiznis/lingohub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date on start. Postgres uses the embedded SQL
// migrations; sqlite is built from the gorm models.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")
	if !cfg.MigrateOnStart {
		log.Info("schema migrations skipped")
		return nil
	}

	if !strings.EqualFold(strings.TrimSpace(cfg.DBType), "postgres") {
		log.Info("applying gorm auto migrations", zap.String("dialect", cfg.DBType))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	_, err = RunMigrations(sqlDB, log)
	return err
}
