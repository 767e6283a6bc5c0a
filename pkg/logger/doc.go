// Package logger builds slog loggers and holds the attribute helpers used
// across the module, so every component names tenant_id, namespace,
// migration_version and friends the same way.
//
// New picks the handler from the options and wraps it so attributes stored
// in the context (the bound tenant, the request id) are added to every
// record logged with a context:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "boundary"),
//		logger.WithContextExtractors(tenant.LoggerExtractor(), requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "tenant migrated",
//		logger.TenantID(t.ID),
//		logger.Namespace(t.Namespace),
//		logger.MigrationVersion(3),
//		logger.Duration(time.Since(start)))
//
// LOG_LEVEL and LOG_FORMAT override the environment defaults via Config.
package logger
