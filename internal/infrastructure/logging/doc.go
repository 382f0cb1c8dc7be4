// Package logging provides structured logging using uber/zap.
//
// Production output is JSON; development output is colored console text.
// Components receive a *zap.Logger and attach structured fields such as
// project_id, render_id, entry and modules.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Project(id).Warn("Build failed", zap.Error(err))
package logging
