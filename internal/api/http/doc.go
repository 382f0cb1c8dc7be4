// Package http contains the gin handlers of the preview server: project
// CRUD, assembled documents and build reports, headless verification,
// deployments and the browser host pages.
package http
