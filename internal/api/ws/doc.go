// Package ws is the websocket hub behind live previews.
//
// Host pages connect to /ws/projects/:id. The hub pushes files_changed
// when a project is edited so pages re-render into a fresh iframe, and
// receives {type:"signal", render_id, signal} and {type:"timeout",
// render_id} reports, which are handed to the registered OnReport
// callback and echoed to the other pages of the same project.
package ws
